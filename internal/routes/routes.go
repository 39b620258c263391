package routes

import (
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/ratelimit"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/storage"
	"github.com/example/storefront/internal/validation"
)

const (
	loginAttempts = 10
	loginWindow   = time.Minute
)

// Dependencies are the process-wide collaborators handlers share.
type Dependencies struct {
	DB             *gorm.DB
	Config         *config.Config
	Logger         *slog.Logger
	RateLimitStore ratelimit.Store
	Storage        storage.Storage
	Notifier       services.OrderNotifier
	Mailer         services.Mailer
	Metrics        *metrics.Metrics

	// AccessLog receives one line per request; nil disables access logging.
	AccessLog io.Writer
	// UploadDir is served at /uploads when set.
	UploadDir string
}

// NewApp builds the fiber app with the standard middleware stack and all routes.
func NewApp(d Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Storefront",
		ErrorHandler: middleware.ErrorHandler(d.Logger),
		BodyLimit:    int(d.Config.UploadMaxBytes()) + 1<<20,
		ProxyHeader:  d.Config.ProxyHeader,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	if d.AccessLog != nil {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "${time} ${locals:requestid} ${status} ${latency} ${method} ${path}\n",
			Output: d.AccessLog,
		}))
	}
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(compress.New())
	app.Use(cors.New())
	app.Use(healthcheck.New(healthcheck.Config{
		ReadinessProbe: func(c *fiber.Ctx) bool {
			sqlDB, err := d.DB.DB()
			return err == nil && sqlDB.PingContext(c.UserContext()) == nil
		},
	}))

	Register(app, d)
	return app
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Dependencies) {
	cfg := d.Config
	validate := validation.New()

	authHandler := handlers.NewAuthHandler(d.DB, cfg, d.Logger, validate,
		ratelimit.NewRegistrationLimiter(d.RateLimitStore), d.Mailer, d.Metrics)
	resetHandler := handlers.NewPasswordResetHandler(d.DB, d.Logger, validate, d.RateLimitStore, d.Mailer)
	addressHandler := handlers.NewAddressHandler(d.DB, validate)
	catalogHandler := handlers.NewCatalogHandler(d.DB, validate)
	productHandler := handlers.NewProductHandler(d.DB, validate)
	cartHandler := handlers.NewCartHandler(d.DB)
	orderHandler := handlers.NewOrderHandler(d.DB, cfg, d.Logger, validate, d.Notifier, d.Metrics)
	profileHandler := handlers.NewProfileHandler(d.DB, validate)
	marketingHandler := handlers.NewMarketingHandler(d.DB, validate)
	adminHandler := handlers.NewAdminHandler(d.DB, validate)
	uploadHandler := handlers.NewUploadHandler(d.Storage, cfg, d.Logger, d.Metrics)

	requireAuth := middleware.RequireAuth(cfg.JWTSecret)
	requireAdmin := middleware.RequireRole(d.DB, models.RoleAdmin)

	app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	if d.UploadDir != "" {
		app.Static("/uploads", d.UploadDir, fiber.Static{MaxAge: 86400})
	}

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", limiter.New(limiter.Config{
		Max:        loginAttempts,
		Expiration: loginWindow,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many login attempts. Please try again later.")
		},
	}), authHandler.Login)
	auth.Post("/logout", authHandler.Logout)
	auth.Get("/session", requireAuth, authHandler.Session)
	auth.Post("/forgot-password", resetHandler.ForgotPassword)
	auth.Post("/reset-password", resetHandler.ResetPassword)

	// Catalog
	api.Get("/categories", catalogHandler.ListCategories)
	api.Get("/categories/:slug", catalogHandler.GetCategory)
	api.Get("/banners", marketingHandler.ListBanners)

	admin := api.Group("/admin", requireAuth, requireAdmin)
	productHandler.RegisterRoutes(api.Group("/products"), admin.Group("/products"))

	// Signed-in user resources
	addresses := api.Group("/addresses", requireAuth)
	addresses.Get("/", addressHandler.ListAddresses)
	addresses.Post("/", addressHandler.CreateAddress)
	addresses.Get("/:id", addressHandler.GetAddress)
	addresses.Put("/:id", addressHandler.UpdateAddress)
	addresses.Delete("/:id", addressHandler.DeleteAddress)
	addresses.Patch("/:id/default", addressHandler.SetDefaultAddress)

	cart := api.Group("/cart", requireAuth)
	cart.Get("/", cartHandler.GetCart)
	cart.Post("/", cartHandler.AddItem)
	cart.Delete("/", cartHandler.ClearCart)
	cart.Put("/:id", cartHandler.UpdateItem)
	cart.Delete("/:id", cartHandler.RemoveItem)

	orders := api.Group("/orders", requireAuth)
	orders.Post("/", orderHandler.CreateOrder)
	orders.Get("/", orderHandler.ListOrders)
	orders.Get("/:id", orderHandler.GetOrder)
	orders.Post("/:id/cancel", orderHandler.CancelOrder)

	profile := api.Group("/profile", requireAuth)
	profile.Get("/", profileHandler.GetProfile)
	profile.Put("/", profileHandler.UpdateProfile)
	profile.Put("/password", profileHandler.ChangePassword)

	// Back office
	admin.Get("/dashboard", adminHandler.DashboardStats)
	admin.Get("/users", adminHandler.ListUsers)
	admin.Patch("/users/:id/role", adminHandler.UpdateUserRole)

	admin.Post("/categories", catalogHandler.CreateCategory)
	admin.Put("/categories/:id", catalogHandler.UpdateCategory)
	admin.Delete("/categories/:id", catalogHandler.DeleteCategory)

	admin.Get("/orders", orderHandler.ListAllOrders)
	admin.Get("/orders/:id", orderHandler.GetAnyOrder)
	admin.Patch("/orders/:id/status", orderHandler.UpdateOrderStatus)

	admin.Get("/banners", marketingHandler.ListAllBanners)
	admin.Get("/banners/:id", marketingHandler.GetBanner)
	admin.Post("/banners", marketingHandler.CreateBanner)
	admin.Put("/banners/:id", marketingHandler.UpdateBanner)
	admin.Delete("/banners/:id", marketingHandler.DeleteBanner)

	admin.Post("/uploads", uploadHandler.Upload)
	admin.Delete("/uploads", uploadHandler.DeleteUpload)
}
