package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/database/dbtest"
	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/ratelimit"
	"github.com/example/storefront/internal/routes"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/storage"
	"github.com/example/storefront/internal/utils"
)

const testSecret = "test-secret"

type fakeMailer struct {
	mu   sync.Mutex
	sent []*services.Email
}

func (m *fakeMailer) SendMail(_ context.Context, e *services.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return nil
}

func (m *fakeMailer) Sent() []*services.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*services.Email(nil), m.sent...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	orders []services.OrderNotification
}

func (n *fakeNotifier) NotifyNewOrder(_ context.Context, o services.OrderNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, o)
	return nil
}

func (n *fakeNotifier) Orders() []services.OrderNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]services.OrderNotification(nil), n.orders...)
}

type harness struct {
	t         *testing.T
	app       *fiber.App
	db        *gorm.DB
	cfg       *config.Config
	mailer    *fakeMailer
	notifier  *fakeNotifier
	metrics   *metrics.Metrics
	uploadDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &config.Config{
		AppEnv:                config.EnvDevelopment,
		AppPort:               "0",
		ProxyHeader:           "X-Forwarded-For",
		JWTSecret:             testSecret,
		JWTTTLHours:           1,
		StorageDriver:         "local",
		UploadMaxSizeMB:       1,
		UploadAllowedTypes:    "image/png,image/jpeg,image/gif",
		ShippingFee:           5,
		FreeShippingThreshold: 100,
		Currency:              "USD",
	}

	dir := t.TempDir()
	local, err := storage.NewLocal(dir)
	require.NoError(t, err)

	h := &harness{
		t:         t,
		db:        dbtest.Open(t),
		cfg:       cfg,
		mailer:    &fakeMailer{},
		notifier:  &fakeNotifier{},
		metrics:   metrics.New(),
		uploadDir: dir,
	}
	h.app = routes.NewApp(routes.Dependencies{
		DB:             h.db,
		Config:         cfg,
		Logger:         logger.Discard(),
		RateLimitStore: ratelimit.NewMemoryStore(),
		Storage:        local,
		Notifier:       h.notifier,
		Mailer:         h.mailer,
		Metrics:        h.metrics,
		UploadDir:      dir,
	})
	return h
}

type response struct {
	Status  int
	Header  http.Header
	Body    map[string]any
	Cookies []*http.Cookie
}

func (r response) Data() map[string]any {
	data, _ := r.Body["data"].(map[string]any)
	return data
}

func (r response) List() []any {
	list, _ := r.Body["data"].([]any)
	return list
}

func (r response) Error() string {
	msg, _ := r.Body["error"].(string)
	return msg
}

type requestOption func(*http.Request)

func withIP(ip string) requestOption {
	return func(r *http.Request) { r.Header.Set("X-Forwarded-For", ip) }
}

func withCookie(c *http.Cookie) requestOption {
	return func(r *http.Request) { r.AddCookie(c) }
}

func (h *harness) send(req *http.Request, opts ...requestOption) response {
	h.t.Helper()
	for _, opt := range opts {
		opt(req)
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)

	out := response{Status: resp.StatusCode, Header: resp.Header, Cookies: resp.Cookies()}
	if len(raw) > 0 && bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		require.NoError(h.t, json.Unmarshal(raw, &out.Body), string(raw))
	}
	return out
}

func (h *harness) do(method, path, token string, body any, opts ...requestOption) response {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return h.send(req, opts...)
}

type account struct {
	User     models.User
	Token    string
	Password string
}

// createUser inserts a user directly with a cheap hash and returns a session token.
func (h *harness) createUser(role models.Role) account {
	h.t.Helper()

	const password = "Secret1!pass"
	hash, err := utils.HashPasswordWithCost(password, bcrypt.MinCost)
	require.NoError(h.t, err)

	user := models.User{
		Name:         "User " + uuid.NewString()[:8],
		Email:        fmt.Sprintf("%s@example.com", uuid.NewString()[:12]),
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(h.t, h.db.Create(&user).Error)

	token, err := utils.GenerateToken(testSecret, user.ID, string(role), time.Hour)
	require.NoError(h.t, err)
	return account{User: user, Token: token, Password: password}
}

func (h *harness) createCategory(name string) models.Category {
	h.t.Helper()
	category := models.Category{Name: name, Slug: utils.Slugify(name)}
	require.NoError(h.t, h.db.Create(&category).Error)
	return category
}

func (h *harness) createProduct(name string, price float64, stock int, active bool, category *models.Category) models.Product {
	h.t.Helper()
	product := models.Product{
		Name:     name,
		Slug:     utils.Slugify(name),
		Price:    price,
		Stock:    stock,
		IsActive: active,
		Images:   []string{},
	}
	if category != nil {
		product.CategoryID = &category.ID
	}
	require.NoError(h.t, h.db.Create(&product).Error)
	return product
}

func (h *harness) createAddress(userID uuid.UUID, isDefault bool) models.Address {
	h.t.Helper()
	address := models.Address{
		UserID:     userID,
		Recipient:  "Ann Example",
		Line1:      "1 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "US",
		IsDefault:  isDefault,
	}
	require.NoError(h.t, h.db.Create(&address).Error)
	return address
}

func (h *harness) defaultCount(userID uuid.UUID) int64 {
	h.t.Helper()
	var count int64
	require.NoError(h.t, h.db.Model(&models.Address{}).
		Where("user_id = ? AND is_default = ?", userID, true).Count(&count).Error)
	return count
}

func newRequest(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
