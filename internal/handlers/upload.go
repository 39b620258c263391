package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/storage"
)

// UploadHandler stores admin uploads in the configured backend.
type UploadHandler struct {
	store   storage.Storage
	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewUploadHandler constructs UploadHandler.
func NewUploadHandler(store storage.Storage, cfg *config.Config, log *slog.Logger, m *metrics.Metrics) *UploadHandler {
	return &UploadHandler{store: store, cfg: cfg, log: log, metrics: m}
}

// Upload accepts a multipart "file" and "category" and returns the public path.
// The content type is sniffed from the bytes, not taken from the client.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	category := c.FormValue("category")
	if !storage.ValidCategory(category) {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid upload category")
	}

	header, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "No file provided")
	}

	maxBytes := h.cfg.UploadMaxBytes()
	tooLarge := fiber.NewError(fiber.StatusBadRequest,
		fmt.Sprintf("File exceeds the maximum size of %d MB", h.cfg.UploadMaxSizeMB))
	if header.Size > maxBytes {
		return tooLarge
	}

	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return tooLarge
	}
	if len(data) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "File is empty")
	}

	contentType := http.DetectContentType(data)
	if !slices.Contains(h.cfg.AllowedUploadTypes(), contentType) {
		return fiber.NewError(fiber.StatusBadRequest, "File type not allowed")
	}

	key, err := storage.NewKey(category, storage.ExtensionFor(contentType))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid upload category")
	}
	if err := h.store.Save(c.UserContext(), key, data, contentType); err != nil {
		return err
	}

	h.metrics.Uploads.WithLabelValues(category).Inc()
	middleware.RequestLogger(c, h.log).Info("file uploaded",
		slog.String("key", key),
		slog.Int("size", len(data)),
	)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"path":        storage.PublicPath(key),
			"contentType": contentType,
			"size":        len(data),
		},
	})
}

type deleteUploadRequest struct {
	Path string `json:"path"`
}

// DeleteUpload removes a previously uploaded file. Missing files count as deleted.
func (h *UploadHandler) DeleteUpload(c *fiber.Ctx) error {
	var req deleteUploadRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	if req.Path == "" {
		req.Path = c.Query("path")
	}

	key, err := storage.KeyFromPublicPath(req.Path)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid file path")
		}
		return err
	}

	if err := h.store.Delete(c.UserContext(), key); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "File deleted"})
}
