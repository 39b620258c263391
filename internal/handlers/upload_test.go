package handlers_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/models"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func (h *harness) upload(token, category, filename string, content []byte) response {
	h.t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if category != "" {
		require.NoError(h.t, w.WriteField("category", category))
	}
	if content != nil {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(h.t, err)
		_, err = part.Write(content)
		require.NoError(h.t, err)
	}
	require.NoError(h.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/uploads", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return h.send(req)
}

func TestUploadAndDelete(t *testing.T) {
	h := newHarness(t)
	admin := h.createUser(models.RoleAdmin)

	resp := h.upload(admin.Token, "products", "photo.txt", pngHeader)
	require.Equal(t, http.StatusCreated, resp.Status, resp.Body)

	data := resp.Data()
	assert.Equal(t, "image/png", data["contentType"])
	assert.Equal(t, float64(len(pngHeader)), data["size"])

	path := data["path"].(string)
	assert.True(t, strings.HasPrefix(path, "/uploads/products/"))
	assert.True(t, strings.HasSuffix(path, ".png"), "extension follows the sniffed type, not the file name")

	onDisk := filepath.Join(h.uploadDir, filepath.FromSlash(strings.TrimPrefix(path, "/uploads/")))
	stored, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, stored)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Uploads.WithLabelValues("products")))

	served := h.send(newRequest(http.MethodGet, path, ""))
	assert.Equal(t, http.StatusOK, served.Status)

	for i := 0; i < 2; i++ {
		del := h.do(http.MethodDelete, "/api/admin/uploads", admin.Token, map[string]any{"path": path})
		assert.Equal(t, http.StatusOK, del.Status, "delete is idempotent")
	}
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))
}

func TestUploadRejections(t *testing.T) {
	h := newHarness(t)
	admin := h.createUser(models.RoleAdmin)
	user := h.createUser(models.RoleUser)

	tests := []struct {
		name     string
		category string
		content  []byte
		message  string
	}{
		{"bad category", "avatars", pngHeader, "Invalid upload category"},
		{"no file", "products", nil, "No file provided"},
		{"empty", "products", []byte{}, "File is empty"},
		{"text", "banners", []byte("just some text"), "File type not allowed"},
		{"too large", "products", append(append([]byte{}, pngHeader...), make([]byte, 1<<20)...), "File exceeds the maximum size of 1 MB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.upload(admin.Token, tt.category, "file.png", tt.content)
			assert.Equal(t, http.StatusBadRequest, resp.Status)
			assert.Equal(t, tt.message, resp.Error())
		})
	}

	forbidden := h.upload(user.Token, "products", "file.png", pngHeader)
	assert.Equal(t, http.StatusUnauthorized, forbidden.Status)

	entries, err := os.ReadDir(h.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeleteUploadRejectsForeignPaths(t *testing.T) {
	h := newHarness(t)
	admin := h.createUser(models.RoleAdmin)

	for _, path := range []string{
		"",
		"/etc/passwd",
		"/uploads/../config.yaml",
		"/uploads/products/../../secret.png",
		"/uploads/avatars/0b0c7a8e-6a0e-4f4e-9d7e-0a1b2c3d4e5f.png",
	} {
		resp := h.do(http.MethodDelete, "/api/admin/uploads", admin.Token, map[string]any{"path": path})
		assert.Equal(t, http.StatusBadRequest, resp.Status, path)
		assert.Equal(t, "Invalid file path", resp.Error(), path)
	}

	viaQuery := h.do(http.MethodDelete, "/api/admin/uploads?path=/uploads/products/0b0c7a8e-6a0e-4f4e-9d7e-0a1b2c3d4e5f.png", admin.Token, nil)
	assert.Equal(t, http.StatusOK, viaQuery.Status)
}
