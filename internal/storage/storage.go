// Package storage persists uploaded files under category-scoped keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// PublicPrefix is the URL prefix uploaded files are served under.
const PublicPrefix = "/uploads/"

// Categories uploads may be filed under.
var Categories = []string{"products", "categories", "banners"}

var (
	ErrInvalidCategory = errors.New("invalid upload category")
	ErrInvalidPath     = errors.New("invalid upload path")
)

var fileNamePattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.[a-z0-9]{1,8}$`)

// Storage writes and removes objects by key.
type Storage interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	// Delete removes key. A missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// ValidCategory reports whether category is an allowed upload folder.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// NewKey returns a fresh "<category>/<uuid><ext>" key.
func NewKey(category, ext string) (string, error) {
	if !ValidCategory(category) {
		return "", ErrInvalidCategory
	}
	return fmt.Sprintf("%s/%s%s", category, uuid.NewString(), ext), nil
}

// PublicPath maps a key to the path clients use.
func PublicPath(key string) string {
	return PublicPrefix + key
}

// KeyFromPublicPath reverses PublicPath, rejecting anything NewKey could not have produced.
func KeyFromPublicPath(p string) (string, error) {
	if !strings.HasPrefix(p, PublicPrefix) {
		return "", ErrInvalidPath
	}
	key := strings.TrimPrefix(p, PublicPrefix)

	category, name := path.Split(key)
	category = strings.TrimSuffix(category, "/")
	if !ValidCategory(category) || !fileNamePattern.MatchString(name) {
		return "", ErrInvalidPath
	}
	return key, nil
}

// ExtensionFor picks a file extension for an allowed content type.
func ExtensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/svg+xml":
		return ".svg"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
