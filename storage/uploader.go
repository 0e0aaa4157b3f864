package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

var ErrUnsupportedContentType = errors.New("unsupported image content type")

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader хранит бинарные объекты (фото профиля) во внешнем хранилище.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

// ProfilePhotoKey строит ключ объекта для фото пользователя.
// Каждая загрузка получает новый ключ, чтобы CDN не отдавал старое фото.
func ProfilePhotoKey(userID uuid.UUID, ext string) string {
	return fmt.Sprintf("users/%s/photo-%s%s", userID, uuid.NewString(), ext)
}

func ExtensionFromContentType(contentType string) (string, error) {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch mediaType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		return "", fmt.Errorf("%w: '%s'", ErrUnsupportedContentType, contentType)
	}
}
