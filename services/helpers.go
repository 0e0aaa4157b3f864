package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Dosada05/hackathon-partner-finder/live"
	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/Dosada05/hackathon-partner-finder/storage"
)

// TxBeginner - то, что умеет открывать транзакцию (*sql.DB).
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// withTx выполняет fn в транзакции: коммит при nil, откат при ошибке или панике.
func withTx(ctx context.Context, db TxBeginner, logger *slog.Logger, fn func(tx *sql.Tx) error) (txErr error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("rollback failed", slog.Any("error", rbErr), slog.Any("original_error", txErr))
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	txErr = fn(tx)
	return txErr
}

// notify сообщает подписчикам об изменении. Ошибка доставки не отменяет запись.
func notify(ctx context.Context, n live.Notifier, logger *slog.Logger, topics ...live.Topic) {
	if n == nil {
		return
	}
	for _, topic := range topics {
		if err := n.Notify(ctx, topic); err != nil {
			logger.Warn("failed to publish change notification", slog.String("topic", string(topic)), slog.Any("error", err))
		}
	}
}

func populateUserDetails(user *models.User, uploader storage.FileUploader) {
	if user == nil {
		return
	}
	user.PasswordHash = ""
	if user.PhotoKey != nil && *user.PhotoKey != "" && uploader != nil {
		if url := uploader.GetPublicURL(*user.PhotoKey); url != "" {
			user.PhotoURL = &url
		}
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// optionalString возвращает nil для пустой строки после обрезки пробелов.
func optionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// trimmedPtr обрезает пробелы, сохраняя различие между nil и пустой строкой.
func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	return &trimmed
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// normalizeTags обрезает пробелы, убирает пустые и повторяющиеся теги, сохраняя порядок.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
