package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/google/uuid"
)

var (
	ErrBookmarkListingInvalid = errors.New("bookmark listing conflict or invalid")
)

// BookmarkRepository хранит пары (пользователь, объявление).
// Пара уникальна: повторное добавление ничего не меняет.
type BookmarkRepository interface {
	// Add возвращает true, если закладка была создана этим вызовом.
	Add(ctx context.Context, exec SQLExecutor, userID, listingID uuid.UUID) (bool, error)
	// Remove возвращает true, если закладка была удалена этим вызовом.
	Remove(ctx context.Context, exec SQLExecutor, userID, listingID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Bookmark, error)
}

type postgresBookmarkRepository struct {
	db *sql.DB
}

func NewPostgresBookmarkRepository(db *sql.DB) BookmarkRepository {
	return &postgresBookmarkRepository{db: db}
}

func (r *postgresBookmarkRepository) Add(ctx context.Context, exec SQLExecutor, userID, listingID uuid.UUID) (bool, error) {
	query := `
		INSERT INTO bookmarks (id, user_id, listing_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, listing_id) DO NOTHING`

	result, err := pickExecutor(r.db, exec).ExecContext(ctx, query, uuid.New(), userID, listingID)
	if err != nil {
		if pqErr, ok := pgError(err); ok && pqErr.Code == pqForeignKeyViolation && pqErr.Constraint == "bookmarks_listing_id_fkey" {
			return false, ErrBookmarkListingInvalid
		}
		return false, fmt.Errorf("failed to add bookmark: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *postgresBookmarkRepository) Remove(ctx context.Context, exec SQLExecutor, userID, listingID uuid.UUID) (bool, error) {
	query := `DELETE FROM bookmarks WHERE user_id = $1 AND listing_id = $2`

	result, err := pickExecutor(r.db, exec).ExecContext(ctx, query, userID, listingID)
	if err != nil {
		return false, fmt.Errorf("failed to remove bookmark: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *postgresBookmarkRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Bookmark, error) {
	query := `
		SELECT id, user_id, listing_id, created_at
		FROM bookmarks
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := make([]models.Bookmark, 0)
	for rows.Next() {
		var b models.Bookmark
		if err := rows.Scan(&b.ID, &b.UserID, &b.ListingID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark row: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookmark rows: %w", err)
	}
	return bookmarks, nil
}
