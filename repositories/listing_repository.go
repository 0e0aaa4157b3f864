package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/hackathon-partner-finder/models"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrListingNotFound       = errors.New("listing not found")
	ErrListingFull           = errors.New("listing has no free spots")
	ErrListingCreatorInvalid = errors.New("listing creator conflict or invalid")
	ErrListingCheckViolation = errors.New("listing violates a check constraint")
)

type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	// GetForUpdate блокирует строку объявления до конца транзакции exec.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Listing, error)
	Update(ctx context.Context, listing *models.Listing) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Listing, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// ListActive возвращает активные объявления по возрастанию даты хакатона.
	// Прошедшие даты не отсекаются: это делает потребитель.
	ListActive(ctx context.Context) ([]models.Listing, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Listing, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Listing, error)

	// IncrementMembers увеличивает current_members, только если осталось место.
	IncrementMembers(ctx context.Context, exec SQLExecutor, id uuid.UUID) (int, error)
	DeactivatePast(ctx context.Context, now time.Time) (int64, error)
}

type postgresListingRepository struct {
	db *sql.DB
}

func NewPostgresListingRepository(db *sql.DB) ListingRepository {
	return &postgresListingRepository{db: db}
}

var listingColumns = []string{
	"id", "creator_id", "creator_name", "creator_email", "hackathon_name", "hackathon_date",
	"location", "tech_stack", "team_size", "current_members", "description", "is_active",
	"created_at", "updated_at",
}

func selectListings() sq.SelectBuilder {
	return psql.Select(listingColumns...).From("listings")
}

func scanListing(row rowScanner, l *models.Listing) error {
	return row.Scan(
		&l.ID,
		&l.CreatorID,
		&l.CreatorName,
		&l.CreatorEmail,
		&l.HackathonName,
		&l.HackathonDate,
		&l.Location,
		pq.Array(&l.TechStack),
		&l.TeamSize,
		&l.CurrentMembers,
		&l.Description,
		&l.IsActive,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
}

func (r *postgresListingRepository) Create(ctx context.Context, l *models.Listing) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	query := `
		INSERT INTO listings (
			id, creator_id, creator_name, creator_email, hackathon_name, hackathon_date,
			location, tech_stack, team_size, current_members, description, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		l.ID, l.CreatorID, l.CreatorName, l.CreatorEmail, l.HackathonName, l.HackathonDate,
		l.Location, textArray(l.TechStack), l.TeamSize, l.CurrentMembers, l.Description, l.IsActive,
	).Scan(&l.CreatedAt, &l.UpdatedAt)

	return r.handleListingError(err)
}

func (r *postgresListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return r.getOne(ctx, r.db, selectListings().Where(sq.Eq{"id": id.String()}))
}

func (r *postgresListingRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Listing, error) {
	return r.getOne(ctx, pickExecutor(r.db, exec), selectListings().Where(sq.Eq{"id": id.String()}).Suffix("FOR UPDATE"))
}

func (r *postgresListingRepository) getOne(ctx context.Context, exec SQLExecutor, b sq.SelectBuilder) (*models.Listing, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build listing query: %w", err)
	}
	l := &models.Listing{}
	if err := scanListing(exec.QueryRowContext(ctx, query, args...), l); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to scan listing: %w", err)
	}
	return l, nil
}

func (r *postgresListingRepository) Update(ctx context.Context, l *models.Listing) error {
	query := `
		UPDATE listings SET
			hackathon_name = $1,
			hackathon_date = $2,
			location = $3,
			tech_stack = $4,
			team_size = $5,
			description = $6,
			updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		l.HackathonName, l.HackathonDate, l.Location, textArray(l.TechStack), l.TeamSize, l.Description, l.ID,
	).Scan(&l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrListingNotFound
	}
	return r.handleListingError(err)
}

func (r *postgresListingRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Listing, error) {
	b := psql.Update("listings").
		Set("is_active", active).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id.String()}).
		Suffix("RETURNING " + strings.Join(listingColumns, ", "))

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build listing update: %w", err)
	}
	l := &models.Listing{}
	if err := scanListing(r.db.QueryRowContext(ctx, query, args...), l); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to update listing status: %w", err)
	}
	return l, nil
}

func (r *postgresListingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// applications и bookmarks удаляются каскадно (ON DELETE CASCADE)
	result, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	return checkAffectedRows(result, ErrListingNotFound)
}

func (r *postgresListingRepository) ListActive(ctx context.Context) ([]models.Listing, error) {
	return r.list(ctx, selectListings().
		Where(sq.Eq{"is_active": true}).
		OrderBy("hackathon_date ASC", "created_at ASC"))
}

func (r *postgresListingRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Listing, error) {
	return r.list(ctx, selectListings().
		Where(sq.Eq{"creator_id": creatorID.String()}).
		OrderBy("created_at DESC"))
}

func (r *postgresListingRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Listing, error) {
	if len(ids) == 0 {
		return []models.Listing{}, nil
	}
	return r.list(ctx, selectListings().
		Where(sq.Eq{"id": uuidStrings(ids)}).
		OrderBy("hackathon_date ASC"))
}

func (r *postgresListingRepository) list(ctx context.Context, b sq.SelectBuilder) ([]models.Listing, error) {
	rows, err := queryBuilt(ctx, r.db, b)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	listings := make([]models.Listing, 0)
	for rows.Next() {
		var l models.Listing
		if err := scanListing(rows, &l); err != nil {
			return nil, fmt.Errorf("failed to scan listing row: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listing rows: %w", err)
	}
	return listings, nil
}

func (r *postgresListingRepository) IncrementMembers(ctx context.Context, exec SQLExecutor, id uuid.UUID) (int, error) {
	query := `
		UPDATE listings
		SET current_members = current_members + 1, updated_at = NOW()
		WHERE id = $1 AND current_members < team_size
		RETURNING current_members`

	var members int
	err := pickExecutor(r.db, exec).QueryRowContext(ctx, query, id).Scan(&members)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrListingFull
		}
		return 0, fmt.Errorf("failed to increment listing members: %w", err)
	}
	return members, nil
}

func (r *postgresListingRepository) DeactivatePast(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE listings SET is_active = FALSE, updated_at = NOW() WHERE is_active AND hackathon_date <= $1`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate past listings: %w", err)
	}
	return result.RowsAffected()
}

func (r *postgresListingRepository) handleListingError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := pgError(err); ok {
		switch pqErr.Code {
		case pqForeignKeyViolation:
			if pqErr.Constraint == "listings_creator_id_fkey" {
				return ErrListingCreatorInvalid
			}
		case pqCheckViolation:
			return fmt.Errorf("%w: %s", ErrListingCheckViolation, pqErr.Constraint)
		}
	}
	return fmt.Errorf("listing query failed: %w", err)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
