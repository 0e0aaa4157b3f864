package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/hackathon-partner-finder/models"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var (
	ErrApplicationNotFound         = errors.New("application not found")
	ErrApplicationNotPending       = errors.New("application is not pending")
	ErrApplicationListingInvalid   = errors.New("application listing conflict or invalid")
	ErrApplicationApplicantInvalid = errors.New("application applicant conflict or invalid")
)

type ApplicationRepository interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Application, error)
	// Respond переводит заявку из pending в status. Если заявка уже
	// рассмотрена, возвращает ErrApplicationNotPending.
	Respond(ctx context.Context, exec SQLExecutor, id uuid.UUID, status models.ApplicationStatus, respondedAt time.Time) (*models.Application, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Application, error)
	ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]models.Application, error)
}

type postgresApplicationRepository struct {
	db *sql.DB
}

func NewPostgresApplicationRepository(db *sql.DB) ApplicationRepository {
	return &postgresApplicationRepository{db: db}
}

var applicationColumns = []string{
	"a.id", "a.listing_id", "a.applicant_id", "a.applicant_name", "a.applicant_email", "a.message",
	"a.github_url", "a.linkedin_url", "a.status", "a.created_at", "a.responded_at",
}

func selectApplications() sq.SelectBuilder {
	return psql.Select(applicationColumns...).From("applications a")
}

func scanApplication(row rowScanner, a *models.Application) error {
	return row.Scan(
		&a.ID,
		&a.ListingID,
		&a.ApplicantID,
		&a.ApplicantName,
		&a.ApplicantEmail,
		&a.Message,
		&a.GithubURL,
		&a.LinkedinURL,
		&a.Status,
		&a.CreatedAt,
		&a.RespondedAt,
	)
}

func (r *postgresApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	query := `
		INSERT INTO applications (
			id, listing_id, applicant_id, applicant_name, applicant_email, message,
			github_url, linkedin_url, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		app.ID, app.ListingID, app.ApplicantID, app.ApplicantName, app.ApplicantEmail, app.Message,
		app.GithubURL, app.LinkedinURL, app.Status,
	).Scan(&app.CreatedAt)

	if err != nil {
		if pqErr, ok := pgError(err); ok && pqErr.Code == pqForeignKeyViolation {
			switch pqErr.Constraint {
			case "applications_listing_id_fkey":
				return ErrApplicationListingInvalid
			case "applications_applicant_id_fkey":
				return ErrApplicationApplicantInvalid
			}
		}
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

func (r *postgresApplicationRepository) GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Application, error) {
	query, args, err := selectApplications().Where(sq.Eq{"a.id": id.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build application query: %w", err)
	}
	app := &models.Application{}
	if err := scanApplication(pickExecutor(r.db, exec).QueryRowContext(ctx, query, args...), app); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return app, nil
}

func (r *postgresApplicationRepository) Respond(ctx context.Context, exec SQLExecutor, id uuid.UUID, status models.ApplicationStatus, respondedAt time.Time) (*models.Application, error) {
	query := `
		UPDATE applications a
		SET status = $1, responded_at = $2
		WHERE a.id = $3 AND a.status = 'pending'
		RETURNING a.id, a.listing_id, a.applicant_id, a.applicant_name, a.applicant_email, a.message,
			a.github_url, a.linkedin_url, a.status, a.created_at, a.responded_at`

	executor := pickExecutor(r.db, exec)
	app := &models.Application{}
	err := scanApplication(executor.QueryRowContext(ctx, query, status, respondedAt, id), app)
	if err == nil {
		return app, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to respond to application: %w", err)
	}

	// Ни одна строка не обновилась: либо заявки нет, либо она уже рассмотрена.
	if _, getErr := r.GetByID(ctx, executor, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrApplicationNotPending
}

func (r *postgresApplicationRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Application, error) {
	return r.list(ctx, selectApplications().
		Join("listings l ON l.id = a.listing_id").
		Where(sq.Eq{"l.creator_id": ownerID.String()}).
		OrderBy("a.created_at DESC"))
}

func (r *postgresApplicationRepository) ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]models.Application, error) {
	return r.list(ctx, selectApplications().
		Where(sq.Eq{"a.applicant_id": applicantID.String()}).
		OrderBy("a.created_at DESC"))
}

func (r *postgresApplicationRepository) list(ctx context.Context, b sq.SelectBuilder) ([]models.Application, error) {
	rows, err := queryBuilt(ctx, r.db, b)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	apps := make([]models.Application, 0)
	for rows.Next() {
		var a models.Application
		if err := scanApplication(rows, &a); err != nil {
			return nil, fmt.Errorf("failed to scan application row: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating application rows: %w", err)
	}
	return apps, nil
}
