package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/hackathon-partner-finder/live"
	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/Dosada05/hackathon-partner-finder/repositories"
	"github.com/google/uuid"
)

type ApplicationService interface {
	Submit(ctx context.Context, session models.Session, listingID uuid.UUID, input SubmitApplicationInput) (*models.Application, error)
	// Respond принимает или отклоняет заявку. Смена статуса и увеличение
	// current_members выполняются одной транзакцией.
	Respond(ctx context.Context, session models.Session, applicationID uuid.UUID, status models.ApplicationStatus) (*models.Application, error)
	ListForOwner(ctx context.Context, session models.Session) ([]models.Application, error)
	SubscribeForOwner(ctx context.Context, session models.Session) (*live.Stream[[]models.Application], error)
	ListMine(ctx context.Context, session models.Session) ([]models.Application, error)
}

type SubmitApplicationInput struct {
	Message     string  `json:"message" validate:"min=50,max=5000"`
	GithubURL   *string `json:"github_url" validate:"omitempty,github_url"`
	LinkedinURL *string `json:"linkedin_url" validate:"omitempty,linkedin_url"`
}

type applicationService struct {
	db          TxBeginner
	appRepo     repositories.ApplicationRepository
	listingRepo repositories.ListingRepository
	userRepo    repositories.UserRepository
	mailer      Mailer
	broker      *live.Broker
	notifier    live.Notifier
	logger      *slog.Logger
	now         func() time.Time
}

func NewApplicationService(
	db TxBeginner,
	appRepo repositories.ApplicationRepository,
	listingRepo repositories.ListingRepository,
	userRepo repositories.UserRepository,
	mailer Mailer,
	broker *live.Broker,
	notifier live.Notifier,
	logger *slog.Logger,
) ApplicationService {
	return &applicationService{
		db:          db,
		appRepo:     appRepo,
		listingRepo: listingRepo,
		userRepo:    userRepo,
		mailer:      mailer,
		broker:      broker,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *applicationService) Submit(ctx context.Context, session models.Session, listingID uuid.UUID, input SubmitApplicationInput) (*models.Application, error) {
	if !session.IsAuthenticated() {
		return nil, ErrAuthRequired
	}

	// пустые ссылки считаются отсутствующими
	input.Message = strings.TrimSpace(input.Message)
	input.GithubURL = optionalString(input.GithubURL)
	input.LinkedinURL = optionalString(input.LinkedinURL)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	app := &models.Application{
		ListingID:   listingID,
		ApplicantID: session.UserID,
		Message:     input.Message,
		GithubURL:   input.GithubURL,
		LinkedinURL: input.LinkedinURL,
		Status:      models.ApplicationPending,
	}

	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repositories.ErrListingNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to load listing %s: %w", listingID, err)
	}
	if listing.CreatorID == session.UserID {
		return nil, ErrCannotApplyOwnListing
	}
	if !listing.IsActive {
		return nil, ErrListingInactive
	}
	if listing.IsFull() {
		return nil, ErrListingFull
	}

	applicant, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load applicant: %w", err)
	}
	app.ApplicantName = applicant.DisplayName
	app.ApplicantEmail = applicant.Email

	if err := s.appRepo.Create(ctx, app); err != nil {
		switch {
		case errors.Is(err, repositories.ErrApplicationListingInvalid):
			return nil, ErrListingNotFound
		case errors.Is(err, repositories.ErrApplicationApplicantInvalid):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	s.logger.Info("application submitted",
		slog.String("application_id", app.ID.String()),
		slog.String("listing_id", listingID.String()),
		slog.String("applicant_id", session.UserID.String()))
	notify(ctx, s.notifier, s.logger, live.ApplicationsTopic(listing.CreatorID))

	if s.mailer != nil {
		if err := s.mailer.SendApplicationReceivedEmail(listing.CreatorEmail, listing, app); err != nil {
			s.logger.Warn("failed to send application email", slog.String("application_id", app.ID.String()), slog.Any("error", err))
		}
	}
	return app, nil
}

func (s *applicationService) Respond(ctx context.Context, session models.Session, applicationID uuid.UUID, status models.ApplicationStatus) (*models.Application, error) {
	if !session.IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	if status != models.ApplicationAccepted && status != models.ApplicationRejected {
		return nil, ErrInvalidResponseStatus
	}

	var result *models.Application
	err := withTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		app, err := s.appRepo.GetByID(ctx, tx, applicationID)
		if err != nil {
			return err
		}

		// Блокируем объявление: параллельные ответы по одной команде выполняются по очереди.
		listing, err := s.listingRepo.GetForUpdate(ctx, tx, app.ListingID)
		if err != nil {
			return err
		}
		if listing.CreatorID != session.UserID {
			return ErrNotListingOwner
		}

		result, err = s.appRepo.Respond(ctx, tx, applicationID, status, s.now().UTC())
		if err != nil {
			return err
		}

		if status == models.ApplicationAccepted {
			if _, err := s.listingRepo.IncrementMembers(ctx, tx, listing.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrApplicationNotFound):
			return nil, ErrApplicationNotFound
		case errors.Is(err, repositories.ErrListingNotFound):
			return nil, ErrListingNotFound
		case errors.Is(err, repositories.ErrApplicationNotPending):
			return nil, ErrApplicationAlreadyResponded
		case errors.Is(err, repositories.ErrListingFull):
			return nil, ErrListingFull
		case errors.Is(err, ErrNotListingOwner):
			return nil, ErrNotListingOwner
		}
		return nil, fmt.Errorf("failed to respond to application %s: %w", applicationID, err)
	}

	s.logger.Info("application responded",
		slog.String("application_id", applicationID.String()),
		slog.String("status", string(status)))

	topics := []live.Topic{live.ApplicationsTopic(session.UserID)}
	if status == models.ApplicationAccepted {
		topics = append(topics, live.TopicListings)
	}
	notify(ctx, s.notifier, s.logger, topics...)
	return result, nil
}

func (s *applicationService) ListForOwner(ctx context.Context, session models.Session) ([]models.Application, error) {
	if !session.IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	return s.listForOwner(session.UserID)(ctx)
}

func (s *applicationService) SubscribeForOwner(ctx context.Context, session models.Session) (*live.Stream[[]models.Application], error) {
	if !session.IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	return live.Subscribe(ctx, s.broker, live.ApplicationsTopic(session.UserID), s.listForOwner(session.UserID)), nil
}

func (s *applicationService) listForOwner(ownerID uuid.UUID) live.Loader[[]models.Application] {
	return func(ctx context.Context) ([]models.Application, error) {
		apps, err := s.appRepo.ListByOwner(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("failed to list received applications: %w", err)
		}
		return apps, nil
	}
}

func (s *applicationService) ListMine(ctx context.Context, session models.Session) ([]models.Application, error) {
	if !session.IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	apps, err := s.appRepo.ListByApplicant(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submitted applications: %w", err)
	}
	return apps, nil
}
