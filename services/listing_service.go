package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/hackathon-partner-finder/filters"
	"github.com/Dosada05/hackathon-partner-finder/live"
	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/Dosada05/hackathon-partner-finder/repositories"
	"github.com/google/uuid"
)

type ListingService interface {
	Create(ctx context.Context, session models.Session, input CreateListingInput) (*models.Listing, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	Update(ctx context.Context, session models.Session, id uuid.UUID, input UpdateListingInput) (*models.Listing, error)
	ToggleActive(ctx context.Context, session models.Session, id uuid.UUID) (*models.Listing, error)
	Delete(ctx context.Context, session models.Session, id uuid.UUID, confirmed bool) error
	ListMine(ctx context.Context, session models.Session) ([]models.Listing, error)

	// ListActive - активные объявления по возрастанию даты, включая прошедшие.
	ListActive(ctx context.Context) ([]models.Listing, error)
	// Browse = Apply(Upcoming(ListActive), cfg).
	Browse(ctx context.Context, cfg filters.Config, now time.Time) ([]models.Listing, error)
	SubscribeActive(ctx context.Context) *live.Stream[[]models.Listing]

	DeactivatePast(ctx context.Context, now time.Time) (int64, error)
}

// CreateListingInput проверяется после нормализации (trim, чистка тегов).
type CreateListingInput struct {
	HackathonName string    `json:"hackathon_name" validate:"required,max=200"`
	HackathonDate time.Time `json:"hackathon_date" validate:"required,gt"`
	Location      string    `json:"location" validate:"required,max=200"`
	TechStack     []string  `json:"tech_stack" validate:"required,min=1,max=30,dive,required,max=50"`
	TeamSize      int       `json:"team_size" validate:"min=2,max=10"`
	Description   string    `json:"description" validate:"required,min=50,max=5000"`
}

// UpdateListingInput - частичное обновление; nil означает "не менять".
type UpdateListingInput struct {
	HackathonName *string    `json:"hackathon_name" validate:"omitempty,min=1,max=200"`
	HackathonDate *time.Time `json:"hackathon_date" validate:"omitempty,gt"`
	Location      *string    `json:"location" validate:"omitempty,min=1,max=200"`
	TechStack     []string   `json:"tech_stack" validate:"omitempty,min=1,max=30,dive,required,max=50"`
	TeamSize      *int       `json:"team_size" validate:"omitempty,min=2,max=10"`
	Description   *string    `json:"description" validate:"omitempty,min=50,max=5000"`
}

// normalized обрезает строки и чистит теги; nil-поля остаются nil.
func (in UpdateListingInput) normalized() UpdateListingInput {
	out := in
	out.HackathonName = trimmedPtr(in.HackathonName)
	out.Location = trimmedPtr(in.Location)
	out.Description = trimmedPtr(in.Description)
	if in.TechStack != nil {
		out.TechStack = normalizeTags(in.TechStack)
	}
	return out
}

func (in UpdateListingInput) IsEmpty() bool {
	return in.HackathonName == nil && in.HackathonDate == nil && in.Location == nil &&
		in.TechStack == nil && in.TeamSize == nil && in.Description == nil
}

type listingService struct {
	listingRepo repositories.ListingRepository
	userRepo    repositories.UserRepository
	broker      *live.Broker
	notifier    live.Notifier
	logger      *slog.Logger
}

func NewListingService(
	listingRepo repositories.ListingRepository,
	userRepo repositories.UserRepository,
	broker *live.Broker,
	notifier live.Notifier,
	logger *slog.Logger,
) ListingService {
	return &listingService{
		listingRepo: listingRepo,
		userRepo:    userRepo,
		broker:      broker,
		notifier:    notifier,
		logger:      logger,
	}
}

func (s *listingService) Create(ctx context.Context, session models.Session, input CreateListingInput) (*models.Listing, error) {
	if !session.IsAuthenticated() {
		return nil, ErrAuthRequired
	}

	input.HackathonName = strings.TrimSpace(input.HackathonName)
	input.Location = strings.TrimSpace(input.Location)
	input.TechStack = normalizeTags(input.TechStack)
	input.Description = strings.TrimSpace(input.Description)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	listing := &models.Listing{
		HackathonName:  input.HackathonName,
		HackathonDate:  input.HackathonDate,
		Location:       input.Location,
		TechStack:      input.TechStack,
		TeamSize:       input.TeamSize,
		CurrentMembers: 1, // создатель
		Description:    input.Description,
		IsActive:       true,
	}

	creator, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load listing creator: %w", err)
	}
	listing.CreatorID = creator.ID
	listing.CreatorName = creator.DisplayName
	listing.CreatorEmail = creator.Email

	if err := s.listingRepo.Create(ctx, listing); err != nil {
		return nil, s.mapRepoError(err)
	}

	s.logger.Info("listing created", slog.String("listing_id", listing.ID.String()), slog.String("creator_id", creator.ID.String()))
	notify(ctx, s.notifier, s.logger, live.TopicListings)
	return listing, nil
}

func (s *listingService) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, err := s.listingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	return listing, nil
}

func (s *listingService) Update(ctx context.Context, session models.Session, id uuid.UUID, input UpdateListingInput) (*models.Listing, error) {
	listing, err := s.ownedListing(ctx, session, id)
	if err != nil {
		return nil, err
	}

	input = input.normalized()
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	if input.HackathonName != nil {
		listing.HackathonName = *input.HackathonName
	}
	if input.HackathonDate != nil {
		listing.HackathonDate = *input.HackathonDate
	}
	if input.Location != nil {
		listing.Location = *input.Location
	}
	if input.TechStack != nil {
		listing.TechStack = input.TechStack
	}
	if input.TeamSize != nil {
		listing.TeamSize = *input.TeamSize
	}
	if input.Description != nil {
		listing.Description = *input.Description
	}

	if listing.TeamSize < listing.CurrentMembers {
		return nil, &ValidationError{Fields: map[string]string{
			"team_size": fmt.Sprintf("team size cannot be below the current number of members (%d)", listing.CurrentMembers),
		}}
	}

	if err := s.listingRepo.Update(ctx, listing); err != nil {
		return nil, s.mapRepoError(err)
	}

	notify(ctx, s.notifier, s.logger, live.TopicListings)
	return listing, nil
}

func (s *listingService) ToggleActive(ctx context.Context, session models.Session, id uuid.UUID) (*models.Listing, error) {
	listing, err := s.ownedListing(ctx, session, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.listingRepo.SetActive(ctx, id, !listing.IsActive)
	if err != nil {
		return nil, s.mapRepoError(err)
	}

	s.logger.Info("listing active flag changed", slog.String("listing_id", id.String()), slog.Bool("is_active", updated.IsActive))
	notify(ctx, s.notifier, s.logger, live.TopicListings)
	return updated, nil
}

func (s *listingService) Delete(ctx context.Context, session models.Session, id uuid.UUID, confirmed bool) error {
	if !confirmed {
		return ErrDeleteNotConfirmed
	}
	if _, err := s.ownedListing(ctx, session, id); err != nil {
		return err
	}

	if err := s.listingRepo.Delete(ctx, id); err != nil {
		return s.mapRepoError(err)
	}

	s.logger.Info("listing deleted", slog.String("listing_id", id.String()))
	// Каскад задевает заявки владельца и закладки любых пользователей.
	notify(ctx, s.notifier, s.logger, live.TopicListings, live.ApplicationsTopic(session.UserID), live.TopicBookmarksAll)
	return nil
}

func (s *listingService) ListMine(ctx context.Context, session models.Session) ([]models.Listing, error) {
	if !session.IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	listings, err := s.listingRepo.ListByCreator(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list own listings: %w", err)
	}
	return listings, nil
}

func (s *listingService) ListActive(ctx context.Context) ([]models.Listing, error) {
	listings, err := s.listingRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active listings: %w", err)
	}
	return listings, nil
}

func (s *listingService) Browse(ctx context.Context, cfg filters.Config, now time.Time) ([]models.Listing, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &ValidationError{Fields: map[string]string{"filters": err.Error()}}
	}
	listings, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return filters.Apply(filters.Upcoming(listings, now), cfg, now), nil
}

func (s *listingService) SubscribeActive(ctx context.Context) *live.Stream[[]models.Listing] {
	return live.Subscribe(ctx, s.broker, live.TopicListings, s.ListActive)
}

func (s *listingService) DeactivatePast(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.listingRepo.DeactivatePast(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("past listings deactivated", slog.Int64("count", n))
		notify(ctx, s.notifier, s.logger, live.TopicListings)
	}
	return n, nil
}

func (s *listingService) ownedListing(ctx context.Context, session models.Session, id uuid.UUID) (*models.Listing, error) {
	if !session.IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	listing, err := s.listingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	if listing.CreatorID != session.UserID {
		return nil, ErrNotListingOwner
	}
	return listing, nil
}

func (s *listingService) mapRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrListingNotFound):
		return ErrListingNotFound
	case errors.Is(err, repositories.ErrListingCreatorInvalid):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrListingCheckViolation):
		return &ValidationError{Fields: map[string]string{"team_size": "team size must be between 2 and 10 and not below current members"}}
	default:
		return fmt.Errorf("listing storage error: %w", err)
	}
}
