package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/hackathon-partner-finder/live"
	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/Dosada05/hackathon-partner-finder/repositories"
	"github.com/google/uuid"
)

type BookmarkService interface {
	List(ctx context.Context, session models.Session) ([]models.Bookmark, error)
	Index(ctx context.Context, session models.Session) (models.BookmarkIndex, error)
	IsBookmarked(ctx context.Context, session models.Session, listingID uuid.UUID) (bool, error)
	// Toggle удаляет закладку, если она есть, иначе создаёт; возвращает новое состояние.
	Toggle(ctx context.Context, session models.Session, listingID uuid.UUID) (bool, error)
	// SetBookmarked идемпотентно приводит закладку к состоянию bookmarked.
	SetBookmarked(ctx context.Context, session models.Session, listingID uuid.UUID, bookmarked bool) error
	ListBookmarkedListings(ctx context.Context, session models.Session) ([]models.Listing, error)
	Subscribe(ctx context.Context, session models.Session) (*live.Stream[models.BookmarkIndex], error)
}

type bookmarkService struct {
	db           TxBeginner
	bookmarkRepo repositories.BookmarkRepository
	listingRepo  repositories.ListingRepository
	broker       *live.Broker
	notifier     live.Notifier
	logger       *slog.Logger
}

func NewBookmarkService(
	db TxBeginner,
	bookmarkRepo repositories.BookmarkRepository,
	listingRepo repositories.ListingRepository,
	broker *live.Broker,
	notifier live.Notifier,
	logger *slog.Logger,
) BookmarkService {
	return &bookmarkService{
		db:           db,
		bookmarkRepo: bookmarkRepo,
		listingRepo:  listingRepo,
		broker:       broker,
		notifier:     notifier,
		logger:       logger,
	}
}

func (s *bookmarkService) List(ctx context.Context, session models.Session) ([]models.Bookmark, error) {
	if !session.IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	bookmarks, err := s.bookmarkRepo.ListByUser(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	return bookmarks, nil
}

func (s *bookmarkService) Index(ctx context.Context, session models.Session) (models.BookmarkIndex, error) {
	if !session.IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	return s.loadIndex(session.UserID)(ctx)
}

func (s *bookmarkService) IsBookmarked(ctx context.Context, session models.Session, listingID uuid.UUID) (bool, error) {
	idx, err := s.Index(ctx, session)
	if err != nil {
		return false, err
	}
	return idx.Contains(listingID), nil
}

func (s *bookmarkService) Toggle(ctx context.Context, session models.Session, listingID uuid.UUID) (bool, error) {
	if !session.IsAuthenticated() {
		return false, ErrAuthRequired
	}

	var bookmarked bool
	err := withTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		removed, err := s.bookmarkRepo.Remove(ctx, tx, session.UserID, listingID)
		if err != nil {
			return err
		}
		if removed {
			bookmarked = false
			return nil
		}
		if _, err := s.bookmarkRepo.Add(ctx, tx, session.UserID, listingID); err != nil {
			return err
		}
		bookmarked = true
		return nil
	})
	if err != nil {
		return false, s.mapRepoError(err)
	}

	notify(ctx, s.notifier, s.logger, live.BookmarksTopic(session.UserID))
	return bookmarked, nil
}

func (s *bookmarkService) SetBookmarked(ctx context.Context, session models.Session, listingID uuid.UUID, bookmarked bool) error {
	if !session.IsAuthenticated() {
		return ErrAuthRequired
	}

	var (
		changed bool
		err     error
	)
	if bookmarked {
		changed, err = s.bookmarkRepo.Add(ctx, nil, session.UserID, listingID)
	} else {
		changed, err = s.bookmarkRepo.Remove(ctx, nil, session.UserID, listingID)
	}
	if err != nil {
		return s.mapRepoError(err)
	}

	if changed {
		notify(ctx, s.notifier, s.logger, live.BookmarksTopic(session.UserID))
	}
	return nil
}

func (s *bookmarkService) ListBookmarkedListings(ctx context.Context, session models.Session) ([]models.Listing, error) {
	bookmarks, err := s.List(ctx, session)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(bookmarks))
	for _, b := range bookmarks {
		ids = append(ids, b.ListingID)
	}
	listings, err := s.listingRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookmarked listings: %w", err)
	}
	return listings, nil
}

func (s *bookmarkService) Subscribe(ctx context.Context, session models.Session) (*live.Stream[models.BookmarkIndex], error) {
	if !session.IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	return live.Subscribe(ctx, s.broker, live.BookmarksTopic(session.UserID), s.loadIndex(session.UserID)), nil
}

func (s *bookmarkService) loadIndex(userID uuid.UUID) live.Loader[models.BookmarkIndex] {
	return func(ctx context.Context) (models.BookmarkIndex, error) {
		bookmarks, err := s.bookmarkRepo.ListByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list bookmarks: %w", err)
		}
		return models.NewBookmarkIndex(bookmarks), nil
	}
}

func (s *bookmarkService) mapRepoError(err error) error {
	if errors.Is(err, repositories.ErrBookmarkListingInvalid) {
		return ErrListingNotFound
	}
	return fmt.Errorf("bookmark storage error: %w", err)
}
