package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/Dosada05/hackathon-partner-finder/repositories"
	"github.com/Dosada05/hackathon-partner-finder/storage"
	"github.com/google/uuid"
)

type UserService interface {
	GetMe(ctx context.Context, session models.Session) (*models.User, error)
	GetProfileByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, session models.Session, input UpdateProfileInput) (*models.User, error)
	UpdatePhoto(ctx context.Context, session models.Session, file io.Reader, contentType string) (*models.User, error)
}

// UpdateProfileInput - частичное обновление профиля; nil означает "не менять".
type UpdateProfileInput struct {
	DisplayName    *string  `json:"display_name" validate:"omitempty,min=2,max=100"`
	GithubUsername *string  `json:"github_username" validate:"omitempty,max=39"`
	LinkedinURL    *string  `json:"linkedin_url" validate:"omitempty,linkedin_url"`
	Bio            *string  `json:"bio" validate:"omitempty,max=2000"`
	Skills         []string `json:"skills" validate:"omitempty,max=30,dive,max=50"`
}

func (in UpdateProfileInput) IsEmpty() bool {
	return in.DisplayName == nil && in.GithubUsername == nil && in.LinkedinURL == nil && in.Bio == nil && in.Skills == nil
}

type userService struct {
	userRepo repositories.UserRepository
	uploader storage.FileUploader
	logger   *slog.Logger
}

// NewUserService: uploader может быть nil, тогда загрузка фото отключена.
func NewUserService(userRepo repositories.UserRepository, uploader storage.FileUploader, logger *slog.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		uploader: uploader,
		logger:   logger,
	}
}

func (s *userService) GetMe(ctx context.Context, session models.Session) (*models.User, error) {
	if !session.IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	return s.GetProfileByID(ctx, session.UserID)
}

func (s *userService) GetProfileByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	populateUserDetails(user, s.uploader)
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, session models.Session, input UpdateProfileInput) (*models.User, error) {
	if !session.IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", session.UserID, err)
	}

	// пустая строка очищает поле, поэтому проверяем уже нормализованные значения
	checked := UpdateProfileInput{
		DisplayName:    trimmedPtr(input.DisplayName),
		GithubUsername: optionalString(input.GithubUsername),
		LinkedinURL:    optionalString(input.LinkedinURL),
		Bio:            optionalString(input.Bio),
	}
	if input.Skills != nil {
		checked.Skills = normalizeTags(input.Skills)
	}
	if err := validateStruct(checked); err != nil {
		return nil, err
	}

	if checked.DisplayName != nil {
		user.DisplayName = *checked.DisplayName
	}
	if input.GithubUsername != nil {
		user.GithubUsername = checked.GithubUsername
	}
	if input.LinkedinURL != nil {
		user.LinkedinURL = checked.LinkedinURL
	}
	if input.Bio != nil {
		user.Bio = checked.Bio
	}
	if input.Skills != nil {
		user.Skills = checked.Skills
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	populateUserDetails(user, s.uploader)
	return user, nil
}

func (s *userService) UpdatePhoto(ctx context.Context, session models.Session, file io.Reader, contentType string) (*models.User, error) {
	if !session.IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	if s.uploader == nil {
		return nil, ErrPhotoStorageDisabled
	}
	ext, err := storage.ExtensionFromContentType(contentType)
	if err != nil {
		return nil, ErrPhotoUnsupportedType
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", session.UserID, err)
	}
	oldKey := derefString(user.PhotoKey)

	key := storage.ProfilePhotoKey(user.ID, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload photo: %w", err)
	}

	if err := s.userRepo.UpdatePhotoKey(ctx, user.ID, &key); err != nil {
		// Запись в БД не удалась: загруженный объект больше никому не нужен.
		if delErr := s.uploader.Delete(ctx, key); delErr != nil {
			s.logger.Error("failed to delete orphaned photo", slog.String("key", key), slog.Any("error", delErr))
		}
		return nil, fmt.Errorf("failed to save photo key: %w", err)
	}
	user.PhotoKey = &key

	if oldKey != "" {
		if err := s.uploader.Delete(ctx, oldKey); err != nil {
			s.logger.Warn("failed to delete previous photo", slog.String("key", oldKey), slog.Any("error", err))
		}
	}

	populateUserDetails(user, s.uploader)
	return user, nil
}
