package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/Dosada05/hackathon-partner-finder/repositories"
	"github.com/Dosada05/hackathon-partner-finder/utils"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	minDisplayNameLength = 2

	resetTokenLength   = 32
	resetTokenLifetime = time.Hour
	oauthStateLifetime = 10 * time.Minute
)

type AuthService interface {
	Signup(ctx context.Context, input SignupInput) (*AuthResult, error)
	Login(ctx context.Context, input models.Credentials) (*AuthResult, error)
	// RequestPasswordReset не сообщает, существует ли email.
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error

	// BeginOAuth возвращает адрес провайдера, подписанный state и сессию в состоянии authenticating.
	BeginOAuth(ctx context.Context, provider string) (*OAuthRedirect, error)
	// CompleteOAuth завершает вход; при ошибке возвращает сессию в состоянии error.
	CompleteOAuth(ctx context.Context, provider, state, code string) (*AuthResult, models.Session, error)
	Providers() []string
}

type SignupInput struct {
	DisplayName string `json:"display_name" validate:"min=2,max=100"`
	Email       string `json:"email" validate:"required,email_address,max=254"`
	Password    string `json:"password" validate:"min=6,max=72"` // bcrypt читает не больше 72 байт
}

type resetPasswordInput struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password" validate:"min=6,max=72"`
}

type AuthResult struct {
	User    *models.User   `json:"user"`
	Token   string         `json:"token"`
	Session models.Session `json:"session"`
}

type OAuthRedirect struct {
	URL     string         `json:"url"`
	State   string         `json:"state"`
	Session models.Session `json:"session"`
}

type authService struct {
	userRepo  repositories.UserRepository
	mailer    Mailer
	providers map[string]IdentityProvider
	jwtSecret []byte
	logger    *slog.Logger
	now       func() time.Time
}

func NewAuthService(
	userRepo repositories.UserRepository,
	mailer Mailer,
	providers []IdentityProvider,
	jwtSecret string,
	logger *slog.Logger,
) AuthService {
	byName := make(map[string]IdentityProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &authService{
		userRepo:  userRepo,
		mailer:    mailer,
		providers: byName,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
		now:       time.Now,
	}
}

func (s *authService) Signup(ctx context.Context, input SignupInput) (*AuthResult, error) {
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	input.Email = utils.NormalizeEmail(input.Email)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	name, email := input.DisplayName, input.Email

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	user := &models.User{
		Email:        email,
		DisplayName:  name,
		PasswordHash: hashedPassword,
		Provider:     models.ProviderPassword,
		Skills:       []string{},
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserEmailConflict) {
			return nil, ErrUserEmailConflict
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	s.logger.Info("user signed up", slog.String("user_id", user.ID.String()), slog.String("provider", string(user.Provider)))
	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, input models.Credentials) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, utils.NormalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if !utils.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, ErrAuthInvalidCredentials
	}

	return s.issue(user)
}

func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			// Не раскрываем, зарегистрирован ли email
			return nil
		}
		return fmt.Errorf("failed to find user by email: %w", err)
	}

	token, err := utils.GenerateSecureToken(resetTokenLength)
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	if err := s.userRepo.SetPasswordResetToken(ctx, user.ID, token, s.now().Add(resetTokenLifetime)); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendPasswordResetEmail(user, token, resetTokenLifetime); err != nil {
			s.logger.Error("failed to send password reset email", slog.String("user_id", user.ID.String()), slog.Any("error", err))
		}
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validateStruct(resetPasswordInput{Token: token, NewPassword: newPassword}); err != nil {
		return err
	}
	if token == "" {
		return ErrResetTokenInvalid
	}

	user, err := s.userRepo.GetByPasswordResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("failed to find reset token: %w", err)
	}
	if user.PasswordResetExpiresAt == nil || !s.now().Before(*user.PasswordResetExpiresAt) {
		return ErrResetTokenInvalid
	}

	hashedPassword, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("ошибка хеширования пароля: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hashedPassword); err != nil {
		return fmt.Errorf("ошибка обновления пароля: %w", err)
	}

	s.logger.Info("password reset", slog.String("user_id", user.ID.String()))
	return nil
}

func (s *authService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for _, name := range []string{string(models.ProviderGoogle), string(models.ProviderGitHub)} {
		if _, ok := s.providers[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

func (s *authService) BeginOAuth(_ context.Context, provider string) (*OAuthRedirect, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, ErrOAuthProviderUnknown
	}

	nonce, err := utils.GenerateSecureToken(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate oauth state: %w", err)
	}
	now := s.now()
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"provider": provider,
		"nonce":    nonce,
		"exp":      now.Add(oauthStateLifetime).Unix(),
		"iat":      now.Unix(),
	}).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign oauth state: %w", err)
	}

	return &OAuthRedirect{
		URL:     p.AuthCodeURL(state),
		State:   state,
		Session: models.Session{State: models.SessionAuthenticating},
	}, nil
}

func (s *authService) CompleteOAuth(ctx context.Context, provider, state, code string) (*AuthResult, models.Session, error) {
	result, err := s.completeOAuth(ctx, provider, state, code)
	if err != nil {
		s.logger.Warn("oauth sign-in failed", slog.String("provider", provider), slog.Any("error", err))
		return nil, models.FailedSession(err), err
	}
	return result, result.Session, nil
}

func (s *authService) completeOAuth(ctx context.Context, provider, state, code string) (*AuthResult, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, ErrOAuthProviderUnknown
	}

	claims, err := utils.ParseJWT(s.jwtSecret, state)
	if err != nil || utils.StringClaim(claims, "provider") != provider {
		return nil, ErrOAuthStateMismatch
	}
	if code == "" {
		return nil, ErrOAuthExchangeFailed
	}

	identity, err := p.Identity(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOAuthExchangeFailed, err)
	}
	email := utils.NormalizeEmail(identity.Email)
	if !utils.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: provider returned no usable email", ErrOAuthExchangeFailed)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, repositories.ErrUserNotFound):
		// Первый вход: создаём документ пользователя.
		user, err = s.createOAuthUser(ctx, models.AuthProvider(provider), email, identity)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return s.issue(user)
}

func (s *authService) createOAuthUser(ctx context.Context, provider models.AuthProvider, email string, identity *ExternalIdentity) (*models.User, error) {
	name := strings.TrimSpace(identity.Name)
	if runeLen(name) < minDisplayNameLength {
		name = strings.Split(email, "@")[0]
	}

	user := &models.User{
		ID:          uuid.New(),
		Email:       email,
		DisplayName: name,
		Provider:    provider,
		Skills:      []string{},
	}
	if identity.GithubUsername != "" {
		user.GithubUsername = &identity.GithubUsername
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserEmailConflict) {
			// Параллельный первый вход уже создал пользователя.
			return s.userRepo.GetByEmail(ctx, email)
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	s.logger.Info("user signed up", slog.String("user_id", user.ID.String()), slog.String("provider", string(provider)))
	return user, nil
}

func (s *authService) issue(user *models.User) (*AuthResult, error) {
	token, err := utils.GenerateJWT(s.jwtSecret, user.ID, user.Email, user.DisplayName, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	user.PasswordHash = ""
	return &AuthResult{
		User:    user,
		Token:   token,
		Session: models.AuthenticatedSession(user.ID, user.Email, user.DisplayName),
	}, nil
}
