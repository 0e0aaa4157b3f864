package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден
	ErrUserNotFound        = errors.New("user not found")
	ErrListingNotFound     = errors.New("listing not found")
	ErrApplicationNotFound = errors.New("application not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed      = errors.New("validation failed")
	ErrDeleteNotConfirmed    = errors.New("deletion must be confirmed")
	ErrListingInactive       = errors.New("listing is not accepting applications")
	ErrCannotApplyOwnListing = errors.New("cannot apply to your own listing")
	ErrInvalidResponseStatus = errors.New("response status must be accepted or rejected")
	ErrPhotoUnsupportedType  = errors.New("unsupported photo content type")
	ErrPhotoStorageDisabled  = errors.New("photo uploads are not configured")

	// Ошибки конфликтов
	ErrUserEmailConflict           = errors.New("email address is already in use")
	ErrApplicationAlreadyResponded = errors.New("application has already been responded to")
	ErrListingFull                 = errors.New("team is already full")

	// Ошибки аутентификации и авторизации
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthRequired           = errors.New("authentication required")
	ErrResetTokenInvalid      = errors.New("invalid or expired password reset token")
	ErrOAuthProviderUnknown   = errors.New("unknown or disabled oauth provider")
	ErrOAuthStateMismatch     = errors.New("oauth state mismatch")
	ErrOAuthExchangeFailed    = errors.New("oauth sign-in failed")
	ErrNotListingOwner        = errors.New("only the listing owner can perform this action")
)

// ValidationError собирает ошибки по полям. errors.Is(err, ErrValidationFailed) == true.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
