package utils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost - переменная, чтобы тесты могли снизить стоимость хеширования.
var BcryptCost = 12

const (
	ClaimUserID = "user_id"
	ClaimEmail  = "email"
	ClaimName   = "name"

	TokenLifetime = 24 * time.Hour
)

var (
	emailRegex    = regexp.MustCompile(`^\S+@\S+$`)
	githubRegex   = regexp.MustCompile(`^https?://(www\.)?github\.com/[a-zA-Z0-9-]+/?$`)
	linkedinRegex = regexp.MustCompile(`^https?://(www\.)?linkedin\.com/in/[a-zA-Z0-9-]+/?$`)

	ErrInvalidToken = errors.New("invalid or expired token")
)

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	if hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func IsValidGithubURL(raw string) bool {
	return githubRegex.MatchString(raw)
}

func IsValidLinkedinURL(raw string) bool {
	return linkedinRegex.MatchString(raw)
}

// GenerateSecureToken возвращает hex-строку из length случайных байт.
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NormalizeEmail приводит адрес к виду, в котором он хранится в users.email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func GenerateJWT(secret []byte, userID uuid.UUID, email, name string, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		ClaimUserID: userID.String(),
		ClaimEmail:  email,
		ClaimName:   name,
		"iat":       now.Unix(),
		"exp":       now.Add(TokenLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseJWT проверяет подпись и срок действия токена и возвращает его claims.
func ParseJWT(secret []byte, tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserIDFromClaims достаёт идентификатор пользователя из claim user_id.
func UserIDFromClaims(claims jwt.MapClaims) (uuid.UUID, error) {
	raw, ok := claims[ClaimUserID]
	if !ok {
		return uuid.Nil, fmt.Errorf("missing '%s' claim in token", ClaimUserID)
	}
	s, ok := raw.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid type for '%s' claim: expected string, got %T", ClaimUserID, raw)
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid user ID value in '%s' claim: %q", ClaimUserID, s)
	}
	return id, nil
}

func StringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}
