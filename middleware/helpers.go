package middleware

import (
	"context"
	"errors"

	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/google/uuid"
)

type contextKey string

const sessionContextKey contextKey = "session"

func WithSession(ctx context.Context, session models.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// GetSessionFromContext возвращает сессию запроса; без middleware - anonymous.
func GetSessionFromContext(ctx context.Context) models.Session {
	session, ok := ctx.Value(sessionContextKey).(models.Session)
	if !ok {
		return models.AnonymousSession()
	}
	return session
}

func GetUserIDFromContext(ctx context.Context) (uuid.UUID, error) {
	session := GetSessionFromContext(ctx)
	if !session.IsAuthenticated() {
		return uuid.Nil, errors.New("user session not found in context")
	}
	return session.UserID, nil
}
