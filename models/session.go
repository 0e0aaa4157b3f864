package models

import "github.com/google/uuid"

type SessionState string

const (
	SessionAnonymous      SessionState = "anonymous"
	SessionAuthenticating SessionState = "authenticating"
	SessionAuthenticated  SessionState = "authenticated"
	SessionError          SessionState = "error"
)

// Session описывает состояние аутентификации текущего запроса.
// Передаётся явно в обработчики и сервисы вместо глобального состояния.
type Session struct {
	State  SessionState `json:"state"`
	UserID uuid.UUID    `json:"user_id,omitempty"`
	Email  string       `json:"email,omitempty"`
	Name   string       `json:"name,omitempty"`
	Err    error        `json:"-"`
}

func AnonymousSession() Session {
	return Session{State: SessionAnonymous}
}

func AuthenticatedSession(userID uuid.UUID, email, name string) Session {
	return Session{State: SessionAuthenticated, UserID: userID, Email: email, Name: name}
}

func FailedSession(err error) Session {
	return Session{State: SessionError, Err: err}
}

func (s Session) IsAuthenticated() bool {
	return s.State == SessionAuthenticated && s.UserID != uuid.Nil
}
