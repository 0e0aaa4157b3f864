package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/Dosada05/hackathon-partner-finder/utils"
)

type Authenticator struct {
	secret []byte
	logger *slog.Logger
}

func NewAuthenticator(jwtSecret string, logger *slog.Logger) *Authenticator {
	return &Authenticator{secret: []byte(jwtSecret), logger: logger}
}

// Session кладёт в контекст сессию запроса: anonymous без токена,
// authenticated при валидном токене, error при невалидном.
// Токен берётся только из заголовка Authorization.
func (a *Authenticator) Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := a.sessionFromToken(headerToken(r))
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// QueryTokenSession - Session для WebSocket-маршрутов: браузер не может
// передать заголовок при upgrade, поэтому дополнительно читается ?token=.
func (a *Authenticator) QueryTokenSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := headerToken(r)
		if token == "" && r.Header.Get("Authorization") == "" {
			token = r.URL.Query().Get("token")
		}
		session := a.sessionFromToken(token)
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// RequireAuth пропускает только запросы с сессией authenticated.
// Сессию должен положить Session или QueryTokenSession.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := GetSessionFromContext(r.Context())
		if !session.IsAuthenticated() {
			message := "authentication required"
			if session.State == models.SessionError {
				message = "invalid or expired token"
				a.logger.Debug("rejected token", slog.Any("error", session.Err), slog.String("path", r.URL.Path))
			}
			writeError(w, http.StatusUnauthorized, message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) sessionFromToken(tokenString string) models.Session {
	if tokenString == "" {
		return models.AnonymousSession()
	}

	claims, err := utils.ParseJWT(a.secret, tokenString)
	if err != nil {
		return models.FailedSession(err)
	}
	userID, err := utils.UserIDFromClaims(claims)
	if err != nil {
		return models.FailedSession(err)
	}
	return models.AuthenticatedSession(userID, utils.StringClaim(claims, utils.ClaimEmail), utils.StringClaim(claims, utils.ClaimName))
}

func headerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
