package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/Dosada05/hackathon-partner-finder/services"
	"github.com/go-chi/chi/v5"
)

const (
	oauthStateCookie = "oauth_state"
	oauthCookiePath  = "/api/auth/oauth"
	oauthCookieTTL   = 10 * time.Minute
)

type AuthHandler struct {
	authService   services.AuthService
	secureCookies bool
}

// secureCookies выставляет флаг Secure у cookie со state (true за HTTPS).
func NewAuthHandler(authService services.AuthService, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		secureCookies: secureCookies,
	}
}

// Signup godoc
// @Summary Регистрация по email и паролю
// @Tags auth
// @Accept json
// @Produce json
// @Param input body services.SignupInput true "данные регистрации"
// @Success 201 {object} services.AuthResult
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]interface{}
// @Router /api/auth/signup [post]
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var input services.SignupInput

	err := readJSON(w, r, &input)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.authService.Signup(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusCreated, result, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Login godoc
// @Summary Вход по email и паролю
// @Tags auth
// @Accept json
// @Produce json
// @Param input body models.Credentials true "email и пароль"
// @Success 200 {object} services.AuthResult
// @Failure 401 {object} map[string]string
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input models.Credentials

	err := readJSON(w, r, &input)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if input.Email == "" || input.Password == "" {
		badRequestResponse(w, r, errors.New("email and password are required"))
		return
	}

	result, err := h.authService.Login(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, result, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ForgotPassword godoc
// @Summary Запросить письмо для сброса пароля
// @Tags auth
// @Accept json
// @Produce json
// @Param input body object true "{\"email\": \"...\"}"
// @Success 202 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /api/auth/password/forgot [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
	}

	err := readJSON(w, r, &input)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if strings.TrimSpace(input.Email) == "" {
		badRequestResponse(w, r, errors.New("email is required"))
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), input.Email); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	// Ответ одинаковый независимо от того, есть ли такой пользователь
	response := jsonResponse{"message": "if the account exists, a reset link has been sent"}
	if err := writeJSON(w, http.StatusAccepted, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResetPassword godoc
// @Summary Сбросить пароль по токену из письма
// @Tags auth
// @Accept json
// @Produce json
// @Param input body object true "{\"token\": \"...\", \"new_password\": \"...\"}"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]interface{}
// @Router /api/auth/password/reset [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}

	err := readJSON(w, r, &input)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Token == "" {
		badRequestResponse(w, r, errors.New("token is required"))
		return
	}

	if err := h.authService.ResetPassword(r.Context(), input.Token, input.NewPassword); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "password has been reset"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Providers godoc
// @Summary Список включённых OAuth-провайдеров
// @Tags auth
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/auth/oauth [get]
func (h *AuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, jsonResponse{"providers": h.authService.Providers()}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// OAuthBegin перенаправляет на провайдера. С ?mode=json вместо редиректа
// возвращает адрес и сессию в состоянии authenticating (для SPA).
//
// @Tags auth
// @Param provider path string true "google | github"
// @Param mode query string false "json"
// @Success 200 {object} services.OAuthRedirect
// @Success 302
// @Failure 404 {object} map[string]string
// @Router /api/auth/oauth/{provider}/begin [get]
func (h *AuthHandler) OAuthBegin(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	redirect, err := h.authService.BeginOAuth(r.Context(), provider)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    redirect.State,
		Path:     oauthCookiePath,
		MaxAge:   int(oauthCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	if r.URL.Query().Get("mode") == "json" {
		if err := writeJSON(w, http.StatusOK, redirect, nil); err != nil {
			serverErrorResponse(w, r, err)
		}
		return
	}
	http.Redirect(w, r, redirect.URL, http.StatusFound)
}

// OAuthCallback godoc
// @Summary Завершить вход через OAuth
// @Tags auth
// @Produce json
// @Param provider path string true "google | github"
// @Param code query string true "код авторизации"
// @Param state query string true "state, совпадающий с cookie oauth_state"
// @Success 200 {object} services.AuthResult
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/auth/oauth/{provider}/callback [get]
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	query := r.URL.Query()

	// cookie одноразовая
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     oauthCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	if providerErr := query.Get("error"); providerErr != "" {
		unauthorizedResponse(w, r, "sign-in was cancelled or denied: "+providerErr)
		return
	}

	state := query.Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || cookie.Value != state {
		mapServiceErrorToHTTP(w, r, services.ErrOAuthStateMismatch)
		return
	}

	code := query.Get("code")
	if code == "" {
		badRequestResponse(w, r, errors.New("missing authorization code"))
		return
	}

	result, _, err := h.authService.CompleteOAuth(r.Context(), provider, state, code)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
