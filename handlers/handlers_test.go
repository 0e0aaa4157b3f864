package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/hackathon-partner-finder/filters"
	"github.com/Dosada05/hackathon-partner-finder/middleware"
	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/Dosada05/hackathon-partner-finder/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Заглушки сервисов: невызываемые методы берутся из встроенного nil-интерфейса.
type stubListingService struct {
	services.ListingService
	browse       func(ctx context.Context, cfg filters.Config, now time.Time) ([]models.Listing, error)
	create       func(ctx context.Context, session models.Session, input services.CreateListingInput) (*models.Listing, error)
	deleteFn     func(ctx context.Context, session models.Session, id uuid.UUID, confirmed bool) error
	getByID      func(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	toggleActive func(ctx context.Context, session models.Session, id uuid.UUID) (*models.Listing, error)
}

func (s *stubListingService) Browse(ctx context.Context, cfg filters.Config, now time.Time) ([]models.Listing, error) {
	return s.browse(ctx, cfg, now)
}

func (s *stubListingService) Create(ctx context.Context, session models.Session, input services.CreateListingInput) (*models.Listing, error) {
	return s.create(ctx, session, input)
}

func (s *stubListingService) Delete(ctx context.Context, session models.Session, id uuid.UUID, confirmed bool) error {
	return s.deleteFn(ctx, session, id, confirmed)
}

func (s *stubListingService) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return s.getByID(ctx, id)
}

func (s *stubListingService) ToggleActive(ctx context.Context, session models.Session, id uuid.UUID) (*models.Listing, error) {
	return s.toggleActive(ctx, session, id)
}

type stubBookmarkService struct {
	services.BookmarkService
	index   models.BookmarkIndex
	toggled map[uuid.UUID]bool
	set     map[uuid.UUID]bool
}

func (s *stubBookmarkService) Index(ctx context.Context, session models.Session) (models.BookmarkIndex, error) {
	return s.index, nil
}

func (s *stubBookmarkService) IsBookmarked(ctx context.Context, session models.Session, listingID uuid.UUID) (bool, error) {
	return s.index.Contains(listingID), nil
}

func (s *stubBookmarkService) Toggle(ctx context.Context, session models.Session, listingID uuid.UUID) (bool, error) {
	if s.toggled == nil {
		s.toggled = map[uuid.UUID]bool{}
	}
	s.toggled[listingID] = !s.toggled[listingID]
	return s.toggled[listingID], nil
}

func (s *stubBookmarkService) SetBookmarked(ctx context.Context, session models.Session, listingID uuid.UUID, bookmarked bool) error {
	if s.set == nil {
		s.set = map[uuid.UUID]bool{}
	}
	s.set[listingID] = bookmarked
	return nil
}

type stubApplicationService struct {
	services.ApplicationService
	respond func(ctx context.Context, session models.Session, id uuid.UUID, status models.ApplicationStatus) (*models.Application, error)
	submit  func(ctx context.Context, session models.Session, listingID uuid.UUID, input services.SubmitApplicationInput) (*models.Application, error)
}

func (s *stubApplicationService) Respond(ctx context.Context, session models.Session, id uuid.UUID, status models.ApplicationStatus) (*models.Application, error) {
	return s.respond(ctx, session, id, status)
}

func (s *stubApplicationService) Submit(ctx context.Context, session models.Session, listingID uuid.UUID, input services.SubmitApplicationInput) (*models.Application, error) {
	return s.submit(ctx, session, listingID, input)
}

type stubAuthService struct {
	services.AuthService
	completeCalled bool
}

func (s *stubAuthService) BeginOAuth(ctx context.Context, provider string) (*services.OAuthRedirect, error) {
	if provider != "github" {
		return nil, services.ErrOAuthProviderUnknown
	}
	return &services.OAuthRedirect{
		URL:     "https://github.com/login/oauth/authorize?state=signed",
		State:   "signed",
		Session: models.Session{State: models.SessionAuthenticating},
	}, nil
}

func (s *stubAuthService) CompleteOAuth(ctx context.Context, provider, state, code string) (*services.AuthResult, models.Session, error) {
	s.completeCalled = true
	session := models.AuthenticatedSession(uuid.New(), "dev@example.com", "Dev")
	return &services.AuthResult{User: &models.User{Email: "dev@example.com"}, Token: "jwt", Session: session}, session, nil
}

func withTestSession(session models.Session) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithSession(r.Context(), session)))
		})
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%q)", err, rec.Body.String())
	}
	return body
}

func TestMapServiceErrorToHTTP(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&services.ValidationError{Fields: map[string]string{"message": "too short"}}, http.StatusUnprocessableEntity},
		{fmt.Errorf("wrapped: %w", services.ErrListingNotFound), http.StatusNotFound},
		{services.ErrApplicationNotFound, http.StatusNotFound},
		{services.ErrApplicationAlreadyResponded, http.StatusConflict},
		{services.ErrListingFull, http.StatusConflict},
		{services.ErrUserEmailConflict, http.StatusConflict},
		{services.ErrDeleteNotConfirmed, http.StatusBadRequest},
		{services.ErrListingInactive, http.StatusBadRequest},
		{services.ErrCannotApplyOwnListing, http.StatusBadRequest},
		{services.ErrOAuthStateMismatch, http.StatusBadRequest},
		{services.ErrOAuthProviderUnknown, http.StatusNotFound},
		{services.ErrAuthRequired, http.StatusUnauthorized},
		{services.ErrAuthInvalidCredentials, http.StatusUnauthorized},
		{services.ErrNotListingOwner, http.StatusForbidden},
		{services.ErrPhotoStorageDisabled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			mapServiceErrorToHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if _, ok := decodeBody(t, rec)["error"]; !ok {
				t.Fatalf("body has no error key: %s", rec.Body.String())
			}
		})
	}
}

func TestReadJSONRejectsBadBodies(t *testing.T) {
	tests := map[string]string{
		"empty":       "",
		"malformed":   `{"status": `,
		"unknown key": `{"status": "accepted", "extra": 1}`,
		"two values":  `{"status": "accepted"}{"status": "rejected"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			var dst struct {
				Status string `json:"status"`
			}
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			if err := readJSON(httptest.NewRecorder(), r, &dst); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestListListingsMarksBookmarks(t *testing.T) {
	saved := models.Listing{ID: uuid.New(), TeamSize: 4, CurrentMembers: 1}
	other := models.Listing{ID: uuid.New(), TeamSize: 2, CurrentMembers: 2}

	var gotCfg filters.Config
	ls := &stubListingService{browse: func(_ context.Context, cfg filters.Config, _ time.Time) ([]models.Listing, error) {
		gotCfg = cfg
		return []models.Listing{saved, other}, nil
	}}
	bs := &stubBookmarkService{index: models.BookmarkIndex{saved.ID: {}}}
	h := NewListingHandler(ls, bs)

	router := chi.NewRouter()
	router.Use(withTestSession(models.AuthenticatedSession(uuid.New(), "a@b.c", "A")))
	router.Get("/api/listings", h.ListListings)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings?q=go&tags=AI,%20Web3&location=online", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotCfg.Text != "go" || len(gotCfg.Tags) != 2 || gotCfg.Location != filters.LocationOnline || gotCfg.Date != filters.DateAll {
		t.Fatalf("unexpected filters passed to Browse: %+v", gotCfg)
	}

	var body struct {
		Listings []listingView `json:"listings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Listings) != 2 {
		t.Fatalf("got %d listings", len(body.Listings))
	}
	if !body.Listings[0].IsBookmarked || body.Listings[1].IsBookmarked {
		t.Fatalf("bookmark marks wrong: %+v", body.Listings)
	}
	if body.Listings[0].SpotsLeft != 3 || body.Listings[1].SpotsLeft != 0 {
		t.Fatalf("spots left wrong: %+v", body.Listings)
	}
}

func TestListListingsRejectsUnknownFilter(t *testing.T) {
	h := NewListingHandler(&stubListingService{}, &stubBookmarkService{})
	router := chi.NewRouter()
	router.Get("/api/listings", h.ListListings)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings?date=year", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateListingReturnsCreated(t *testing.T) {
	userID := uuid.New()
	ls := &stubListingService{create: func(_ context.Context, session models.Session, input services.CreateListingInput) (*models.Listing, error) {
		if session.UserID != userID {
			t.Errorf("session not passed through: %+v", session)
		}
		return &models.Listing{ID: uuid.New(), CreatorID: session.UserID, HackathonName: input.HackathonName, TeamSize: input.TeamSize, CurrentMembers: 1, IsActive: true}, nil
	}}
	h := NewListingHandler(ls, &stubBookmarkService{})

	router := chi.NewRouter()
	router.Use(withTestSession(models.AuthenticatedSession(userID, "a@b.c", "A")))
	router.Post("/api/listings", h.CreateListing)

	body := `{"hackathon_name":"HackZurich","hackathon_date":"2030-09-01T09:00:00Z","location":"Zurich","tech_stack":["Go"],"team_size":4,"description":"x"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/listings", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	listing, ok := decodeBody(t, rec)["listing"].(map[string]interface{})
	if !ok || listing["hackathon_name"] != "HackZurich" || listing["current_members"] != float64(1) {
		t.Fatalf("unexpected listing: %v", listing)
	}
}

func TestDeleteListingConfirmation(t *testing.T) {
	var gotConfirmed bool
	ls := &stubListingService{deleteFn: func(_ context.Context, _ models.Session, _ uuid.UUID, confirmed bool) error {
		gotConfirmed = confirmed
		if !confirmed {
			return services.ErrDeleteNotConfirmed
		}
		return nil
	}}
	h := NewListingHandler(ls, &stubBookmarkService{})
	router := chi.NewRouter()
	router.Delete("/api/listings/{listingID}", h.DeleteListing)

	id := uuid.New()
	tests := []struct {
		query     string
		status    int
		confirmed bool
	}{
		{"", http.StatusBadRequest, false},
		{"?confirm=false", http.StatusBadRequest, false},
		{"?confirm=true", http.StatusNoContent, true},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/listings/"+id.String()+tt.query, nil))
		if rec.Code != tt.status || gotConfirmed != tt.confirmed {
			t.Errorf("%q: status = %d confirmed = %v, want %d %v", tt.query, rec.Code, gotConfirmed, tt.status, tt.confirmed)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/listings/not-a-uuid?confirm=true", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id: status = %d, want 400", rec.Code)
	}
}

func TestGetListingNotFound(t *testing.T) {
	ls := &stubListingService{getByID: func(context.Context, uuid.UUID) (*models.Listing, error) {
		return nil, services.ErrListingNotFound
	}}
	h := NewListingHandler(ls, &stubBookmarkService{})
	router := chi.NewRouter()
	router.Get("/api/listings/{listingID}", h.GetListing)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/"+uuid.NewString(), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRespondToApplication(t *testing.T) {
	appID := uuid.New()
	calls := 0
	as := &stubApplicationService{respond: func(_ context.Context, _ models.Session, id uuid.UUID, status models.ApplicationStatus) (*models.Application, error) {
		calls++
		if calls > 1 {
			return nil, services.ErrApplicationAlreadyResponded
		}
		return &models.Application{ID: id, Status: status}, nil
	}}
	h := NewApplicationHandler(as)
	router := chi.NewRouter()
	router.Post("/api/applications/{applicationID}/respond", h.RespondToApplication)

	do := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/applications/"+appID.String()+"/respond", strings.NewReader(body)))
		return rec
	}

	if rec := do(`{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing status: got %d", rec.Code)
	}
	rec := do(`{"status":"accepted"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("first respond: status = %d, body %s", rec.Code, rec.Body.String())
	}
	if app := decodeBody(t, rec)["application"].(map[string]interface{}); app["status"] != "accepted" {
		t.Fatalf("unexpected application: %v", app)
	}
	if rec := do(`{"status":"rejected"}`); rec.Code != http.StatusConflict {
		t.Fatalf("second respond: status = %d, want 409", rec.Code)
	}
}

func TestSubmitApplicationValidation(t *testing.T) {
	as := &stubApplicationService{submit: func(context.Context, models.Session, uuid.UUID, services.SubmitApplicationInput) (*models.Application, error) {
		return nil, &services.ValidationError{Fields: map[string]string{"message": "must be at least 50 characters"}}
	}}
	h := NewApplicationHandler(as)
	router := chi.NewRouter()
	router.Post("/api/listings/{listingID}/applications", h.SubmitApplication)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/listings/"+uuid.NewString()+"/applications", strings.NewReader(`{"message":"hi"}`)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	fields, ok := decodeBody(t, rec)["error"].(map[string]interface{})
	if !ok || fields["message"] == nil {
		t.Fatalf("expected field errors, got %s", rec.Body.String())
	}
}

func TestBookmarkEndpoints(t *testing.T) {
	bs := &stubBookmarkService{}
	h := NewBookmarkHandler(bs)
	router := chi.NewRouter()
	router.Put("/api/bookmarks/{listingID}", h.AddBookmark)
	router.Delete("/api/bookmarks/{listingID}", h.RemoveBookmark)
	router.Post("/api/bookmarks/{listingID}/toggle", h.ToggleBookmark)

	id := uuid.New()
	do := func(method, path string) map[string]interface{} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s %s: status = %d", method, path, rec.Code)
		}
		return decodeBody(t, rec)
	}

	if body := do(http.MethodPost, "/api/bookmarks/"+id.String()+"/toggle"); body["bookmarked"] != true {
		t.Fatalf("first toggle: %v", body)
	}
	if body := do(http.MethodPost, "/api/bookmarks/"+id.String()+"/toggle"); body["bookmarked"] != false {
		t.Fatalf("second toggle: %v", body)
	}

	do(http.MethodPut, "/api/bookmarks/"+id.String())
	if !bs.set[id] {
		t.Fatal("PUT did not set the bookmark")
	}
	do(http.MethodDelete, "/api/bookmarks/"+id.String())
	if bs.set[id] {
		t.Fatal("DELETE did not unset the bookmark")
	}
}

func TestOAuthBeginSetsStateCookie(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{}, false)
	router := chi.NewRouter()
	router.Get("/api/auth/oauth/{provider}/begin", h.OAuthBegin)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/oauth/github/begin", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "https://github.com/") {
		t.Fatalf("unexpected redirect %q", loc)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != oauthStateCookie || cookies[0].Value != "signed" || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/oauth/myspace/begin", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown provider: status = %d, want 404", rec.Code)
	}
}

func TestOAuthCallbackChecksStateCookie(t *testing.T) {
	auth := &stubAuthService{}
	h := NewAuthHandler(auth, false)
	router := chi.NewRouter()
	router.Get("/api/auth/oauth/{provider}/callback", h.OAuthCallback)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/oauth/github/callback?state=signed&code=abc", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "other"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || auth.completeCalled {
		t.Fatalf("mismatched state: status = %d, completeCalled = %v", rec.Code, auth.completeCalled)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/oauth/github/callback?state=signed&code=abc", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "signed"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["token"] != "jwt" {
		t.Fatalf("unexpected body: %v", body)
	}
	if session := body["session"].(map[string]interface{}); session["state"] != string(models.SessionAuthenticated) {
		t.Fatalf("unexpected session: %v", session)
	}
}

func TestDecodeFilters(t *testing.T) {
	cfg, err := decodeFilters([]byte(`{"type":"filters","payload":{"text":"  rust ","tags":["AI",""],"location":"offline"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Text != "  rust " || len(cfg.Tags) != 1 || cfg.Location != filters.LocationOffline || cfg.Date != filters.DateAll {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	if _, err := decodeFilters([]byte(`{"type":"filters","payload":{"date":"decade"}}`)); !errors.Is(err, filters.ErrInvalidDateWindow) {
		t.Fatalf("expected ErrInvalidDateWindow, got %v", err)
	}
	if _, err := decodeFilters([]byte(`{"type":"ping"}`)); !errors.Is(err, errUnsupportedMessage) {
		t.Fatalf("expected errUnsupportedMessage, got %v", err)
	}
	if _, err := decodeFilters([]byte(`nope`)); !errors.Is(err, errInvalidMessage) {
		t.Fatalf("expected errInvalidMessage, got %v", err)
	}
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws/listings", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	if !originChecker([]string{"*"})(req("https://evil.example")) {
		t.Fatal("wildcard should allow any origin")
	}
	check := originChecker([]string{"https://app.example"})
	if !check(req("https://app.example")) || !check(req("")) {
		t.Fatal("listed origin and non-browser client should be allowed")
	}
	if check(req("https://evil.example")) {
		t.Fatal("unlisted origin should be rejected")
	}
}
