package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Dosada05/hackathon-partner-finder/live"
	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/Dosada05/hackathon-partner-finder/repositories"
	"github.com/Dosada05/hackathon-partner-finder/storage"
	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sql expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func sessionFor(u *models.User) models.Session {
	return models.AuthenticatedSession(u.ID, u.Email, u.DisplayName)
}

// --- users ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repositories.ErrUserEmailConflict
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) GetByPasswordResetToken(_ context.Context, token string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.PasswordResetToken != nil && *u.PasswordResetToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[user.ID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.DisplayName = user.DisplayName
	u.GithubUsername = user.GithubUsername
	u.LinkedinURL = user.LinkedinURL
	u.Bio = user.Bio
	u.Skills = user.Skills
	return nil
}

func (r *fakeUserRepo) UpdatePhotoKey(_ context.Context, id uuid.UUID, photoKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.PhotoKey = photoKey
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordResetToken = nil
	u.PasswordResetExpiresAt = nil
	return nil
}

func (r *fakeUserRepo) SetPasswordResetToken(_ context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.PasswordResetToken = &token
	u.PasswordResetExpiresAt = &expiresAt
	return nil
}

// --- listings ---

type fakeListingRepo struct {
	mu       sync.Mutex
	listings map[uuid.UUID]*models.Listing
}

func newFakeListingRepo(listings ...*models.Listing) *fakeListingRepo {
	r := &fakeListingRepo{listings: make(map[uuid.UUID]*models.Listing)}
	for _, l := range listings {
		r.listings[l.ID] = l
	}
	return r
}

func (r *fakeListingRepo) Create(_ context.Context, l *models.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.CreatedAt = time.Now()
	l.UpdatedAt = l.CreatedAt
	cp := *l
	r.listings[l.ID] = &cp
	return nil
}

func (r *fakeListingRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, repositories.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *fakeListingRepo) GetForUpdate(ctx context.Context, _ repositories.SQLExecutor, id uuid.UUID) (*models.Listing, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeListingRepo) Update(_ context.Context, l *models.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listings[l.ID]; !ok {
		return repositories.ErrListingNotFound
	}
	l.UpdatedAt = time.Now()
	cp := *l
	r.listings[l.ID] = &cp
	return nil
}

func (r *fakeListingRepo) SetActive(_ context.Context, id uuid.UUID, active bool) (*models.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, repositories.ErrListingNotFound
	}
	l.IsActive = active
	cp := *l
	return &cp, nil
}

func (r *fakeListingRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listings[id]; !ok {
		return repositories.ErrListingNotFound
	}
	delete(r.listings, id)
	return nil
}

func (r *fakeListingRepo) collect(keep func(*models.Listing) bool, less func(a, b *models.Listing) bool) []models.Listing {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ptrs []*models.Listing
	for _, l := range r.listings {
		if keep(l) {
			ptrs = append(ptrs, l)
		}
	}
	sort.Slice(ptrs, func(i, j int) bool { return less(ptrs[i], ptrs[j]) })
	out := make([]models.Listing, 0, len(ptrs))
	for _, l := range ptrs {
		out = append(out, *l)
	}
	return out
}

func byDateAsc(a, b *models.Listing) bool { return a.HackathonDate.Before(b.HackathonDate) }

func (r *fakeListingRepo) ListActive(context.Context) ([]models.Listing, error) {
	return r.collect(func(l *models.Listing) bool { return l.IsActive }, byDateAsc), nil
}

func (r *fakeListingRepo) ListByCreator(_ context.Context, creatorID uuid.UUID) ([]models.Listing, error) {
	return r.collect(func(l *models.Listing) bool { return l.CreatorID == creatorID },
		func(a, b *models.Listing) bool { return a.CreatedAt.After(b.CreatedAt) }), nil
}

func (r *fakeListingRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]models.Listing, error) {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return r.collect(func(l *models.Listing) bool { return want[l.ID] }, byDateAsc), nil
}

func (r *fakeListingRepo) IncrementMembers(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok || l.CurrentMembers >= l.TeamSize {
		return 0, repositories.ErrListingFull
	}
	l.CurrentMembers++
	return l.CurrentMembers, nil
}

func (r *fakeListingRepo) DeactivatePast(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, l := range r.listings {
		if l.IsActive && !l.HackathonDate.After(now) {
			l.IsActive = false
			n++
		}
	}
	return n, nil
}

// --- applications ---

type fakeApplicationRepo struct {
	mu       sync.Mutex
	apps     map[uuid.UUID]*models.Application
	listings *fakeListingRepo
}

func newFakeApplicationRepo(listings *fakeListingRepo) *fakeApplicationRepo {
	return &fakeApplicationRepo{apps: make(map[uuid.UUID]*models.Application), listings: listings}
}

func (r *fakeApplicationRepo) Create(_ context.Context, app *models.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	app.CreatedAt = time.Now()
	cp := *app
	r.apps[app.ID] = &cp
	return nil
}

func (r *fakeApplicationRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID) (*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok {
		return nil, repositories.ErrApplicationNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeApplicationRepo) Respond(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID, status models.ApplicationStatus, respondedAt time.Time) (*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok {
		return nil, repositories.ErrApplicationNotFound
	}
	if a.Status != models.ApplicationPending {
		return nil, repositories.ErrApplicationNotPending
	}
	a.Status = status
	a.RespondedAt = &respondedAt
	cp := *a
	return &cp, nil
}

func (r *fakeApplicationRepo) list(keep func(*models.Application) bool) []models.Application {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Application, 0)
	for _, a := range r.apps {
		if keep(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeApplicationRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Application, error) {
	owned, _ := r.listings.ListByCreator(ctx, ownerID)
	ids := make(map[uuid.UUID]bool, len(owned))
	for _, l := range owned {
		ids[l.ID] = true
	}
	return r.list(func(a *models.Application) bool { return ids[a.ListingID] }), nil
}

func (r *fakeApplicationRepo) ListByApplicant(_ context.Context, applicantID uuid.UUID) ([]models.Application, error) {
	return r.list(func(a *models.Application) bool { return a.ApplicantID == applicantID }), nil
}

// --- bookmarks ---

type bookmarkKey struct{ user, listing uuid.UUID }

type fakeBookmarkRepo struct {
	mu        sync.Mutex
	bookmarks map[bookmarkKey]models.Bookmark
	listings  *fakeListingRepo
}

func newFakeBookmarkRepo(listings *fakeListingRepo) *fakeBookmarkRepo {
	return &fakeBookmarkRepo{bookmarks: make(map[bookmarkKey]models.Bookmark), listings: listings}
}

func (r *fakeBookmarkRepo) Add(ctx context.Context, _ repositories.SQLExecutor, userID, listingID uuid.UUID) (bool, error) {
	if _, err := r.listings.GetByID(ctx, listingID); err != nil {
		return false, repositories.ErrBookmarkListingInvalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := bookmarkKey{userID, listingID}
	if _, ok := r.bookmarks[key]; ok {
		return false, nil
	}
	r.bookmarks[key] = models.Bookmark{ID: uuid.New(), UserID: userID, ListingID: listingID, CreatedAt: time.Now()}
	return true, nil
}

func (r *fakeBookmarkRepo) Remove(_ context.Context, _ repositories.SQLExecutor, userID, listingID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := bookmarkKey{userID, listingID}
	if _, ok := r.bookmarks[key]; !ok {
		return false, nil
	}
	delete(r.bookmarks, key)
	return true, nil
}

func (r *fakeBookmarkRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Bookmark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Bookmark, 0)
	for k, b := range r.bookmarks {
		if k.user == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

// --- notifications, mail, storage ---

type recordingNotifier struct {
	mu     sync.Mutex
	topics []live.Topic
}

func (n *recordingNotifier) Notify(_ context.Context, topic live.Topic) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.topics = append(n.topics, topic)
	return nil
}

func (n *recordingNotifier) has(topic live.Topic) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, t := range n.topics {
		if t == topic {
			return true
		}
	}
	return false
}

type fakeMailer struct {
	mu          sync.Mutex
	resetTokens map[string]string
	appEmails   []string
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{resetTokens: make(map[string]string)}
}

func (m *fakeMailer) SendPasswordResetEmail(user *models.User, token string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens[user.Email] = token
	return nil
}

func (m *fakeMailer) SendApplicationReceivedEmail(ownerEmail string, _ *models.Listing, _ *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appEmails = append(m.appEmails, ownerEmail)
	return nil
}

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: make(map[string][]byte)}
}

func (u *fakeUploader) Upload(_ context.Context, key, _ string, reader io.Reader) (*storage.UploadResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = data
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.objects, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

// --- fixtures ---

func newUser(name string) *models.User {
	return &models.User{
		ID:          uuid.New(),
		Email:       strings.ToLower(name) + "@example.com",
		DisplayName: name,
		Provider:    models.ProviderPassword,
		Skills:      []string{},
	}
}

func newListing(owner *models.User, teamSize int, date time.Time) *models.Listing {
	return &models.Listing{
		ID:             uuid.New(),
		CreatorID:      owner.ID,
		CreatorName:    owner.DisplayName,
		CreatorEmail:   owner.Email,
		HackathonName:  "HackMIT",
		HackathonDate:  date,
		Location:       "Online",
		TechStack:      []string{"Go", "React"},
		TeamSize:       teamSize,
		CurrentMembers: 1,
		Description:    strings.Repeat("We are building a realtime collaboration tool. ", 2),
		IsActive:       true,
		CreatedAt:      time.Now(),
	}
}

const longMessage = "I have shipped three hackathon projects with Go and React and would love to join."
