package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Dosada05/hackathon-partner-finder/live"
	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/google/uuid"
)

type applicationFixture struct {
	svc      ApplicationService
	mock     sqlmock.Sqlmock
	users    *fakeUserRepo
	listings *fakeListingRepo
	apps     *fakeApplicationRepo
	notifier *recordingNotifier
	mailer   *fakeMailer
	owner    *models.User
	listing  *models.Listing
}

func newApplicationFixture(t *testing.T, teamSize int) *applicationFixture {
	t.Helper()
	db, mock := newMockDB(t)

	owner := newUser("Owner")
	listing := newListing(owner, teamSize, time.Now().Add(72*time.Hour))
	users := newFakeUserRepo(owner)
	listings := newFakeListingRepo(listing)
	apps := newFakeApplicationRepo(listings)
	notifier := &recordingNotifier{}
	mailer := newFakeMailer()

	svc := NewApplicationService(db, apps, listings, users, mailer, live.NewBroker(discardLogger()), notifier, discardLogger())
	return &applicationFixture{
		svc: svc, mock: mock, users: users, listings: listings, apps: apps,
		notifier: notifier, mailer: mailer, owner: owner, listing: listing,
	}
}

func (f *applicationFixture) applicant(t *testing.T, name string) (*models.User, *models.Application) {
	t.Helper()
	u := newUser(name)
	f.users.users[u.ID] = u
	app, err := f.svc.Submit(context.Background(), sessionFor(u), f.listing.ID, SubmitApplicationInput{Message: longMessage})
	if err != nil {
		t.Fatalf("Submit(%s): %v", name, err)
	}
	return u, app
}

func TestSubmitCopiesApplicantAndNotifiesOwner(t *testing.T) {
	f := newApplicationFixture(t, 4)
	gh := "https://github.com/octocat"
	applicant := newUser("Ann")
	f.users.users[applicant.ID] = applicant

	app, err := f.svc.Submit(context.Background(), sessionFor(applicant), f.listing.ID, SubmitApplicationInput{
		Message:   longMessage,
		GithubURL: &gh,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if app.Status != models.ApplicationPending {
		t.Errorf("status = %s, want pending", app.Status)
	}
	if app.ApplicantName != "Ann" || app.ApplicantEmail != applicant.Email {
		t.Errorf("applicant fields not copied: %+v", app)
	}
	if !f.notifier.has(live.ApplicationsTopic(f.owner.ID)) {
		t.Error("owner applications topic was not notified")
	}
	if len(f.mailer.appEmails) != 1 || f.mailer.appEmails[0] != f.owner.Email {
		t.Errorf("owner email not sent: %v", f.mailer.appEmails)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newApplicationFixture(t, 4)
	applicant := newUser("Ann")
	f.users.users[applicant.ID] = applicant
	badGithub := "https://gitlab.com/octocat"
	badLinkedin := "https://linkedin.com/company/acme"
	blank := "   "

	cases := []struct {
		name   string
		input  SubmitApplicationInput
		fields []string
	}{
		{"short message", SubmitApplicationInput{Message: "too short"}, []string{"message"}},
		{"bad urls", SubmitApplicationInput{Message: longMessage, GithubURL: &badGithub, LinkedinURL: &badLinkedin}, []string{"github_url", "linkedin_url"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), sessionFor(applicant), f.listing.ID, tc.input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			for _, field := range tc.fields {
				if _, ok := verr.Fields[field]; !ok {
					t.Errorf("missing error for %s: %v", field, verr.Fields)
				}
			}
		})
	}

	// Пустая строка считается отсутствующим URL.
	if _, err := f.svc.Submit(context.Background(), sessionFor(applicant), f.listing.ID, SubmitApplicationInput{Message: longMessage, GithubURL: &blank}); err != nil {
		t.Errorf("blank github url should be ignored, got %v", err)
	}
}

func TestSubmitRejectsOwnInactiveAndMissingListings(t *testing.T) {
	f := newApplicationFixture(t, 4)
	ctx := context.Background()
	input := SubmitApplicationInput{Message: longMessage}

	if _, err := f.svc.Submit(ctx, sessionFor(f.owner), f.listing.ID, input); !errors.Is(err, ErrCannotApplyOwnListing) {
		t.Errorf("own listing: got %v", err)
	}

	applicant := newUser("Ann")
	f.users.users[applicant.ID] = applicant
	if _, err := f.svc.Submit(ctx, sessionFor(applicant), uuid.New(), input); !errors.Is(err, ErrListingNotFound) {
		t.Errorf("missing listing: got %v", err)
	}

	f.listing.IsActive = false
	if _, err := f.svc.Submit(ctx, sessionFor(applicant), f.listing.ID, input); !errors.Is(err, ErrListingInactive) {
		t.Errorf("inactive listing: got %v", err)
	}

	if _, err := f.svc.Submit(ctx, models.AnonymousSession(), f.listing.ID, input); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("anonymous: got %v", err)
	}
}

func TestRespondAcceptsOnlyOnce(t *testing.T) {
	f := newApplicationFixture(t, 4)
	_, app := f.applicant(t, "Ann")
	ctx := context.Background()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	got, err := f.svc.Respond(ctx, sessionFor(f.owner), app.ID, models.ApplicationAccepted)
	if err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if got.Status != models.ApplicationAccepted || got.RespondedAt == nil {
		t.Errorf("unexpected application after accept: %+v", got)
	}

	for _, status := range []models.ApplicationStatus{models.ApplicationAccepted, models.ApplicationRejected} {
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()
		if _, err := f.svc.Respond(ctx, sessionFor(f.owner), app.ID, status); !errors.Is(err, ErrApplicationAlreadyResponded) {
			t.Errorf("second %s: expected ErrApplicationAlreadyResponded, got %v", status, err)
		}
	}

	if l, _ := f.listings.GetByID(ctx, f.listing.ID); l.CurrentMembers != 2 {
		t.Errorf("current members = %d, want 2", l.CurrentMembers)
	}
	if !f.notifier.has(live.TopicListings) {
		t.Error("acceptance should notify the listings topic")
	}
}

func TestRespondStopsAtTeamSize(t *testing.T) {
	f := newApplicationFixture(t, 4)
	ctx := context.Background()

	var apps []*models.Application
	for _, name := range []string{"Ann", "Bob", "Cid", "Dee"} {
		_, app := f.applicant(t, name)
		apps = append(apps, app)
	}

	for i, app := range apps[:3] {
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()
		if _, err := f.svc.Respond(ctx, sessionFor(f.owner), app.ID, models.ApplicationAccepted); err != nil {
			t.Fatalf("accept #%d: %v", i+1, err)
		}
	}
	if l, _ := f.listings.GetByID(ctx, f.listing.ID); l.CurrentMembers != 4 {
		t.Fatalf("current members = %d, want 4", l.CurrentMembers)
	}

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	if _, err := f.svc.Respond(ctx, sessionFor(f.owner), apps[3].ID, models.ApplicationAccepted); !errors.Is(err, ErrListingFull) {
		t.Fatalf("fourth accept: expected ErrListingFull, got %v", err)
	}
	if l, _ := f.listings.GetByID(ctx, f.listing.ID); l.CurrentMembers != 4 {
		t.Errorf("current members = %d after rejected accept, want 4", l.CurrentMembers)
	}
}

func TestRespondRejectDoesNotChangeMembers(t *testing.T) {
	f := newApplicationFixture(t, 4)
	_, app := f.applicant(t, "Ann")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	got, err := f.svc.Respond(context.Background(), sessionFor(f.owner), app.ID, models.ApplicationRejected)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != models.ApplicationRejected {
		t.Errorf("status = %s", got.Status)
	}
	if l, _ := f.listings.GetByID(context.Background(), f.listing.ID); l.CurrentMembers != 1 {
		t.Errorf("current members = %d, want 1", l.CurrentMembers)
	}
}

func TestRespondRequiresOwner(t *testing.T) {
	f := newApplicationFixture(t, 4)
	applicant, app := f.applicant(t, "Ann")

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	if _, err := f.svc.Respond(context.Background(), sessionFor(applicant), app.ID, models.ApplicationAccepted); !errors.Is(err, ErrNotListingOwner) {
		t.Fatalf("expected ErrNotListingOwner, got %v", err)
	}

	// Некорректный статус отсекается до открытия транзакции.
	if _, err := f.svc.Respond(context.Background(), sessionFor(f.owner), app.ID, models.ApplicationPending); !errors.Is(err, ErrInvalidResponseStatus) {
		t.Fatalf("expected ErrInvalidResponseStatus, got %v", err)
	}

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	if _, err := f.svc.Respond(context.Background(), sessionFor(f.owner), uuid.New(), models.ApplicationAccepted); !errors.Is(err, ErrApplicationNotFound) {
		t.Fatalf("expected ErrApplicationNotFound, got %v", err)
	}
}

func TestListForOwnerAndMine(t *testing.T) {
	f := newApplicationFixture(t, 4)
	ann, _ := f.applicant(t, "Ann")
	f.applicant(t, "Bob")
	ctx := context.Background()

	received, err := f.svc.ListForOwner(ctx, sessionFor(f.owner))
	if err != nil {
		t.Fatalf("ListForOwner: %v", err)
	}
	if len(received) != 2 {
		t.Errorf("owner sees %d applications, want 2", len(received))
	}

	mine, err := f.svc.ListMine(ctx, sessionFor(ann))
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if len(mine) != 1 || mine[0].ApplicantID != ann.ID {
		t.Errorf("unexpected own applications: %+v", mine)
	}

	if got, _ := f.svc.ListForOwner(ctx, sessionFor(ann)); len(got) != 0 {
		t.Errorf("applicant without listings should see nothing, got %d", len(got))
	}
}

func TestSubscribeForOwnerStreamsChanges(t *testing.T) {
	db, _ := newMockDB(t)
	owner := newUser("Owner")
	listing := newListing(owner, 4, time.Now().Add(48*time.Hour))
	users := newFakeUserRepo(owner)
	listings := newFakeListingRepo(listing)
	apps := newFakeApplicationRepo(listings)
	broker := live.NewBroker(discardLogger())
	svc := NewApplicationService(db, apps, listings, users, nil, broker, broker, discardLogger())

	stream, err := svc.SubscribeForOwner(context.Background(), sessionFor(owner))
	if err != nil {
		t.Fatalf("SubscribeForOwner: %v", err)
	}
	defer stream.Cancel()

	first := <-stream.Updates()
	if first.Err != nil || len(first.Data) != 0 {
		t.Fatalf("initial snapshot = %+v", first)
	}

	applicant := newUser("Ann")
	users.users[applicant.ID] = applicant
	if _, err := svc.Submit(context.Background(), sessionFor(applicant), listing.ID, SubmitApplicationInput{Message: longMessage}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case snap := <-stream.Updates():
		if len(snap.Data) != 1 {
			t.Fatalf("snapshot after submit has %d applications, want 1", len(snap.Data))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after submit")
	}

	if _, err := svc.SubscribeForOwner(context.Background(), models.AnonymousSession()); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("anonymous subscribe: got %v", err)
	}
}
