package filters

import (
	"net/url"
	"testing"
	"time"

	"github.com/Dosada05/hackathon-partner-finder/models"
	"github.com/google/uuid"
)

var testNow = time.Date(2026, time.January, 31, 12, 0, 0, 0, time.UTC)

func listing(name, location string, date time.Time, tags ...string) models.Listing {
	return models.Listing{
		ID:            uuid.New(),
		HackathonName: name,
		Location:      location,
		HackathonDate: date,
		TechStack:     tags,
		Description:   "Looking for teammates who enjoy shipping demos under pressure.",
		TeamSize:      4,
		IsActive:      true,
	}
}

func names(ls []models.Listing) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.HackathonName
	}
	return out
}

func equalNames(t *testing.T, got []models.Listing, want ...string) {
	t.Helper()
	g := names(got)
	if len(g) != len(want) {
		t.Fatalf("got %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("got %v, want %v", g, want)
		}
	}
}

func TestApplyEmptyConfigKeepsInput(t *testing.T) {
	input := []models.Listing{
		listing("Gamma", "Berlin", testNow.AddDate(0, 2, 0), "Go"),
		listing("Alpha", "Online", testNow.AddDate(0, 0, 1)),
		listing("Beta", "Paris", testNow.AddDate(1, 0, 0), "Rust", "React"),
	}

	for _, cfg := range []Config{{}, {Location: LocationAll, Date: DateAll}, {Tags: []string{" "}}} {
		equalNames(t, Apply(input, cfg, testNow), "Gamma", "Alpha", "Beta")
	}
}

func TestTextPredicate(t *testing.T) {
	input := []models.Listing{
		listing("ETHGlobal", "Lisbon", testNow.AddDate(0, 0, 3)),
		listing("HackMIT", "Cambridge", testNow.AddDate(0, 0, 3)),
		listing("Junction", "online", testNow.AddDate(0, 0, 3)),
	}
	input[1].Description = "We build an ETH wallet."

	equalNames(t, Apply(input, Config{Text: "eth"}, testNow), "ETHGlobal", "HackMIT")
	equalNames(t, Apply(input, Config{Text: "ONLINE"}, testNow), "Junction")
	equalNames(t, Apply(input, Config{Text: "lisb"}, testNow), "ETHGlobal")
	equalNames(t, Apply(input, Config{Text: "nothing-matches"}, testNow))
	// пробелы не обрезаются и участвуют в поиске
	equalNames(t, Apply(input, Config{Text: "eth "}, testNow), "HackMIT")
	equalNames(t, Apply(input, Config{Text: "   "}, testNow))
}

func TestTagPredicateUsesAnyOf(t *testing.T) {
	input := []models.Listing{
		listing("OnlyA", "Online", testNow.AddDate(0, 0, 2), "A"),
		listing("OnlyC", "Online", testNow.AddDate(0, 0, 2), "C"),
		listing("AB", "Online", testNow.AddDate(0, 0, 2), "B", "A"),
		listing("None", "Online", testNow.AddDate(0, 0, 2)),
	}

	equalNames(t, Apply(input, Config{Tags: []string{"A", "B"}}, testNow), "OnlyA", "AB")
}

func TestLocationPredicate(t *testing.T) {
	input := []models.Listing{
		listing("Remote", "ONLINE", testNow.AddDate(0, 0, 2)),
		listing("Berlin", "Berlin", testNow.AddDate(0, 0, 2)),
		listing("Hybrid", "Online + Berlin", testNow.AddDate(0, 0, 2)),
	}

	equalNames(t, Apply(input, Config{Location: LocationOnline}, testNow), "Remote")
	equalNames(t, Apply(input, Config{Location: LocationOffline}, testNow), "Berlin", "Hybrid")
}

func TestDatePredicate(t *testing.T) {
	input := []models.Listing{
		listing("Plus6d", "Online", testNow.AddDate(0, 0, 6)),
		listing("Plus8d", "Online", testNow.AddDate(0, 0, 8)),
		listing("Exactly7d", "Online", testNow.AddDate(0, 0, 7)),
		listing("Plus40d", "Online", testNow.AddDate(0, 0, 40)),
		listing("Plus100d", "Online", testNow.AddDate(0, 0, 100)),
	}

	equalNames(t, Apply(input, Config{Date: DateWeek}, testNow), "Plus6d", "Exactly7d")
	equalNames(t, Apply(input, Config{Date: DateMonth}, testNow), "Plus6d", "Plus8d", "Exactly7d")
	equalNames(t, Apply(input, Config{Date: DateQuarter}, testNow), "Plus6d", "Plus8d", "Exactly7d", "Plus40d")
}

func TestDateWindowUsesCalendarMonths(t *testing.T) {
	// Jan 31 + 1 month normalizes to Mar 3 (2026 is not a leap year).
	ceiling, ok := DateMonth.Ceiling(testNow)
	if !ok {
		t.Fatal("month window should be active")
	}
	want := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)
	if !ceiling.Equal(want) {
		t.Fatalf("ceiling = %v, want %v", ceiling, want)
	}
	if _, ok := DateAll.Ceiling(testNow); ok {
		t.Fatal("all window should be inactive")
	}
}

func TestPredicatesCombine(t *testing.T) {
	input := []models.Listing{
		listing("Go Online Soon", "Online", testNow.AddDate(0, 0, 3), "Go"),
		listing("Go Offline Soon", "Berlin", testNow.AddDate(0, 0, 3), "Go"),
		listing("Go Online Later", "Online", testNow.AddDate(0, 2, 0), "Go"),
		listing("Rust Online Soon", "Online", testNow.AddDate(0, 0, 3), "Rust"),
	}
	cfg := Config{Text: "go", Tags: []string{"Go"}, Location: LocationOnline, Date: DateWeek}

	equalNames(t, Apply(input, cfg, testNow), "Go Online Soon")
}

func TestUpcomingDropsPastListings(t *testing.T) {
	input := []models.Listing{
		listing("Yesterday", "Online", testNow.AddDate(0, 0, -1)),
		listing("Now", "Online", testNow),
		listing("Tomorrow", "Online", testNow.AddDate(0, 0, 1)),
	}

	equalNames(t, Upcoming(input, testNow), "Tomorrow")
	equalNames(t, Apply(Upcoming(input, testNow), Config{}, testNow), "Tomorrow")
}

func TestParseQuery(t *testing.T) {
	values := url.Values{
		"q":        {"  ai  "},
		"tags":     {"Go,React", "Rust"},
		"location": {"Online"},
		"date":     {"MONTH"},
	}

	cfg, err := ParseQuery(values)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	if cfg.Text != "  ai  " || cfg.Location != LocationOnline || cfg.Date != DateMonth {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.Tags) != 3 || cfg.Tags[0] != "Go" || cfg.Tags[2] != "Rust" {
		t.Fatalf("unexpected tags: %v", cfg.Tags)
	}

	if _, err := ParseQuery(url.Values{"location": {"moon"}}); err == nil {
		t.Fatal("expected error for unknown location")
	}
	if _, err := ParseQuery(url.Values{"date": {"decade"}}); err == nil {
		t.Fatal("expected error for unknown date window")
	}
}

func TestIsEmpty(t *testing.T) {
	if !(Config{}).IsEmpty() {
		t.Fatal("zero config should be empty")
	}
	if (Config{Date: DateWeek}).IsEmpty() {
		t.Fatal("week window is an active predicate")
	}
}
