package filters

import (
	"strings"
	"time"

	"github.com/Dosada05/hackathon-partner-finder/models"
)

// Predicate решает, остаётся ли объявление в выдаче.
type Predicate func(l *models.Listing) bool

// Apply returns the listings that satisfy every active predicate of cfg,
// in input order. now anchors the date window.
func Apply(listings []models.Listing, cfg Config, now time.Time) []models.Listing {
	preds := Predicates(cfg, now)
	out := make([]models.Listing, 0, len(listings))
	for i := range listings {
		if matchAll(&listings[i], preds) {
			out = append(out, listings[i])
		}
	}
	return out
}

// Predicates builds the active predicates of cfg. Inactive predicates are
// omitted, so an empty Config yields nil.
func Predicates(cfg Config, now time.Time) []Predicate {
	cfg = cfg.Normalized()
	var preds []Predicate
	if cfg.Text != "" {
		preds = append(preds, TextPredicate(cfg.Text))
	}
	if len(cfg.Tags) > 0 {
		preds = append(preds, TagPredicate(cfg.Tags))
	}
	if cfg.Location != LocationAll {
		preds = append(preds, LocationPredicate(cfg.Location))
	}
	if ceiling, ok := cfg.Date.Ceiling(now); ok {
		preds = append(preds, DatePredicate(ceiling))
	}
	return preds
}

func TextPredicate(text string) Predicate {
	needle := strings.ToLower(text)
	return func(l *models.Listing) bool {
		return strings.Contains(strings.ToLower(l.HackathonName), needle) ||
			strings.Contains(strings.ToLower(l.Description), needle) ||
			strings.Contains(strings.ToLower(l.Location), needle)
	}
}

// TagPredicate passes listings whose tech stack shares at least one tag
// with tags.
func TagPredicate(tags []string) Predicate {
	wanted := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		wanted[t] = struct{}{}
	}
	return func(l *models.Listing) bool {
		for _, t := range l.TechStack {
			if _, ok := wanted[t]; ok {
				return true
			}
		}
		return false
	}
}

func LocationPredicate(mode LocationMode) Predicate {
	switch mode {
	case LocationOnline:
		return func(l *models.Listing) bool { return l.IsOnline() }
	case LocationOffline:
		return func(l *models.Listing) bool { return !l.IsOnline() }
	}
	return func(*models.Listing) bool { return true }
}

func DatePredicate(ceiling time.Time) Predicate {
	return func(l *models.Listing) bool {
		return !l.HackathonDate.After(ceiling)
	}
}

// Upcoming drops listings whose hackathon date is not after now.
func Upcoming(listings []models.Listing, now time.Time) []models.Listing {
	out := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if l.HackathonDate.After(now) {
			out = append(out, l)
		}
	}
	return out
}

func matchAll(l *models.Listing, preds []Predicate) bool {
	for _, p := range preds {
		if !p(l) {
			return false
		}
	}
	return true
}
