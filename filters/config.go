package filters

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type LocationMode string

const (
	LocationAll     LocationMode = "all"
	LocationOnline  LocationMode = "online"
	LocationOffline LocationMode = "offline"
)

type DateWindow string

const (
	DateAll     DateWindow = "all"
	DateWeek    DateWindow = "week"
	DateMonth   DateWindow = "month"
	DateQuarter DateWindow = "quarter"
)

var (
	ErrInvalidLocationMode = errors.New("invalid location filter")
	ErrInvalidDateWindow   = errors.New("invalid date filter")
)

// Config - набор условий фильтрации ленты объявлений.
// Нулевое значение эквивалентно отсутствию фильтров.
type Config struct {
	Text     string       `json:"text"`
	Tags     []string     `json:"tags"`
	Location LocationMode `json:"location"`
	Date     DateWindow   `json:"date"`
}

func (c Config) Validate() error {
	switch c.Location {
	case "", LocationAll, LocationOnline, LocationOffline:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLocationMode, c.Location)
	}
	switch c.Date {
	case "", DateAll, DateWeek, DateMonth, DateQuarter:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDateWindow, c.Date)
	}
	return nil
}

// Normalized trims tags and replaces empty enums with "all".
// Text is kept verbatim: пробелы в поисковой строке значимы.
func (c Config) Normalized() Config {
	out := Config{
		Text:     c.Text,
		Location: c.Location,
		Date:     c.Date,
	}
	if out.Location == "" {
		out.Location = LocationAll
	}
	if out.Date == "" {
		out.Date = DateAll
	}
	for _, tag := range c.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out.Tags = append(out.Tags, tag)
		}
	}
	return out
}

// IsEmpty reports whether every predicate is inactive.
func (c Config) IsEmpty() bool {
	n := c.Normalized()
	return n.Text == "" && len(n.Tags) == 0 && n.Location == LocationAll && n.Date == DateAll
}

// Ceiling returns the latest hackathon date kept by the date window.
// ok is false for DateAll.
func (w DateWindow) Ceiling(now time.Time) (ceiling time.Time, ok bool) {
	switch w {
	case DateWeek:
		return now.AddDate(0, 0, 7), true
	case DateMonth:
		return now.AddDate(0, 1, 0), true
	case DateQuarter:
		return now.AddDate(0, 3, 0), true
	}
	return time.Time{}, false
}

// ParseQuery reads a Config from URL query parameters:
// q, tags (comma separated or repeated), location, date.
func ParseQuery(values url.Values) (Config, error) {
	cfg := Config{
		Text:     values.Get("q"),
		Location: LocationMode(strings.ToLower(values.Get("location"))),
		Date:     DateWindow(strings.ToLower(values.Get("date"))),
	}
	for _, raw := range values["tags"] {
		cfg.Tags = append(cfg.Tags, strings.Split(raw, ",")...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg.Normalized(), nil
}
