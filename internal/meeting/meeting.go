// Package meeting defines the exportable meeting record.
package meeting

import (
	"strings"
	"time"
)

// Item is one meeting. It is created from a listing, enriched once by
// Merge with the fetched detail, and treated as immutable afterwards.
type Item struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Date         string   `json:"date"`
	Participants []string `json:"participants,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	PrivateNotes string   `json:"private_notes,omitempty"`
}

// Merge copies every populated descriptive field of detail over the item, so
// a fuller summary or participant list replaces the listing placeholder. The
// ID always stays the one the item was listed under.
func (i *Item) Merge(detail Item) {
	if detail.Title != "" {
		i.Title = detail.Title
	}
	if detail.Date != "" {
		i.Date = detail.Date
	}
	if len(detail.Participants) > 0 {
		i.Participants = append([]string(nil), detail.Participants...)
	}
	if detail.Summary != "" {
		i.Summary = detail.Summary
	}
	if detail.PrivateNotes != "" {
		i.PrivateNotes = detail.PrivateNotes
	}
}

// Clone returns a deep copy.
func (i Item) Clone() Item {
	i.Participants = append([]string(nil), i.Participants...)
	return i
}

// DisplayTitle returns the title or a placeholder for untitled meetings.
func (i Item) DisplayTitle() string {
	if title := strings.TrimSpace(i.Title); title != "" {
		return title
	}
	return "Untitled Meeting"
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
}

// ParseDate interprets the listing date. A trailing Z is accepted as UTC.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Day returns the meeting's calendar date as YYYY-MM-DD, falling back to the
// day of now when the date is missing or unparseable.
func (i Item) Day(now time.Time) string {
	if parsed, ok := ParseDate(i.Date); ok {
		return parsed.Format(time.DateOnly)
	}
	return now.Format(time.DateOnly)
}
