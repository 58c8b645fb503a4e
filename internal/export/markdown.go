package export

import (
	"strings"
	"time"

	"meetexport/internal/meeting"
	"meetexport/internal/textutil"
)

// FormatMarkdown renders the export document. Section order is fixed:
// title, metadata, summary, transcript.
func FormatMarkdown(item meeting.Item, transcript string) string {
	date := item.Date
	if date == "" {
		date = "Unknown date"
	}
	id := item.ID
	if id == "" {
		id = "Unknown ID"
	}
	participants := "Unknown"
	if len(item.Participants) > 0 {
		participants = strings.Join(item.Participants, ", ")
	}
	summary := item.Summary
	if strings.TrimSpace(summary) == "" {
		summary = "No summary available"
	}

	var b strings.Builder
	b.Grow(len(transcript) + len(summary) + 256)
	b.WriteString("# ")
	b.WriteString(item.DisplayTitle())
	b.WriteString("\n\n**Date:** ")
	b.WriteString(date)
	b.WriteString("\n**Meeting ID:** ")
	b.WriteString(id)
	b.WriteString("\n**Participants:** ")
	b.WriteString(participants)
	b.WriteString("\n\n---\n\n## Summary\n\n")
	b.WriteString(summary)
	b.WriteString("\n\n---\n\n## Full Verbatim Transcript\n\n")
	b.WriteString(transcript)
	b.WriteString("\n")
	return b.String()
}

// Filename derives YYYY-MM-DD_Sanitized_Title.md. Meetings without a
// parseable date use the day of now.
func Filename(item meeting.Item, now time.Time) string {
	title := item.Title
	if strings.TrimSpace(title) == "" {
		title = "Untitled_Meeting"
	}
	return item.Day(now) + "_" + textutil.SanitizeTitle(title) + ".md"
}
