package remote

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"meetexport/internal/meeting"
)

var (
	meetingOpenPattern  = regexp.MustCompile(`<meeting\s+id="([^"]+)"\s+title="([^"]+)"\s+date="([^"]+)"`)
	participantsPattern = regexp.MustCompile(`(?s)<known_participants>(.*?)</known_participants>`)
	summaryPattern      = regexp.MustCompile(`(?s)<summary>(.*?)</summary>`)
	notesPattern        = regexp.MustCompile(`(?s)<private_notes>(.*?)</private_notes>`)
)

// ParseMeetings extracts meetings from the tag-structured text returned by
// list_meetings and get_meetings. Each <meeting id title date> opening tag
// starts a record; optional child elements up to the next </meeting> fill
// participants (one per line), summary and private notes.
func ParseMeetings(text string) []meeting.Item {
	matches := meetingOpenPattern.FindAllStringSubmatchIndex(text, -1)
	items := make([]meeting.Item, 0, len(matches))
	for _, m := range matches {
		item := meeting.Item{
			ID:    html.UnescapeString(text[m[2]:m[3]]),
			Title: html.UnescapeString(text[m[4]:m[5]]),
			Date:  html.UnescapeString(text[m[6]:m[7]]),
		}

		var block string
		if end := strings.Index(text[m[1]:], "</meeting>"); end > 0 {
			block = text[m[1] : m[1]+end]
		}

		if sub := participantsPattern.FindStringSubmatch(block); sub != nil {
			for _, line := range strings.Split(strings.TrimSpace(sub[1]), "\n") {
				if name := strings.TrimSpace(line); name != "" {
					item.Participants = append(item.Participants, html.UnescapeString(name))
				}
			}
		}
		if sub := summaryPattern.FindStringSubmatch(block); sub != nil {
			item.Summary = strings.TrimSpace(sub[1])
		}
		if sub := notesPattern.FindStringSubmatch(block); sub != nil {
			item.PrivateNotes = strings.TrimSpace(sub[1])
		}
		items = append(items, item)
	}
	return items
}

// ParseTranscript extracts the transcript from a get_meeting_transcript reply.
// Replies are JSON objects with a transcript field; anything that is not a
// JSON object is taken as the transcript itself.
func ParseTranscript(text string) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return text
	}
	raw, ok := payload["transcript"]
	if !ok {
		return ""
	}
	var transcript string
	if err := json.Unmarshal(raw, &transcript); err != nil {
		return string(raw)
	}
	return transcript
}
