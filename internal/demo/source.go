package demo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"meetexport/internal/meeting"
	"meetexport/internal/remote"
	"meetexport/internal/services"
)

type fixture struct {
	id           string
	title        string
	age          time.Duration
	participants []string
	summary      string
}

var fixtures = []fixture{
	{"mock-001", "Q4 Planning Meeting", 2 * 24 * time.Hour, []string{"John Doe", "Jane Smith", "Bob Johnson"},
		"Discussed Q4 goals and objectives. Key focus areas: product launch, team expansion, and budget allocation."},
	{"mock-002", "Technical Architecture Review", 5 * 24 * time.Hour, []string{"Alice Chen", "David Lee", "Sarah Wilson"},
		"Reviewed current system architecture and proposed improvements for scalability and performance."},
	{"mock-003", "Client Presentation", 10 * 24 * time.Hour, []string{"Emily Brown", "Michael Davis"},
		"Presented project timeline and deliverables to client. Received positive feedback and approval to proceed."},
	{"mock-004", "Team Retrospective", 15 * 24 * time.Hour, []string{"Team Lead", "Developer 1", "Developer 2", "Designer"},
		"Reflected on last sprint. Identified areas for improvement in communication and process efficiency."},
	{"mock-005", "Budget Review Session", 20 * 24 * time.Hour, []string{"CFO", "Department Heads"},
		"Analyzed current budget allocation and made adjustments for upcoming quarter."},
}

// FlakyID is the meeting whose first transcript fetch comes back cut off,
// exercising the verification retry.
const FlakyID = "mock-004"

// Source implements the fetch layer over the fixtures.
type Source struct {
	now     func() time.Time
	latency time.Duration

	mu      sync.Mutex
	fetches map[string]int
	resets  int
}

// Option customizes a Source.
type Option func(*Source)

// WithLatency delays every call by d to imitate a remote service.
func WithLatency(d time.Duration) Option {
	return func(s *Source) { s.latency = d }
}

// WithNow overrides the clock used to date the fixtures.
func WithNow(now func() time.Time) Option {
	return func(s *Source) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSource returns a demo fetch layer.
func NewSource(opts ...Option) *Source {
	s := &Source{now: time.Now, fetches: make(map[string]int)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListMeetings returns every fixture regardless of range, newest first.
func (s *Source) ListMeetings(ctx context.Context, _ remote.Range) ([]meeting.Item, error) {
	if err := s.pause(ctx); err != nil {
		return nil, err
	}
	items := make([]meeting.Item, 0, len(fixtures))
	for _, f := range fixtures {
		items = append(items, meeting.Item{ID: f.id, Title: f.title, Date: s.dateOf(f)})
	}
	return items, nil
}

// FetchDetail returns participants and summary for a fixture.
func (s *Source) FetchDetail(ctx context.Context, id string) (meeting.Item, error) {
	if err := s.pause(ctx); err != nil {
		return meeting.Item{}, err
	}
	f, ok := lookup(id)
	if !ok {
		return meeting.Item{}, services.Wrap(services.ErrNotFound, "demo", "detail", fmt.Sprintf("no meeting %s", id), nil)
	}
	return meeting.Item{
		ID:           f.id,
		Title:        f.title,
		Date:         s.dateOf(f),
		Participants: append([]string(nil), f.participants...),
		Summary:      f.summary,
	}, nil
}

// FetchContent returns a transcript long enough to pass verification. The
// flaky fixture returns a cut-off transcript on its first fetch.
func (s *Source) FetchContent(ctx context.Context, id string) (string, error) {
	if err := s.pause(ctx); err != nil {
		return "", err
	}
	f, ok := lookup(id)
	if !ok {
		return "", services.Wrap(services.ErrNotFound, "demo", "content", fmt.Sprintf("no meeting %s", id), nil)
	}

	s.mu.Lock()
	s.fetches[id]++
	attempt := s.fetches[id]
	s.mu.Unlock()

	full := Transcript(f.participants)
	if id == FlakyID && attempt == 1 {
		return full[:len(full)/2], nil
	}
	return full, nil
}

// ResetSession is counted for tests and otherwise a no-op.
func (s *Source) ResetSession() {
	s.mu.Lock()
	s.resets++
	s.mu.Unlock()
}

// Resets reports how many times ResetSession ran.
func (s *Source) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// Ping always succeeds.
func (s *Source) Ping(ctx context.Context) error {
	return s.pause(ctx)
}

func (s *Source) pause(ctx context.Context) error {
	if s.latency <= 0 {
		return nil
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return services.Cancelled(ctx)
	case <-timer.C:
		return nil
	}
}

func (s *Source) dateOf(f fixture) string {
	return s.now().Add(-f.age).Format("2006-01-02T15:04:05")
}

func lookup(id string) (fixture, bool) {
	for _, f := range fixtures {
		if f.id == id {
			return f, true
		}
	}
	return fixture{}, false
}

var agenda = []string{
	"the project timeline and the milestones we committed to last quarter",
	"the data migration plan and how we validate each batch before cutover",
	"hiring for the two open roles and the interview loop we agreed on",
	"the customer feedback from the pilot and which requests we prioritize",
	"budget for tooling and whether the current vendors still fit our needs",
	"on-call load over the last month and the alerts we can retire",
	"documentation gaps that slowed down onboarding for new teammates",
	"the launch checklist and who owns each remaining item",
}

// Transcript builds a deterministic conversation between the participants
// that ends with a natural goodbye.
func Transcript(participants []string) string {
	speakers := participants
	if len(speakers) == 0 {
		speakers = []string{"Speaker 1", "Speaker 2"}
	}
	say := func(b *strings.Builder, turn int, line string) {
		fmt.Fprintf(b, "%s: %s\n\n", speakers[turn%len(speakers)], line)
	}

	var b strings.Builder
	turn := 0
	say(&b, turn, "Good morning everyone, thank you for joining today's meeting.")
	turn++
	say(&b, turn, "Happy to be here. Should we dive right into the agenda?")
	for round := 0; round < 4; round++ {
		for _, topic := range agenda {
			turn++
			say(&b, turn, fmt.Sprintf("Next item is %s. Here is where things stand and what changed since we last met.", topic))
			turn++
			say(&b, turn, "That matches what I have seen. I would add that we should write down the decision and the owner so nothing slips.")
			turn++
			say(&b, turn, "Agreed. I will capture it in the notes and follow up with the people who could not attend today.")
		}
	}
	turn++
	say(&b, turn, "Before we wrap up, are there any other concerns or questions?")
	turn++
	say(&b, turn, "No, I think we covered everything. This was really helpful.")
	turn++
	say(&b, turn, "Great, thanks everyone. Let's touch base again next week. Have a great day!")
	turn++
	b.WriteString(fmt.Sprintf("%s: Goodbye everyone!", speakers[turn%len(speakers)]))
	return b.String()
}
