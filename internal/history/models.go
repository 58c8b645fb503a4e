package history

import (
	"time"

	"meetexport/internal/verification"
)

// Outcome of a run still in progress, or interrupted before FinishRun.
const OutcomeRunning = "running"

// Run is one recorded batch.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Outcome    string    `json:"outcome"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	OutputDir  string    `json:"output_dir"`
}

// Duration is the wall time of a finished run, or zero.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ItemRecord is one attempted meeting within a run.
type ItemRecord struct {
	RunID         string               `json:"run_id"`
	Position      int                  `json:"position"`
	ItemID        string               `json:"item_id"`
	Title         string               `json:"title"`
	Complete      bool                 `json:"complete"`
	Filename      string               `json:"filename,omitempty"`
	SHA256        string               `json:"sha256,omitempty"`
	ErrorMessage  string               `json:"error,omitempty"`
	ErrorKind     string               `json:"error_kind,omitempty"`
	Attempts      int                  `json:"attempts"`
	ContentLength int                  `json:"content_length"`
	Checks        []verification.Check `json:"checks,omitempty"`
	RecordedAt    time.Time            `json:"recorded_at"`
}
