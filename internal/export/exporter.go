package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"meetexport/internal/fileutil"
	"meetexport/internal/logging"
	"meetexport/internal/meeting"
	"meetexport/internal/services"
	"meetexport/internal/verification"
)

// Error messages reported for verification failures.
const (
	ErrorUnchanged         = "Verification failed (transcript unchanged on retry)"
	ErrorVerificationFinal = "Verification failed after retries"
)

// Source is the fetch layer consulted for each meeting.
type Source interface {
	FetchDetail(ctx context.Context, id string) (meeting.Item, error)
	FetchContent(ctx context.Context, id string) (string, error)
}

// Verifier judges transcript completeness.
type Verifier interface {
	Verify(text string) verification.Verdict
}

// Result is the outcome of exporting one meeting. Either Complete is true and
// Filename names the written file, or Error explains the failure.
type Result struct {
	ItemID        string                `json:"item_id"`
	Title         string                `json:"title"`
	Complete      bool                  `json:"complete"`
	Filename      string                `json:"filename,omitempty"`
	Error         string                `json:"error,omitempty"`
	Verdict       *verification.Verdict `json:"verification,omitempty"`
	Attempts      int                   `json:"attempts"`
	ContentLength int                   `json:"content_length"`
	Err           error                 `json:"-"`
}

// Kind classifies the failure for logs and the run history.
func (r Result) Kind() string {
	if r.Complete {
		return ""
	}
	return services.Kind(r.Err)
}

// Exporter exports single meetings. It is not safe for concurrent use.
type Exporter struct {
	source   Source
	verifier Verifier
	logger   *slog.Logger
	now      func() time.Time
	written  map[string]string
}

// ExporterOption customizes an Exporter.
type ExporterOption func(*Exporter)

// WithClock overrides the time source used for undated meetings.
func WithClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExporter constructs an Exporter.
func NewExporter(source Source, verifier Verifier, logger *slog.Logger, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		source:   source,
		verifier: verifier,
		logger:   logging.NewComponentLogger(logger, "export"),
		now:      time.Now,
		written:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export fetches, verifies and writes one meeting, making at most
// maxRetries+1 attempts. The returned error is non-nil only for
// cancellation; every other failure is reported in the Result.
func (e *Exporter) Export(ctx context.Context, item meeting.Item, outputDir string, maxRetries int) (Result, error) {
	item = item.Clone()
	ctx = services.WithItemID(ctx, item.ID)
	logger := logging.WithContext(ctx, e.logger)
	result := Result{ItemID: item.ID, Title: item.DisplayTitle()}
	maxAttempts := max(maxRetries, 0) + 1

	logger.Info("exporting meeting", logging.String("title", result.Title))

	prevLength := -1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result.Attempts = attempt + 1
		last := attempt == maxAttempts-1

		transcript, err := e.fetch(ctx, &item)
		if err != nil {
			if errors.Is(err, services.ErrCancelled) {
				return result, err
			}
			if errors.Is(err, services.ErrRateLimitExhausted) || last {
				return e.fail(logger, result, err, err.Error()), nil
			}
			logging.WarnWithContext(logger, "fetch failed; retrying", "fetch_retry",
				logging.Int("attempt", attempt+1),
				logging.Int("max_attempts", maxAttempts),
				logging.Error(err),
				logging.String(logging.FieldImpact, "meeting will be fetched again"),
			)
			continue
		}

		verdict := e.verifier.Verify(transcript)
		result.Verdict = &verdict
		result.Title = item.DisplayTitle()
		length := utf8.RuneCountInString(transcript)
		result.ContentLength = length

		if verdict.Complete {
			filename, err := e.write(item, transcript, outputDir)
			if err != nil {
				if last {
					return e.fail(logger, result, err, err.Error()), nil
				}
				logging.WarnWithContext(logger, "write failed; retrying", "write_retry",
					logging.Int("attempt", attempt+1),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check permissions on the output directory"),
				)
				continue
			}
			result.Complete = true
			result.Filename = filename
			logger.Info("meeting exported",
				logging.String("filename", filename),
				logging.Int("characters", length),
				logging.Int("attempts", result.Attempts),
			)
			return result, nil
		}

		logging.WarnWithContext(logger, "transcript failed verification", "verification_failed",
			logging.Int("attempt", attempt+1),
			logging.Int("max_attempts", maxAttempts),
			logging.Int("characters", length),
			logging.String("failures", strings.Join(verdict.Failures, "; ")),
			logging.String(logging.FieldImpact, "transcript not written"),
		)

		if length == prevLength {
			err := services.Wrap(services.ErrVerificationFailed, "export", "verify",
				fmt.Sprintf("transcript unchanged at %d characters", length), emptyContentErr(length))
			return e.fail(logger, result, err, ErrorUnchanged), nil
		}
		prevLength = length

		if last {
			err := services.Wrap(services.ErrVerificationFailed, "export", "verify",
				strings.Join(verdict.Failures, "; "), emptyContentErr(length))
			return e.fail(logger, result, err, ErrorVerificationFinal), nil
		}
	}
	return result, nil
}

func (e *Exporter) fetch(ctx context.Context, item *meeting.Item) (string, error) {
	detail, err := e.source.FetchDetail(ctx, item.ID)
	if err != nil {
		return "", err
	}
	item.Merge(detail)
	return e.source.FetchContent(ctx, item.ID)
}

func (e *Exporter) write(item meeting.Item, transcript, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	filename := Filename(item, e.now())
	if owner, ok := e.written[filename]; ok && owner != item.ID {
		filename = strings.TrimSuffix(filename, ".md") + "_" + shortID(item.ID) + ".md"
	}
	path := filepath.Join(outputDir, filename)
	if err := fileutil.WriteFileAtomic(path, []byte(FormatMarkdown(item, transcript)), 0o644); err != nil {
		return "", err
	}
	e.written[filename] = item.ID
	return filename, nil
}

func (e *Exporter) fail(logger *slog.Logger, result Result, err error, message string) Result {
	result.Complete = false
	result.Err = err
	result.Error = message
	logging.ErrorWithContext(logger, "meeting export failed", "export_failed",
		logging.String("reason", message),
		logging.String("kind", services.Kind(err)),
		logging.Int("attempts", result.Attempts),
	)
	return result
}

func emptyContentErr(length int) error {
	if length == 0 {
		return services.ErrEmptyContent
	}
	return nil
}

func shortID(id string) string {
	id = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, id)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
