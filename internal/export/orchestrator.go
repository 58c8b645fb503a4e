package export

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"meetexport/internal/countdown"
	"meetexport/internal/logging"
	"meetexport/internal/meeting"
	"meetexport/internal/services"
)

// Run outcomes recorded in the ledger.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// ItemExporter exports one meeting.
type ItemExporter interface {
	Export(ctx context.Context, item meeting.Item, outputDir string, maxRetries int) (Result, error)
}

// SessionResetter discards remote session state between meetings.
type SessionResetter interface {
	ResetSession()
}

// Observer receives batch progress. All methods must return quickly.
type Observer interface {
	Progress(current, total int, label string)
	CooldownWait(remaining, total time.Duration)
	ItemResult(id string, success bool)
}

// RunInfo describes a batch as it starts.
type RunInfo struct {
	RunID     string
	Total     int
	OutputDir string
	StartedAt time.Time
}

// Ledger persists batch progress. Ledger errors are logged and never change
// the batch outcome.
type Ledger interface {
	BeginRun(ctx context.Context, run RunInfo) error
	RecordItem(ctx context.Context, runID string, position int, result Result) error
	FinishRun(ctx context.Context, runID, outcome string, finishedAt time.Time) error
}

// BatchResult summarizes a batch that ran to its end or to its first failure.
// Success implies Failed == 0 and Completed == Total.
type BatchResult struct {
	RunID            string        `json:"run_id"`
	Success          bool          `json:"success"`
	Total            int           `json:"total"`
	Completed        int           `json:"completed"`
	Failed           int           `json:"failed"`
	FailedResults    []Result      `json:"failed_meetings"`
	CompletedResults []Result      `json:"completed_meetings"`
	OutputDir        string        `json:"output_dir"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration_ns"`
}

// Settings controls batch pacing.
type Settings struct {
	Cooldown   time.Duration
	MaxRetries int
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithObserver registers the progress observer.
func WithObserver(o Observer) OrchestratorOption {
	return func(orc *Orchestrator) { orc.observer = o }
}

// WithLedger registers the run ledger.
func WithLedger(l Ledger) OrchestratorOption {
	return func(orc *Orchestrator) { orc.ledger = l }
}

// WithTimer overrides the cooldown wait primitive.
func WithTimer(t *countdown.Timer) OrchestratorOption {
	return func(orc *Orchestrator) {
		if t != nil {
			orc.timer = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(orc *Orchestrator) { orc.logger = logging.NewComponentLogger(logger, "batch") }
}

// WithNow overrides the wall clock used for run timestamps.
func WithNow(now func() time.Time) OrchestratorOption {
	return func(orc *Orchestrator) {
		if now != nil {
			orc.now = now
		}
	}
}

// Orchestrator runs batches strictly in order, one meeting at a time.
type Orchestrator struct {
	exporter ItemExporter
	session  SessionResetter
	settings Settings
	timer    *countdown.Timer
	observer Observer
	ledger   Ledger
	logger   *slog.Logger
	sampler  *logging.WaitSampler
	now      func() time.Time
}

// NewOrchestrator constructs an Orchestrator. session may be nil when the
// source keeps no state between meetings.
func NewOrchestrator(exporter ItemExporter, session SessionResetter, settings Settings, opts ...OrchestratorOption) *Orchestrator {
	orc := &Orchestrator{
		exporter: exporter,
		session:  session,
		settings: settings,
		timer:    countdown.New(countdown.DefaultTick, nil),
		logger:   logging.NewComponentLogger(nil, "batch"),
		sampler:  logging.NewWaitSampler(25),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(orc)
	}
	return orc
}

// Run exports items in order. The first incomplete meeting stops the batch;
// later meetings are never attempted. Cancellation returns an error matching
// services.ErrCancelled and a zero BatchResult.
func (o *Orchestrator) Run(ctx context.Context, items []meeting.Item, outputDir string) (BatchResult, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)
	started := o.now()
	total := len(items)

	o.beginRun(ctx, logger, RunInfo{RunID: runID, Total: total, OutputDir: outputDir, StartedAt: started})
	logger.Info("export started",
		logging.Int("meetings", total),
		logging.String("output_dir", outputDir),
		logging.Duration("cooldown", o.settings.Cooldown),
	)

	batch := BatchResult{RunID: runID, Total: total, OutputDir: outputDir, StartedAt: started}
	for i, item := range items {
		if i > 0 {
			if err := o.cooldown(ctx, logger); err != nil {
				o.cancelled(ctx, logger, runID, err)
				return BatchResult{}, err
			}
		}

		title := item.DisplayTitle()
		if o.observer != nil {
			o.observer.Progress(i+1, total, "Exporting: "+title)
		}

		result, err := o.exporter.Export(ctx, item, outputDir, o.settings.MaxRetries)
		if err != nil {
			if !errors.Is(err, services.ErrCancelled) {
				err = services.Wrap(services.ErrCancelled, "batch", "export", "batch aborted", err)
			}
			o.cancelled(ctx, logger, runID, err)
			return BatchResult{}, err
		}
		o.recordItem(ctx, logger, runID, i+1, result)

		if o.observer != nil {
			o.observer.ItemResult(item.ID, result.Complete)
		}
		if result.Complete {
			batch.CompletedResults = append(batch.CompletedResults, result)
			continue
		}
		batch.FailedResults = append(batch.FailedResults, result)
		logging.ErrorWithContext(logger, "export failed; stopping batch", "batch_failed",
			logging.String(logging.FieldItemID, item.ID),
			logging.String("reason", result.Error),
			logging.Int("not_attempted", total-i-1),
			logging.String(logging.FieldErrorHint, "rerun the export once the failing meeting is available"),
		)
		break
	}

	batch.Completed = len(batch.CompletedResults)
	batch.Failed = len(batch.FailedResults)
	batch.Success = batch.Failed == 0
	batch.Duration = o.now().Sub(started)

	outcome := OutcomeSuccess
	if !batch.Success {
		outcome = OutcomeFailed
	}
	o.finishRun(ctx, logger, runID, outcome)
	logger.Info("export finished",
		logging.String("outcome", outcome),
		logging.Int("completed", batch.Completed),
		logging.Int("failed", batch.Failed),
		logging.Int("total", total),
		logging.Duration("duration", batch.Duration),
	)
	return batch, nil
}

func (o *Orchestrator) cooldown(ctx context.Context, logger *slog.Logger) error {
	if o.session != nil {
		o.session.ResetSession()
	}
	total := o.settings.Cooldown
	if total <= 0 {
		if ctx.Err() != nil {
			return services.Cancelled(ctx)
		}
		return nil
	}
	logger.Info("cooldown before next meeting", logging.Duration("wait", total))
	o.sampler.Reset()
	return o.timer.Wait(ctx, total, func(remaining time.Duration) {
		if o.observer != nil {
			o.observer.CooldownWait(remaining, total)
		}
		if o.sampler.ShouldLog("cooldown", remaining, total) {
			logger.Debug("cooldown wait", logging.Duration("remaining", remaining))
		}
	})
}

func (o *Orchestrator) cancelled(ctx context.Context, logger *slog.Logger, runID string, err error) {
	logging.WarnWithContext(logger, "export cancelled", "batch_cancelled",
		logging.Error(err),
		logging.String(logging.FieldImpact, "remaining meetings were not exported"),
		logging.String(logging.FieldErrorHint, "files already written were verified and remain on disk"),
	)
	o.finishRun(ctx, logger, runID, OutcomeCancelled)
}

func (o *Orchestrator) beginRun(ctx context.Context, logger *slog.Logger, info RunInfo) {
	if o.ledger == nil {
		return
	}
	if err := o.ledger.BeginRun(context.WithoutCancel(ctx), info); err != nil {
		o.ledgerWarning(logger, "begin run", err)
	}
}

func (o *Orchestrator) recordItem(ctx context.Context, logger *slog.Logger, runID string, position int, result Result) {
	if o.ledger == nil {
		return
	}
	if err := o.ledger.RecordItem(context.WithoutCancel(ctx), runID, position, result); err != nil {
		o.ledgerWarning(logger, "record item", err)
	}
}

func (o *Orchestrator) finishRun(ctx context.Context, logger *slog.Logger, runID, outcome string) {
	if o.ledger == nil {
		return
	}
	if err := o.ledger.FinishRun(context.WithoutCancel(ctx), runID, outcome, o.now()); err != nil {
		o.ledgerWarning(logger, "finish run", err)
	}
}

func (o *Orchestrator) ledgerWarning(logger *slog.Logger, op string, err error) {
	logging.WarnWithContext(logger, "run history update failed", "history_write_failed",
		logging.String("op", op),
		logging.Error(err),
		logging.String(logging.FieldImpact, "run history may be incomplete"),
	)
}
