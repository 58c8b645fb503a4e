package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"meetexport/internal/config"
	"meetexport/internal/countdown"
	"meetexport/internal/export"
	"meetexport/internal/history"
	"meetexport/internal/logging"
	"meetexport/internal/meeting"
	"meetexport/internal/notifications"
	"meetexport/internal/preflight"
	"meetexport/internal/remote"
	"meetexport/internal/services"
	"meetexport/internal/textutil"
	"meetexport/internal/verification"
)

type exportOptions struct {
	rangeName  string
	from       string
	to         string
	ids        []string
	outputDir  string
	cooldown   int
	maxRetries int
	jsonOutput bool
	demo       demoFlags
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export meetings as verified Markdown transcripts",
		Long: `Export fetches each meeting's transcript, verifies it is complete, and
writes it as Markdown. Meetings are exported one at a time with a cooldown in
between; the first meeting that cannot be verified stops the batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}
			return runExport(cmd, ctx, cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.rangeName, "range", "r", "", "Date range preset ("+strings.Join(remote.Presets(), ", ")+")")
	cmd.Flags().StringVar(&opts.from, "from", "", "Start date (YYYY-MM-DD), requires --to")
	cmd.Flags().StringVar(&opts.to, "to", "", "End date (YYYY-MM-DD), requires --from")
	cmd.Flags().StringSliceVar(&opts.ids, "id", nil, "Export only these meeting IDs (repeatable)")
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Output directory (default from config)")
	cmd.Flags().IntVar(&opts.cooldown, "cooldown", 0, "Seconds to wait between meetings (default from config)")
	cmd.Flags().IntVar(&opts.maxRetries, "max-retries", 0, "Retries per meeting when verification fails (default from config)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the batch result as JSON")
	opts.demo.register(cmd)
	return cmd
}

// apply folds explicitly set flags into cfg.
func (o *exportOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	if o.outputDir != "" {
		expanded, err := config.ExpandPath(o.outputDir)
		if err != nil {
			return fmt.Errorf("resolve output directory: %w", err)
		}
		cfg.Paths.OutputDir = expanded
	}
	if cmd.Flags().Changed("cooldown") {
		if o.cooldown < 0 {
			return errors.New("--cooldown must be >= 0")
		}
		cfg.Export.CooldownSeconds = o.cooldown
	}
	if cmd.Flags().Changed("max-retries") {
		if o.maxRetries < 0 {
			return errors.New("--max-retries must be >= 0")
		}
		cfg.Export.MaxRetries = o.maxRetries
	}
	if len(o.ids) > 0 && (o.rangeName != "" || o.from != "" || o.to != "") {
		return errors.New("--id cannot be combined with --range, --from or --to")
	}
	return nil
}

func runExport(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, opts exportOptions) error {
	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}
	logger := ctx.log()
	progressOut := cmd.ErrOrStderr()
	renderer := newProgressRenderer(progressOut, shouldColorize(progressOut))

	if check := preflight.CheckOutputDirectory("Output directory", cfg.Paths.OutputDir); !check.Passed {
		return fmt.Errorf("output directory unusable: %s", check.Detail)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire export lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another export is already running (lock %s)", cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	source := ctx.fetcher(cfg, opts.demo, renderer)
	items, label, err := selectMeetings(runCtx, cfg, source, opts)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No meetings found for %s\n", label)
		return nil
	}
	fmt.Fprintf(progressOut, "Exporting %d meeting(s) from %s to %s\n", len(items), label, cfg.Paths.OutputDir)

	engine, err := verification.NewEngine(verification.RulesFromConfig(cfg.Verification))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "cli", "verification", "compile rules", err)
	}

	orchestratorOpts := []export.OrchestratorOption{
		export.WithObserver(renderer),
		export.WithTimer(countdown.New(cfg.Tick(), nil)),
		export.WithLogger(logger),
	}
	if store, err := history.Open(cfg.HistoryPath()); err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run will not be recorded"),
		)
	} else {
		defer store.Close()
		orchestratorOpts = append(orchestratorOpts, export.WithLedger(store))
	}

	notifier := notifications.NewService(cfg)
	notify(logger, "start", notifier.NotifyBatchStarted(runCtx, len(items), label))

	exporter := export.NewExporter(source, engine, logger)
	orchestrator := export.NewOrchestrator(exporter, source, export.Settings{
		Cooldown:   cfg.Cooldown(),
		MaxRetries: cfg.Export.MaxRetries,
	}, orchestratorOpts...)

	var (
		batch  export.BatchResult
		runErr error
	)
	var g errgroup.Group
	g.Go(renderer.run)
	g.Go(func() error {
		defer renderer.close()
		batch, runErr = orchestrator.Run(runCtx, items, cfg.Paths.OutputDir)
		return nil
	})
	_ = g.Wait()

	if runErr != nil {
		if errors.Is(runErr, services.ErrCancelled) {
			fmt.Fprintf(progressOut, "Export cancelled (%d of %d exported)\n", renderer.completed, len(items))
			notify(logger, "cancel", notifier.NotifyBatchCancelled(runCtx, renderer.completed, len(items)))
		}
		return runErr
	}

	if opts.jsonOutput {
		if err := writeJSON(cmd, batch); err != nil {
			return err
		}
	} else {
		printBatchSummary(cmd.OutOrStdout(), batch, len(items))
	}

	if !batch.Success {
		var failed export.Result
		if len(batch.FailedResults) > 0 {
			failed = batch.FailedResults[0]
		}
		notify(logger, "failure", notifier.NotifyBatchFailed(runCtx, batch.Completed, batch.Total, failed.Title, failed.Error))
		return fmt.Errorf("export stopped at %q: %s", failed.Title, failed.Error)
	}
	notify(logger, "success", notifier.NotifyBatchCompleted(runCtx, batch.Completed, batch.Duration, batch.OutputDir))
	return nil
}

// selectMeetings resolves the batch from --id or the date range.
func selectMeetings(ctx context.Context, cfg *config.Config, source fetcher, opts exportOptions) ([]meeting.Item, string, error) {
	if len(opts.ids) > 0 {
		items := make([]meeting.Item, 0, len(opts.ids))
		for _, id := range opts.ids {
			if id = strings.TrimSpace(id); id != "" {
				items = append(items, meeting.Item{ID: id, Title: id})
			}
		}
		return items, fmt.Sprintf("%d selected ID(s)", len(items)), nil
	}

	r, err := dateRange(cfg, opts.rangeName, opts.from, opts.to)
	if err != nil {
		return nil, "", err
	}
	items, err := source.ListMeetings(ctx, r)
	if err != nil {
		return nil, "", fmt.Errorf("list meetings: %w", err)
	}
	return items, r.Label(), nil
}

func printBatchSummary(out io.Writer, batch export.BatchResult, total int) {
	fmt.Fprintln(out)
	if batch.Success {
		fmt.Fprintf(out, "Exported %d of %d meeting(s) in %s\n", batch.Completed, total, batch.Duration.Round(time.Second))
	} else {
		notAttempted := total - batch.Completed - batch.Failed
		fmt.Fprintf(out, "Export stopped: %d exported, %d failed, %d not attempted\n", batch.Completed, batch.Failed, notAttempted)
	}
	fmt.Fprintf(out, "Output: %s\n", batch.OutputDir)
	if len(batch.FailedResults) == 0 {
		return
	}

	rows := make([][]string, 0, len(batch.FailedResults))
	for _, r := range batch.FailedResults {
		failures := "-"
		if r.Verdict != nil && len(r.Verdict.Failures) > 0 {
			failures = strings.Join(r.Verdict.Failures, "; ")
		}
		rows = append(rows, []string{
			textutil.Truncate(r.Title, 40),
			r.Error,
			strconv.Itoa(r.Attempts),
			failures,
		})
	}
	fmt.Fprintln(out, renderTable([]column{col("Meeting"), wideCol("Error", 50), numCol("Attempts"), wideCol("Failed checks", 50)}, rows))
}

func notify(logger *slog.Logger, event string, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logger, "notification failed", "notification_failed",
		logging.String("event", event),
		logging.Error(err),
		logging.String(logging.FieldImpact, "export outcome unaffected"),
	)
}
