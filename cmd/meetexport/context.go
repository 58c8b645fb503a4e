package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"meetexport/internal/auth"
	"meetexport/internal/config"
	"meetexport/internal/countdown"
	"meetexport/internal/demo"
	"meetexport/internal/logging"
	"meetexport/internal/meeting"
	"meetexport/internal/ratelimit"
	"meetexport/internal/remote"
)

// fetcher is the fetch layer as seen by commands: the remote client or the
// demo source.
type fetcher interface {
	ListMeetings(ctx context.Context, r remote.Range) ([]meeting.Item, error)
	FetchDetail(ctx context.Context, id string) (meeting.Item, error)
	FetchContent(ctx context.Context, id string) (string, error)
	ResetSession()
	Ping(ctx context.Context) error
}

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configFile string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if exists {
			c.configFile = resolved
		}
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// configPath describes where the configuration came from.
func (c *commandContext) configPath() string {
	if c.configFile == "" {
		return "(defaults)"
	}
	return c.configFile
}

// log returns the command logger. A logger that cannot open the state log
// falls back to stderr rather than failing the command.
func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, _ := c.ensureConfig()
		console := c.verbose != nil && *c.verbose
		logger, err := logging.New(logging.OptionsFromConfig(cfg, console))
		if err != nil {
			logger, _ = logging.New(logging.Options{Level: "info", Format: "console", OutputPaths: []string{"stderr"}})
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) tokenManager(cfg *config.Config) *auth.Manager {
	return auth.NewManager(auth.NewFileStore(cfg.CredentialsPath()), auth.WithLogger(c.log()))
}

func (c *commandContext) loginFlow(cfg *config.Config, open func(string) error) *auth.Flow {
	return auth.NewFlow(auth.LoginSettings{
		DiscoveryURL: cfg.Remote.OAuthDiscoveryURL,
		Resource:     cfg.Remote.Resource,
		CallbackPort: cfg.Remote.CallbackPort,
		ClientName:   "meetexport",
	}, auth.NewFileStore(cfg.CredentialsPath()), auth.WithFlowLogger(c.log()), auth.WithBrowser(open))
}

// rateLimiter builds the caller wrapping every remote tool call.
func (c *commandContext) rateLimiter(cfg *config.Config, observer ratelimit.Observer) *ratelimit.Caller {
	opts := []ratelimit.Option{
		ratelimit.WithTimer(countdown.New(cfg.Tick(), nil)),
		ratelimit.WithLogger(c.log()),
	}
	if observer != nil {
		opts = append(opts, ratelimit.WithObserver(observer))
	}
	return ratelimit.New(ratelimit.Settings{
		Delays:           cfg.RateLimitDelays(),
		MaxRetries:       cfg.RateLimit.MaxRetries,
		Marker:           cfg.RateLimit.Marker,
		MaxResponseChars: cfg.RateLimit.MaxResponseChars,
	}, opts...)
}

func (c *commandContext) remoteClient(cfg *config.Config, caller *ratelimit.Caller) *remote.Client {
	return remote.NewClient(cfg.Remote.MCPURL, c.tokenManager(cfg), caller,
		remote.WithMinInterval(cfg.MinRequestInterval()),
		remote.WithTimeouts(cfg.ListTimeout(), cfg.ContentTimeout()),
		remote.WithClientInfo("meetexport", version),
		remote.WithLogger(c.log()),
	)
}

// demoFlags selects the in-memory fetch layer.
type demoFlags struct {
	enabled bool
	latency time.Duration
}

func (d *demoFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&d.enabled, "demo", false, "Use built-in mock meetings instead of the remote service")
	cmd.Flags().DurationVar(&d.latency, "demo-latency", 250*time.Millisecond, "Simulated latency per demo call")
	_ = cmd.Flags().MarkHidden("demo-latency")
}

// fetcher returns the demo source when demo mode is on, otherwise the remote
// client.
func (c *commandContext) fetcher(cfg *config.Config, d demoFlags, observer ratelimit.Observer) fetcher {
	if d.enabled {
		return demo.NewSource(demo.WithLatency(d.latency))
	}
	return c.remoteClient(cfg, c.rateLimiter(cfg, observer))
}

// dateRange resolves --range/--from/--to against the configured default.
func dateRange(cfg *config.Config, preset, from, to string) (remote.Range, error) {
	if strings.TrimSpace(preset) == "" {
		preset = cfg.Export.DefaultRange
	}
	return remote.NewRange(preset, from, to)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
