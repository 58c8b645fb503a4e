package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	StateDir  string `toml:"state_dir"`
}

// Remote contains settings for the meeting service endpoint and OAuth server.
type Remote struct {
	MCPURL                string `toml:"mcp_url"`
	OAuthDiscoveryURL     string `toml:"oauth_discovery_url"`
	Resource              string `toml:"resource"`
	CallbackPort          int    `toml:"callback_port"`
	ListTimeoutSeconds    int    `toml:"list_timeout_seconds"`
	ContentTimeoutSeconds int    `toml:"content_timeout_seconds"`
	MinRequestIntervalMS  int    `toml:"min_request_interval_ms"`
}

// RateLimit contains the backoff schedule applied to rate-limited responses.
type RateLimit struct {
	DelaysSeconds    []int  `toml:"delays_seconds"`
	MaxRetries       int    `toml:"max_retries"`
	Marker           string `toml:"marker"`
	MaxResponseChars int    `toml:"max_response_chars"`
}

// Export contains batch pacing and retry settings.
type Export struct {
	CooldownSeconds int    `toml:"cooldown_seconds"`
	MaxRetries      int    `toml:"max_retries"`
	TickMillis      int    `toml:"tick_millis"`
	DefaultRange    string `toml:"default_range"`
}

// Verification contains the completeness heuristics. The phrase and pattern
// lists are data so they can be tuned per language without code changes.
type Verification struct {
	MinLength           int      `toml:"min_length"`
	CutoffWindow        int      `toml:"cutoff_window"`
	TerminalPunctuation string   `toml:"terminal_punctuation"`
	EndingWindow        int      `toml:"ending_window"`
	EndingMinLength     int      `toml:"ending_min_length"`
	EndingPhrases       []string `toml:"ending_phrases"`
	TruncationWindow    int      `toml:"truncation_window"`
	TruncationMinLength int      `toml:"truncation_min_length"`
	TruncationPatterns  []string `toml:"truncation_patterns"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for meetexport.
//
// Configuration sections by subsystem:
//   - Paths: export output and state (credentials, history, logs, lock)
//   - Remote: meeting service endpoint, OAuth discovery, timeouts, request pacing
//   - RateLimit: escalating backoff schedule for rate-limited responses
//   - Export: inter-meeting cooldown, verification retries, countdown tick
//   - Verification: transcript completeness heuristics
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Remote        Remote        `toml:"remote"`
	RateLimit     RateLimit     `toml:"rate_limit"`
	Export        Export        `toml:"export"`
	Verification  Verification  `toml:"verification"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("meetexport.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state directory. The output directory is
// created lazily by the exporter right before the first verified write.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.StateDir, err)
	}
	return nil
}

// CredentialsPath is the JSON file holding OAuth tokens and client registration.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.Paths.StateDir, "credentials.json")
}

// HistoryPath is the SQLite database recording export runs.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LogPath is the file log destination.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.StateDir, "meetexport.log")
}

// LockPath guards against two exports running against the same account.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "export.lock")
}

// RateLimitDelays returns the backoff schedule as durations.
func (c *Config) RateLimitDelays() []time.Duration {
	delays := make([]time.Duration, 0, len(c.RateLimit.DelaysSeconds))
	for _, seconds := range c.RateLimit.DelaysSeconds {
		delays = append(delays, time.Duration(seconds)*time.Second)
	}
	return delays
}

// Cooldown returns the mandatory wait between meetings.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Export.CooldownSeconds) * time.Second
}

// Tick returns the countdown granularity.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.Export.TickMillis) * time.Millisecond
}

// ListTimeout bounds lightweight remote calls (list, detail, handshake).
func (c *Config) ListTimeout() time.Duration {
	return time.Duration(c.Remote.ListTimeoutSeconds) * time.Second
}

// ContentTimeout bounds transcript fetches.
func (c *Config) ContentTimeout() time.Duration {
	return time.Duration(c.Remote.ContentTimeoutSeconds) * time.Second
}

// MinRequestInterval is the minimum spacing between remote requests.
func (c *Config) MinRequestInterval() time.Duration {
	return time.Duration(c.Remote.MinRequestIntervalMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
