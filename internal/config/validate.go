package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateVerification(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRemote() error {
	for key, value := range map[string]string{
		"remote.mcp_url":             c.Remote.MCPURL,
		"remote.oauth_discovery_url": c.Remote.OAuthDiscoveryURL,
	} {
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, value)
		}
	}
	if c.Remote.CallbackPort <= 0 || c.Remote.CallbackPort > 65535 {
		return errors.New("remote.callback_port must be between 1 and 65535")
	}
	if err := ensurePositiveMap(map[string]int{
		"remote.list_timeout_seconds":    c.Remote.ListTimeoutSeconds,
		"remote.content_timeout_seconds": c.Remote.ContentTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Remote.MinRequestIntervalMS < 0 {
		return errors.New("remote.min_request_interval_ms must not be negative")
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	for _, seconds := range c.RateLimit.DelaysSeconds {
		if seconds <= 0 {
			return errors.New("rate_limit.delays_seconds entries must be positive")
		}
	}
	if c.RateLimit.MaxRetries < 0 {
		return errors.New("rate_limit.max_retries must not be negative")
	}
	if c.RateLimit.MaxResponseChars <= 0 {
		return errors.New("rate_limit.max_response_chars must be positive")
	}
	return nil
}

func (c *Config) validateExport() error {
	if c.Export.CooldownSeconds < 0 {
		return errors.New("export.cooldown_seconds must not be negative")
	}
	if c.Export.MaxRetries < 0 {
		return errors.New("export.max_retries must not be negative")
	}
	if c.Export.TickMillis <= 0 {
		return errors.New("export.tick_millis must be positive")
	}
	return nil
}

func (c *Config) validateVerification() error {
	if err := ensurePositiveMap(map[string]int{
		"verification.min_length":            c.Verification.MinLength,
		"verification.cutoff_window":         c.Verification.CutoffWindow,
		"verification.ending_window":         c.Verification.EndingWindow,
		"verification.ending_min_length":     c.Verification.EndingMinLength,
		"verification.truncation_window":     c.Verification.TruncationWindow,
		"verification.truncation_min_length": c.Verification.TruncationMinLength,
	}); err != nil {
		return err
	}
	if len(c.Verification.EndingPhrases) == 0 {
		return errors.New("verification.ending_phrases must contain at least one phrase")
	}
	for _, pattern := range c.Verification.TruncationPatterns {
		if _, err := regexp.Compile("(?i)" + pattern); err != nil {
			return fmt.Errorf("verification.truncation_patterns: invalid pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (expected console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key, value := range values {
		if value <= 0 {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	slices.Sort(keys)
	return fmt.Errorf("%s must be positive", strings.Join(keys, ", "))
}
