package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRemote()
	c.normalizeRateLimit()
	c.normalizeExport()
	c.normalizeVerification()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRemote() {
	c.Remote.MCPURL = strings.TrimSpace(c.Remote.MCPURL)
	if c.Remote.MCPURL == "" {
		c.Remote.MCPURL = defaultMCPURL
	}
	c.Remote.OAuthDiscoveryURL = strings.TrimSpace(c.Remote.OAuthDiscoveryURL)
	if c.Remote.OAuthDiscoveryURL == "" {
		c.Remote.OAuthDiscoveryURL = defaultOAuthDiscoveryURL
	}
	c.Remote.Resource = strings.TrimSpace(c.Remote.Resource)
	if c.Remote.Resource == "" {
		c.Remote.Resource = defaultResource
	}
}

func (c *Config) normalizeRateLimit() {
	c.RateLimit.Marker = strings.ToLower(strings.TrimSpace(c.RateLimit.Marker))
	if c.RateLimit.Marker == "" {
		c.RateLimit.Marker = defaultRateLimitMarker
	}
	if len(c.RateLimit.DelaysSeconds) == 0 {
		c.RateLimit.DelaysSeconds = DefaultRateLimitDelays()
	}
}

func (c *Config) normalizeExport() {
	c.Export.DefaultRange = strings.ToLower(strings.TrimSpace(c.Export.DefaultRange))
	if c.Export.DefaultRange == "" {
		c.Export.DefaultRange = defaultRange
	}
	if c.Export.TickMillis == 0 {
		c.Export.TickMillis = defaultTickMillis
	}
}

func (c *Config) normalizeVerification() {
	phrases := make([]string, 0, len(c.Verification.EndingPhrases))
	for _, phrase := range c.Verification.EndingPhrases {
		if phrase = strings.ToLower(strings.TrimSpace(phrase)); phrase != "" {
			phrases = append(phrases, phrase)
		}
	}
	c.Verification.EndingPhrases = phrases
	patterns := make([]string, 0, len(c.Verification.TruncationPatterns))
	for _, pattern := range c.Verification.TruncationPatterns {
		if strings.TrimSpace(pattern) != "" {
			patterns = append(patterns, pattern)
		}
	}
	c.Verification.TruncationPatterns = patterns
	if c.Verification.TerminalPunctuation == "" {
		c.Verification.TerminalPunctuation = defaultTerminalPunctuation
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("MEETEXPORT_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
