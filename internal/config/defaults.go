package config

const (
	defaultConfigPath            = "~/.config/meetexport/config.toml"
	defaultOutputDir             = "~/Documents/meeting-exports"
	defaultStateDir              = "~/.local/share/meetexport"
	defaultMCPURL                = "https://mcp.granola.ai/mcp"
	defaultOAuthDiscoveryURL     = "https://mcp-auth.granola.ai/.well-known/oauth-authorization-server"
	defaultResource              = "https://mcp.granola.ai/"
	defaultCallbackPort          = 19872
	defaultListTimeoutSeconds    = 30
	defaultContentTimeoutSeconds = 120
	defaultMinRequestIntervalMS  = 1000
	defaultRateLimitMaxRetries   = 5
	defaultRateLimitMarker       = "rate limit"
	defaultMaxResponseChars      = 200
	defaultCooldownSeconds       = 120
	defaultExportMaxRetries      = 2
	defaultTickMillis            = 1000
	defaultRange                 = "last_30_days"
	defaultMinLength             = 10000
	defaultCutoffWindow          = 200
	defaultTerminalPunctuation   = ".!?\"')"
	defaultEndingWindow          = 500
	defaultEndingMinLength       = 100
	defaultTruncationWindow      = 100
	defaultTruncationMinLength   = 200
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// DefaultRateLimitDelays is the escalating backoff schedule in seconds.
func DefaultRateLimitDelays() []int {
	return []int{120, 180, 300, 420, 600}
}

// DefaultEndingPhrases are conversational closings that signal a natural end.
func DefaultEndingPhrases() []string {
	return []string{
		"goodbye", "bye", "thanks", "thank you", "see you",
		"take care", "have a good", "talk soon", "speak soon",
		"until next time", "catch you later",
	}
}

// DefaultTruncationPatterns are end-of-text signatures observed on silently cut captures.
func DefaultTruncationPatterns() []string {
	return []string{
		`whose\s+title\.\s+Is\s+`,
		`\.\s+Is\s+\w+\s+\w+\.\s*$`,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			StateDir:  defaultStateDir,
		},
		Remote: Remote{
			MCPURL:                defaultMCPURL,
			OAuthDiscoveryURL:     defaultOAuthDiscoveryURL,
			Resource:              defaultResource,
			CallbackPort:          defaultCallbackPort,
			ListTimeoutSeconds:    defaultListTimeoutSeconds,
			ContentTimeoutSeconds: defaultContentTimeoutSeconds,
			MinRequestIntervalMS:  defaultMinRequestIntervalMS,
		},
		RateLimit: RateLimit{
			DelaysSeconds:    DefaultRateLimitDelays(),
			MaxRetries:       defaultRateLimitMaxRetries,
			Marker:           defaultRateLimitMarker,
			MaxResponseChars: defaultMaxResponseChars,
		},
		Export: Export{
			CooldownSeconds: defaultCooldownSeconds,
			MaxRetries:      defaultExportMaxRetries,
			TickMillis:      defaultTickMillis,
			DefaultRange:    defaultRange,
		},
		Verification: Verification{
			MinLength:           defaultMinLength,
			CutoffWindow:        defaultCutoffWindow,
			TerminalPunctuation: defaultTerminalPunctuation,
			EndingWindow:        defaultEndingWindow,
			EndingMinLength:     defaultEndingMinLength,
			EndingPhrases:       DefaultEndingPhrases(),
			TruncationWindow:    defaultTruncationWindow,
			TruncationMinLength: defaultTruncationMinLength,
			TruncationPatterns:  DefaultTruncationPatterns(),
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
