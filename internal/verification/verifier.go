package verification

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"meetexport/internal/config"
)

// Check names, in the order they appear in every Verdict.
const (
	CheckLength     = "Character Count"
	CheckCutoff     = "No Cutoff"
	CheckEnding     = "Natural Ending"
	CheckTruncation = "No Truncation Pattern"
)

// Check is the outcome of one rule.
type Check struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// Verdict is the structured result of verifying one text. Complete is true
// only when every check passed; Failures lists "name: message" for the rest.
type Verdict struct {
	Complete bool     `json:"complete"`
	Checks   []Check  `json:"checks"`
	Failures []string `json:"failures,omitempty"`
}

// Rules configures the checks. Lengths and windows count characters (runes).
type Rules struct {
	MinLength           int
	CutoffWindow        int
	TerminalPunctuation string
	EndingWindow        int
	EndingMinLength     int
	EndingPhrases       []string
	TruncationWindow    int
	TruncationMinLength int
	TruncationPatterns  []string
}

// RulesFromConfig maps the [verification] config section to Rules.
func RulesFromConfig(cfg config.Verification) Rules {
	return Rules{
		MinLength:           cfg.MinLength,
		CutoffWindow:        cfg.CutoffWindow,
		TerminalPunctuation: cfg.TerminalPunctuation,
		EndingWindow:        cfg.EndingWindow,
		EndingMinLength:     cfg.EndingMinLength,
		EndingPhrases:       cfg.EndingPhrases,
		TruncationWindow:    cfg.TruncationWindow,
		TruncationMinLength: cfg.TruncationMinLength,
		TruncationPatterns:  cfg.TruncationPatterns,
	}
}

// DefaultRules returns the rules used when no configuration is supplied.
func DefaultRules() Rules {
	return RulesFromConfig(config.Default().Verification)
}

// Engine runs the checks. It holds only immutable compiled state and is safe
// for concurrent use.
type Engine struct {
	rules    Rules
	phrases  []string
	patterns []*regexp.Regexp
	printer  *message.Printer
}

// NewEngine compiles the truncation patterns case-insensitively.
func NewEngine(rules Rules) (*Engine, error) {
	patterns := make([]*regexp.Regexp, 0, len(rules.TruncationPatterns))
	for _, raw := range rules.TruncationPatterns {
		re, err := regexp.Compile("(?i)" + raw)
		if err != nil {
			return nil, fmt.Errorf("compile truncation pattern %q: %w", raw, err)
		}
		patterns = append(patterns, re)
	}
	phrases := make([]string, 0, len(rules.EndingPhrases))
	for _, phrase := range rules.EndingPhrases {
		if phrase = strings.ToLower(strings.TrimSpace(phrase)); phrase != "" {
			phrases = append(phrases, phrase)
		}
	}
	return &Engine{
		rules:    rules,
		phrases:  phrases,
		patterns: patterns,
		printer:  message.NewPrinter(language.English),
	}, nil
}

// Verify runs all checks against text.
func (e *Engine) Verify(text string) Verdict {
	runes := []rune(text)
	checks := []Check{
		e.checkLength(runes),
		e.checkCutoff(runes),
		e.checkEnding(runes),
		e.checkTruncation(runes),
	}
	verdict := Verdict{Complete: true, Checks: checks}
	for _, check := range checks {
		if !check.Passed {
			verdict.Complete = false
			verdict.Failures = append(verdict.Failures, check.Name+": "+check.Message)
		}
	}
	return verdict
}

func (e *Engine) checkLength(runes []rune) Check {
	length := len(runes)
	if length > e.rules.MinLength {
		return Check{Name: CheckLength, Passed: true, Message: e.printer.Sprintf("Length: %d characters", length)}
	}
	return Check{
		Name:    CheckLength,
		Message: e.printer.Sprintf("Too short: %d characters (minimum %d)", length, e.rules.MinLength),
	}
}

func (e *Engine) checkCutoff(runes []rune) Check {
	if len(runes) < e.rules.CutoffWindow {
		return Check{Name: CheckCutoff, Message: "Transcript too short to verify"}
	}
	window := strings.TrimRightFunc(string(tail(runes, e.rules.CutoffWindow)), unicode.IsSpace)
	if window == "" {
		// A whitespace-only tail has no final character to inspect; treat it as cut off.
		return Check{Name: CheckCutoff, Message: "Ends with only whitespace"}
	}
	last := []rune(window)
	if !strings.ContainsRune(e.rules.TerminalPunctuation, last[len(last)-1]) {
		return Check{Name: CheckCutoff, Message: "Ends without punctuation: ..." + string(tail(last, 60))}
	}
	return Check{Name: CheckCutoff, Passed: true, Message: "No mid-sentence cutoff detected"}
}

func (e *Engine) checkEnding(runes []rune) Check {
	if len(runes) < e.rules.EndingMinLength {
		return Check{Name: CheckEnding, Message: "Transcript too short"}
	}
	window := strings.ToLower(string(tail(runes, e.rules.EndingWindow)))
	for _, phrase := range e.phrases {
		if strings.Contains(window, phrase) {
			return Check{Name: CheckEnding, Passed: true, Message: fmt.Sprintf("Found ending phrase: '%s'", phrase)}
		}
	}
	return Check{Name: CheckEnding, Message: "No closing phrase found (goodbye/thanks/bye)"}
}

func (e *Engine) checkTruncation(runes []rune) Check {
	if len(runes) < e.rules.TruncationMinLength {
		return Check{Name: CheckTruncation, Message: "Transcript too short"}
	}
	window := string(tail(runes, e.rules.TruncationWindow))
	for _, re := range e.patterns {
		if loc := re.FindStringIndex(window); loc != nil {
			return Check{Name: CheckTruncation, Message: fmt.Sprintf("Known truncation pattern at end: '%s'", window[loc[0]:loc[1]])}
		}
	}
	return Check{Name: CheckTruncation, Passed: true, Message: "No known truncation patterns"}
}

func tail(runes []rune, n int) []rune {
	if n <= 0 {
		return nil
	}
	if len(runes) <= n {
		return runes
	}
	return runes[len(runes)-n:]
}
