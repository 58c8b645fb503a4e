// Package verification decides whether a fetched transcript is a complete
// capture. Four independent structural checks run on every text and all must
// pass; the thresholds, phrases and patterns are configuration data.
//
// Verification is pure: the same text always yields the same Verdict.
package verification
