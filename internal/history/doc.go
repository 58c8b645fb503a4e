// Package history records export runs in a SQLite database under the state
// directory.
//
// Each batch becomes a run row with its outcome and counters; each attempted
// meeting becomes a run_items row carrying the verification checks and, for
// written files, a SHA-256 digest of the output. Store implements the export
// ledger interface so the orchestrator can write to it directly.
package history
