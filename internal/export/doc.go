// Package export drives the all-or-nothing meeting export.
//
// Exporter handles one meeting: it fetches detail and transcript, verifies
// the transcript, retries incomplete captures with a stagnation guard, and
// writes the markdown file only once verification passes. Orchestrator runs
// Exporter over an ordered batch with a mandatory cooldown between meetings
// and stops at the first failure.
//
// Cancellation travels through the context. It is observed at every wait
// tick and surfaces as an error matching services.ErrCancelled; no
// BatchResult is produced for a cancelled run.
package export
