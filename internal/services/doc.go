// Package services defines shared utilities consumed by the export pipeline and
// its external integrations.
//
// Key responsibilities:
//   - The error taxonomy (cancelled, rate-limit exhausted, verification failed,
//     transient, not found) plus the Wrap helper that tags failures with a
//     sentinel so callers can branch with errors.Is.
//   - Context helpers that stamp run IDs, meeting IDs, and operation names for
//     logging.
//
// Use these helpers when wiring new pipeline logic so failure classification
// stays uniform from the fetch layer up to the batch summary.
package services
