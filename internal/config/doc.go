// Package config loads, normalizes, and validates meetexport configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MEETEXPORT_NTFY_TOPIC. The Config type centralizes every knob the CLI and the
// export pipeline need: the backoff schedule, the inter-meeting cooldown, the
// countdown tick, and the verification heuristics (phrases and truncation
// patterns are data, not code).
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
