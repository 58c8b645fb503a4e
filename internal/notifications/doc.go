// Package notifications delivers batch outcomes via ntfy.
//
// The topic URL comes from config.toml (or MEETEXPORT_NTFY_TOPIC); without
// one, NewService returns a no-op implementation so callers never branch on
// whether notifications are enabled.
package notifications
