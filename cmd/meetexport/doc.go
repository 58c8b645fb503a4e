// Package main hosts the meetexport CLI entrypoint and command graph.
//
// The Cobra-based command tree lists meetings, runs export batches, manages
// the OAuth session, and renders run history and environment checks. It
// centralizes configuration resolution and logger setup so subcommands can
// focus on user experience instead of wiring.
//
// The CLI owns cancellation: main wires SIGINT/SIGTERM into the command
// context, and the export pipeline observes it at every wait tick.
package main
