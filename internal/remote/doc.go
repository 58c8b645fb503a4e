// Package remote is the meeting service fetch layer. It speaks JSON-RPC 2.0
// over HTTP, invoking the service's MCP tools (list_meetings, get_meetings,
// get_meeting_transcript), and accepts both plain JSON and server-sent event
// replies.
//
// Every tool call runs through a ratelimit.Caller, so rate-limit notices are
// retried with backoff before callers see them. In-flight HTTP requests are
// detached from cancellation and bounded by per-call timeouts instead;
// cancellation is honoured at the next wait.
package remote
