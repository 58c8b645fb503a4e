// Package logs reads the meetexport log file for `meetexport logs`.
//
// Reads are bounded: ReadLast keeps only the requested number of lines in
// memory, and Follow polls from a byte offset so a long-running export can be
// watched from a second terminal.
package logs
