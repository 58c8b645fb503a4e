// Package demo serves five fixed meetings from memory so the whole export
// pipeline can run without credentials or network access.
package demo
