// Package textutil provides filename sanitization and rune-safe truncation.
package textutil
