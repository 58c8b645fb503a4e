package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset     = "\x1b[0m"
	ansiClearLine = "\x1b[2K"
)

var statusStyles = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const statusLabelWidth = 18

// statusWriter prints aligned "label: [KIND] detail" lines, coloured when
// the destination is a terminal.
type statusWriter struct {
	out      io.Writer
	colorize bool
}

func newStatusWriter(out io.Writer) *statusWriter {
	return &statusWriter{out: out, colorize: shouldColorize(out)}
}

func (w *statusWriter) line(label string, kind statusKind, detail string) {
	style := statusStyles[kind]
	text := "[" + style.label + "]"
	if detail != "" {
		text += " " + detail
	}
	w.print(label, text, style.color)
}

// value prints an unclassified label/value pair.
func (w *statusWriter) value(label, value string) {
	w.print(label, value, "")
}

func (w *statusWriter) header(title string) {
	heading := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	w.emit(heading, statusStyles[statusInfo].color)
	w.emit(strings.Repeat("-", len(heading)), statusStyles[statusInfo].color)
}

func (w *statusWriter) print(label, text, color string) {
	w.emit(fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", text), color)
}

func (w *statusWriter) emit(s, color string) {
	if w.colorize && color != "" {
		s = color + s + ansiReset
	}
	fmt.Fprintln(w.out, s)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
