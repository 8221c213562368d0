// Package debatelog is the Logger external collaborator (spec.md §6): a
// sink for (agent, phase, text, fileOnly) line events and blockTitle
// section markers. The orchestrator depends only on the Logger interface
// here — never on log/slog or fatih/color directly — matching
// ai/json_parser.go's direct slog.Debug/Warn calls generalized behind an
// injected interface so tests can assert on emitted lines without a real
// sink.
package debatelog

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
)

// Logger is the external collaborator the orchestrator depends on
// (spec.md §6). The orchestrator makes no assumption about its backing
// store.
type Logger interface {
	// Line records one log line. fileOnly marks lines meant for a detail
	// log rather than the terminal summary (e.g. full prompts/stdout).
	Line(agent, phase, text string, fileOnly bool)
	// BlockTitle marks the start of a new logical section (a round, a
	// phase, a final outcome banner).
	BlockTitle(title string)
}

// SlogLogger is the default Logger implementation, wrapping log/slog
// exactly as json_parser.go calls slog.Debug/Warn directly — here routed
// through the Logger interface so internal/orchestrator never imports
// log/slog itself.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger builds a Logger writing structured text records to w.
func NewSlogLogger(w io.Writer) *SlogLogger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &SlogLogger{logger: slog.New(handler)}
}

// Line implements Logger.
func (l *SlogLogger) Line(agent, phase, text string, fileOnly bool) {
	level := slog.LevelInfo
	if fileOnly {
		level = slog.LevelDebug
	}
	l.logger.Log(context.Background(), level, text, "agent", agent, "phase", phase)
}

// BlockTitle implements Logger.
func (l *SlogLogger) BlockTitle(title string) {
	l.logger.Info(title, "block", true)
}

// NopLogger discards everything; useful as a default in tests and in
// components that treat the Logger as purely optional (spec.md §6: "the
// orchestrator makes no assumptions about its backing store").
type NopLogger struct{}

func (NopLogger) Line(agent, phase, text string, fileOnly bool) {}
func (NopLogger) BlockTitle(title string)                       {}

// TerminalLogger prints a human-facing summary to w, grounded on
// cmd/vc/status.go's color scheme: a cyan/bold banner per BlockTitle, and
// one line per agent colored by phase. fileOnly lines are skipped — they
// belong in the detail log, not the terminal (pair a TerminalLogger with a
// SlogLogger writing to a file if both views are wanted).
type TerminalLogger struct {
	w io.Writer
}

// NewTerminalLogger builds a Logger that writes colored section banners
// and agent lines to w (typically os.Stdout).
func NewTerminalLogger(w io.Writer) *TerminalLogger {
	return &TerminalLogger{w: w}
}

func (l *TerminalLogger) Line(agent, phase, text string, fileOnly bool) {
	if fileOnly {
		return
	}
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Fprintf(l.w, "  %s %s\n", gray(fmt.Sprintf("[%s/%s]", phase, agent)), text)
}

func (l *TerminalLogger) BlockTitle(title string) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(l.w, "\n%s\n", cyan(fmt.Sprintf("=== %s ===", title)))
}
