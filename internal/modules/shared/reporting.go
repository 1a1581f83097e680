package shared

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// Reporter emits the single-line outcomes of a run.
type Reporter interface {
	// Report prints an informational line.
	Report(format string, args ...any)
	// Warn prints a recoverable failure.
	Warn(format string, args ...any)
	// RecordEvent prints an informational line and appends it to the event log.
	RecordEvent(format string, args ...any)
}

// ReporterOptions configures a console reporter.
type ReporterOptions struct {
	Output      io.Writer
	ErrorOutput io.Writer
	EventLogger *zap.Logger
	Quiet       bool
}

type consoleReporter struct {
	output      io.Writer
	errorOutput io.Writer
	eventLogger *zap.Logger
	quiet       bool
}

// NewConsoleReporter constructs a Reporter that prints informational lines to Output,
// warnings to ErrorOutput and events to EventLogger. Quiet suppresses informational lines only.
func NewConsoleReporter(options ReporterOptions) Reporter {
	output := options.Output
	if output == nil {
		output = os.Stdout
	}
	errorOutput := options.ErrorOutput
	if errorOutput == nil {
		errorOutput = os.Stderr
	}
	eventLogger := options.EventLogger
	if eventLogger == nil {
		eventLogger = zap.NewNop()
	}
	return consoleReporter{output: output, errorOutput: errorOutput, eventLogger: eventLogger, quiet: options.Quiet}
}

func (reporter consoleReporter) Report(format string, args ...any) {
	if reporter.quiet {
		return
	}
	fmt.Fprintln(reporter.output, fmt.Sprintf(format, args...))
}

func (reporter consoleReporter) Warn(format string, args ...any) {
	fmt.Fprintln(reporter.errorOutput, fmt.Sprintf(format, args...))
}

func (reporter consoleReporter) RecordEvent(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	reporter.eventLogger.Info(message)
	if reporter.quiet {
		return
	}
	fmt.Fprintln(reporter.output, message)
}
