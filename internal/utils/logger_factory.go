package utils

import (
	"fmt"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logLevelDebugStringConstant          = "debug"
	logLevelInfoStringConstant           = "info"
	logLevelWarnStringConstant           = "warn"
	logLevelErrorStringConstant          = "error"
	logFormatStructuredStringConstant    = "structured"
	logFormatConsoleStringConstant       = "console"
	jsonZapEncodingStringConstant        = "json"
	consoleZapEncodingStringConstant     = "console"
	standardErrorSinkConstant            = "stderr"
	eventTimeKeyConstant                 = "time"
	eventMessageKeyConstant              = "event"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
	eventLogOpenErrorTemplateConstant    = "unable to open event log %s: %w"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

var logFormatEncodingMapping = map[LogFormat]string{
	LogFormatStructured: jsonZapEncodingStringConstant,
	LogFormatConsole:    consoleZapEncodingStringConstant,
}

// LoggerOutputs groups the loggers used by a run.
type LoggerOutputs struct {
	// DiagnosticLogger carries operational telemetry at the configured level.
	DiagnosticLogger *zap.Logger
	// EventLogger records one timestamped line per installed, changed or removed module.
	EventLogger *zap.Logger
}

// FileDescriptorProvider exposes the descriptor of a stream, as *os.File does.
type FileDescriptorProvider interface {
	Fd() uintptr
}

// LoggerFactory builds zap.Logger instances with consistent configuration.
type LoggerFactory struct{}

// NewLoggerFactory constructs a new logger factory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// DefaultLogFormat selects console output for terminals and structured output otherwise.
func DefaultLogFormat(stream FileDescriptorProvider) LogFormat {
	if stream == nil {
		return LogFormatStructured
	}
	descriptor := stream.Fd()
	if isatty.IsTerminal(descriptor) || isatty.IsCygwinTerminal(descriptor) {
		return LogFormatConsole
	}
	return LogFormatStructured
}

// CreateLogger produces a diagnostic zap.Logger honoring the requested level and format.
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (*zap.Logger, error) {
	zapLogLevel, levelExists := logLevelMapping[LogLevel(strings.ToLower(string(requestedLogLevel)))]
	if !levelExists {
		return nil, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}

	encoding, formatExists := logFormatEncodingMapping[LogFormat(strings.ToLower(string(requestedLogFormat)))]
	if !formatExists {
		return nil, fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedLogFormat)
	}

	configuration := zap.NewProductionConfig()
	configuration.Level = zap.NewAtomicLevelAt(zapLogLevel)
	configuration.Encoding = encoding
	if encoding == consoleZapEncodingStringConstant {
		configuration.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		configuration.DisableStacktrace = true
	}

	return configuration.Build()
}

// CreateEventLogger builds the event log writing to eventLogPath, or to stderr when the path is empty.
func (factory *LoggerFactory) CreateEventLogger(eventLogPath string) (*zap.Logger, error) {
	sinkPath := strings.TrimSpace(eventLogPath)
	if len(sinkPath) == 0 {
		sinkPath = standardErrorSinkConstant
	}

	sink, _, openError := zap.Open(sinkPath)
	if openError != nil {
		return nil, fmt.Errorf(eventLogOpenErrorTemplateConstant, sinkPath, openError)
	}

	encoderConfiguration := zapcore.EncoderConfig{
		TimeKey:        eventTimeKeyConstant,
		MessageKey:     eventMessageKeyConstant,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfiguration), sink, zapcore.InfoLevel)
	return zap.New(core), nil
}

// CreateLoggerOutputs builds both the diagnostic logger and the event logger.
func (factory *LoggerFactory) CreateLoggerOutputs(requestedLogLevel LogLevel, requestedLogFormat LogFormat, eventLogPath string) (LoggerOutputs, error) {
	diagnosticLogger, diagnosticError := factory.CreateLogger(requestedLogLevel, requestedLogFormat)
	if diagnosticError != nil {
		return LoggerOutputs{}, diagnosticError
	}

	eventLogger, eventError := factory.CreateEventLogger(eventLogPath)
	if eventError != nil {
		return LoggerOutputs{}, eventError
	}

	return LoggerOutputs{DiagnosticLogger: diagnosticLogger, EventLogger: eventLogger}, nil
}
