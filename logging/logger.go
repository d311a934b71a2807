// Package logging wraps zerolog behind a Logger that every package derives
// sub-loggers from. Console output gets specialized formatting and coloring;
// any number of additional writers can receive structured or unstructured
// output.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethforge/solstack/logging/colors"
	"github.com/rs/zerolog"
)

// GlobalLogger is disabled by default and configured by the entry point.
// Each package should create its own sub-logger from it so log lines stay
// attributable.
var GlobalLogger *Logger

// Logger logs events to console with custom coloring and to any number of
// arbitrary writer channels in structured or unstructured format.
type Logger struct {
	// level is the log level shared by all channels.
	level zerolog.Level

	// multiLogger writes to the registered writer channels.
	multiLogger zerolog.Logger

	// consoleLogger writes specially formatted output to stdout. It is kept
	// separate so console formatting never leaks into file output.
	consoleLogger zerolog.Logger

	// writers is the list of registered writer channels.
	writers []io.Writer
}

// LogFormat describes what format to log in.
type LogFormat string

const (
	// STRUCTURED requests structured JSON output.
	STRUCTURED LogFormat = "structured"
	// UNSTRUCTURED requests human-readable output.
	UNSTRUCTURED LogFormat = "unstructured"
)

// StructuredLogInfo is a key-value mapping attached to a log event as
// structured data.
type StructuredLogInfo map[string]any

// NewLogger creates a Logger with the given level. Console output is
// enabled on request; writers may be added later.
func NewLogger(level zerolog.Level, consoleEnabled bool, writers ...io.Writer) *Logger {
	baseMultiLogger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	baseConsoleLogger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	if len(writers) > 0 {
		baseMultiLogger = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
	}
	if consoleEnabled {
		consoleWriter := setupDefaultFormatting(zerolog.ConsoleWriter{Out: os.Stdout}, level)
		baseConsoleLogger = zerolog.New(consoleWriter).Level(level)
	}

	return &Logger{
		level:         level,
		multiLogger:   baseMultiLogger,
		consoleLogger: baseConsoleLogger,
		writers:       writers,
	}
}

// NewSubLogger creates a Logger carrying an additional key-value pair of
// context, so that output remains filterable per package.
func (l *Logger) NewSubLogger(key string, value string) *Logger {
	return &Logger{
		level:         l.level,
		multiLogger:   l.multiLogger.With().Str(key, value).Logger(),
		consoleLogger: l.consoleLogger.With().Str(key, value).Logger(),
		writers:       l.writers,
	}
}

// AddWriter adds a writer channel. Unstructured channels get console-style
// rendering without coloring.
func (l *Logger) AddWriter(writer io.Writer, format LogFormat) {
	for _, w := range l.writers {
		if writer == w {
			return
		}
	}
	if format == UNSTRUCTURED {
		writer = zerolog.ConsoleWriter{Out: writer, NoColor: true}
	}
	l.writers = append(l.writers, writer)
	l.multiLogger = zerolog.New(zerolog.MultiLevelWriter(l.writers...)).Level(l.level).With().Timestamp().Logger()
}

// Level returns the log level.
func (l *Logger) Level() zerolog.Level {
	return l.level
}

// SetLevel updates the log level of all channels.
func (l *Logger) SetLevel(level zerolog.Level) {
	l.level = level
	l.multiLogger = l.multiLogger.Level(level)
	l.consoleLogger = l.consoleLogger.Level(level)
}

// EnableConsole turns on formatted console output at the logger's level.
func (l *Logger) EnableConsole() {
	consoleWriter := setupDefaultFormatting(zerolog.ConsoleWriter{Out: os.Stdout}, l.level)
	l.consoleLogger = zerolog.New(consoleWriter).Level(l.level)
}

// Debug logs a debug event.
func (l *Logger) Debug(args ...any) {
	l.log(l.consoleLogger.Debug(), l.multiLogger.Debug(), args...)
}

// Info logs an info event.
func (l *Logger) Info(args ...any) {
	l.log(l.consoleLogger.Info(), l.multiLogger.Info(), args...)
}

// Warn logs a warning event.
func (l *Logger) Warn(args ...any) {
	l.log(l.consoleLogger.Warn(), l.multiLogger.Warn(), args...)
}

// Error logs an error event.
func (l *Logger) Error(args ...any) {
	l.log(l.consoleLogger.Error(), l.multiLogger.Error(), args...)
}

// Panic logs a panic event and panics.
func (l *Logger) Panic(args ...any) {
	l.log(l.consoleLogger.Panic(), l.multiLogger.Panic(), args...)
}

// log builds the colored console message and the plain multi-writer message
// from the argument list and sends both events. Arguments may include a
// single error, a single StructuredLogInfo, and any number of color
// functions switching the console color context.
func (l *Logger) log(consoleEvent *zerolog.Event, multiEvent *zerolog.Event, args ...any) {
	colorCtx := colors.Reset
	var consoleOutput, fileOutput []string
	var info StructuredLogInfo
	var err error

	for _, arg := range args {
		switch t := arg.(type) {
		case colors.ColorFunc:
			colorCtx = t
		case StructuredLogInfo:
			info = t
		case error:
			err = t
		default:
			consoleOutput = append(consoleOutput, colorCtx(t))
			fileOutput = append(fileOutput, fmt.Sprintf("%v", t))
		}
	}

	consoleEvent.Err(err)
	multiEvent.Err(err)
	if l.level <= zerolog.DebugLevel {
		consoleEvent.Stack()
		multiEvent.Stack()
	}
	if info != nil {
		consoleEvent.Any("info", info)
		multiEvent.Any("info", info)
	}
	// Defer the multi-writer send so panic events reach every channel.
	defer multiEvent.Msg(strings.Join(fileOutput, ""))
	consoleEvent.Msg(strings.Join(consoleOutput, ""))
}

// setupDefaultFormatting applies the project's console rendering: no
// timestamps, colored level markers and a trimmed module field above debug
// level.
func setupDefaultFormatting(writer zerolog.ConsoleWriter, level zerolog.Level) zerolog.ConsoleWriter {
	writer.FormatTimestamp = func(any) string {
		return ""
	}
	writer.FormatLevel = func(i any) string {
		parsed, err := zerolog.ParseLevel(i.(string))
		if err != nil {
			return i.(string)
		}
		switch parsed {
		case zerolog.TraceLevel:
			return colors.CyanBold(zerolog.LevelTraceValue)
		case zerolog.DebugLevel:
			return colors.BlueBold(zerolog.LevelDebugValue)
		case zerolog.InfoLevel:
			return colors.GreenBold(colors.LEFT_ARROW)
		case zerolog.WarnLevel:
			return colors.YellowBold(zerolog.LevelWarnValue)
		case zerolog.ErrorLevel:
			return colors.RedBold(zerolog.LevelErrorValue)
		case zerolog.FatalLevel, zerolog.PanicLevel:
			return colors.RedBold(zerolog.LevelPanicValue)
		default:
			return i.(string)
		}
	}
	if level > zerolog.DebugLevel {
		writer.FieldsExclude = []string{"module"}
	}
	return writer
}
