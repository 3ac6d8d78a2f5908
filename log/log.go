// Package log is a thin wrapper around zerolog that provides a package-level
// logger with leveled, key-value ("w" suffix) and printf ("f" suffix)
// helpers.
package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

var (
	log zerolog.Logger

	// logTestWriter is used by tests and benchmarks to capture the output.
	logTestWriter     io.Writer
	logTestWriterName = "log_test_writer"

	// panicOnInvalidChars makes the logger panic if an invalid UTF-8 sequence
	// is written. Useful to catch binary data sneaking into log lines.
	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"
)

func init() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = LogLevelError
	}
	Init(level, "stderr", nil)
}

// invalidCharChecker panics if the zerolog JSON output contains the escaped
// replacement character used for invalid UTF-8 input.
type invalidCharChecker struct{}

func (*invalidCharChecker) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte(`\ufffd`)) {
		panic(fmt.Sprintf("log line with invalid chars: %q", p))
	}
	return len(p), nil
}

// errorLevelWriter only forwards warning and higher level entries.
type errorLevelWriter struct {
	io.Writer
}

func (w *errorLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.WarnLevel {
		return len(p), nil
	}
	return w.Write(p)
}

// Init initializes the logger. Output can be "stdout", "stderr" or a file
// path. If errorOutput is not nil, warnings and errors are also written there.
func Init(level, output string, errorOutput io.Writer) {
	var out io.Writer
	switch output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case logTestWriterName:
		out = logTestWriter
	default:
		f, err := os.OpenFile(filepath.Clean(output), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			panic(fmt.Sprintf("cannot create log output: %v", err))
		}
		out = f
	}
	outputs := []io.Writer{zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339Nano,
		NoColor:    output != "stdout" && output != "stderr",
	}}
	if panicOnInvalidChars {
		outputs = append(outputs, &invalidCharChecker{})
	}
	if errorOutput != nil {
		outputs = append(outputs, &errorLevelWriter{zerolog.ConsoleWriter{
			Out:        errorOutput,
			TimeFormat: time.RFC3339Nano,
			NoColor:    true,
		}})
	}
	zerolog.CallerSkipFrameCount = 3
	log = zerolog.New(zerolog.MultiLevelWriter(outputs...)).With().Timestamp().Caller().Logger()
	SetLevel(level)
}

// SetLevel sets the logging level.
func SetLevel(level string) {
	switch strings.ToLower(level) {
	case LogLevelDebug:
		log = log.Level(zerolog.DebugLevel)
	case LogLevelInfo:
		log = log.Level(zerolog.InfoLevel)
	case LogLevelWarn:
		log = log.Level(zerolog.WarnLevel)
	case LogLevelError:
		log = log.Level(zerolog.ErrorLevel)
	default:
		panic(fmt.Sprintf("invalid log level: %q", level))
	}
}

// Level returns the current log level.
func Level() string {
	switch log.GetLevel() {
	case zerolog.DebugLevel:
		return LogLevelDebug
	case zerolog.InfoLevel:
		return LogLevelInfo
	case zerolog.WarnLevel:
		return LogLevelWarn
	case zerolog.ErrorLevel:
		return LogLevelError
	default:
		return "unknown"
	}
}

// Logger returns the underlying zerolog logger.
func Logger() *zerolog.Logger {
	return &log
}

func Debug(args ...any) { log.Debug().Msg(fmt.Sprint(args...)) }
func Info(args ...any)  { log.Info().Msg(fmt.Sprint(args...)) }
func Warn(args ...any)  { log.Warn().Msg(fmt.Sprint(args...)) }
func Error(args ...any) { log.Error().Msg(fmt.Sprint(args...)) }
func Fatal(args ...any) { log.Fatal().Msg(fmt.Sprint(args...)) }

func Debugf(template string, args ...any) { log.Debug().Msgf(template, args...) }
func Infof(template string, args ...any)  { log.Info().Msgf(template, args...) }
func Warnf(template string, args ...any)  { log.Warn().Msgf(template, args...) }
func Errorf(template string, args ...any) { log.Error().Msgf(template, args...) }
func Fatalf(template string, args ...any) { log.Fatal().Msgf(template, args...) }

// Debugw logs a message with key-value pairs at debug level.
func Debugw(msg string, keyvalues ...any) { log.Debug().Fields(keyvalues).Msg(msg) }

// Infow logs a message with key-value pairs at info level.
func Infow(msg string, keyvalues ...any) { log.Info().Fields(keyvalues).Msg(msg) }

// Warnw logs a message with key-value pairs at warn level.
func Warnw(msg string, keyvalues ...any) { log.Warn().Fields(keyvalues).Msg(msg) }

// Errorw logs an error with a message and key-value pairs at error level.
func Errorw(err error, msg string, keyvalues ...any) {
	log.Error().Err(err).Fields(keyvalues).Msg(msg)
}
