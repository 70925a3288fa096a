// Package logging configures zerolog: human-readable output on the console
// and rotated JSON lines in a log file.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string
	Debug bool
	File  string // empty disables file output

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Console defaults to stderr.
	Console io.Writer
}

// Setup builds the root logger and installs it as zerolog's global logger.
// The returned closer flushes the log file.
func Setup(opts Options) (zerolog.Logger, io.Closer) {
	level := ParseLevel(opts.Level)
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	writers := []io.Writer{consoleWriter(opts.Console)}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
		}
		writers = append(writers, file)
		closer = file
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	log.Logger = logger
	zerolog.SetGlobalLevel(level)
	return logger, closer
}

func consoleWriter(out io.Writer) io.Writer {
	noColor := true
	if out == nil {
		out = os.Stderr
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			out = colorable.NewColorableStderr()
			noColor = false
		}
	}
	return zerolog.ConsoleWriter{Out: out, NoColor: noColor, TimeFormat: "15:04:05"}
}

// ParseLevel maps names such as "debug" or "WARNING" to a level, falling
// back to info.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
