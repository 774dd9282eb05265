// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Defaults for the rotating log file.
const (
	DefaultMaxSizeMB  = 50
	DefaultMaxBackups = 50
)

// Options configures Init.
type Options struct {
	// File is the rotating log file; empty disables file logging.
	File       string
	MaxSizeMB  int
	MaxBackups int
	Debug      bool
}

// Init points the global logger at the rotating file plus any extra
// writers (a console writer, usually) and sets the global level.
func Init(opts Options, writers []io.Writer) error {
	var logWriters []io.Writer
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
			return err
		}
		maxSize, maxBackups := opts.MaxSizeMB, opts.MaxBackups
		if maxSize <= 0 {
			maxSize = DefaultMaxSizeMB
		}
		if maxBackups <= 0 {
			maxBackups = DefaultMaxBackups
		}
		logWriters = append(logWriters, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
		})
	}
	logWriters = append(logWriters, writers...)
	if len(logWriters) == 0 {
		logWriters = append(logWriters, io.Discard)
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = log.Output(io.MultiWriter(logWriters...)).
		With().Timestamp().Caller().Logger()

	return nil
}
