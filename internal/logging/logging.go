// Package logging builds the application *log.Logger over a rotating file.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const Flags = log.LstdFlags | log.Lmicroseconds

type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Stderr tees output to the terminal, for headless runs.
	Stderr bool
	// Extra receives a copy of every line, e.g. the dashboard log pane.
	Extra []io.Writer
}

// New returns a logger writing to opts.File and a function that closes
// the file.
func New(opts Options) (*log.Logger, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return nil, nil, err
	}
	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}

	writers := []io.Writer{file}
	if opts.Stderr {
		writers = append(writers, os.Stderr)
	}
	writers = append(writers, opts.Extra...)

	var out io.Writer = file
	if len(writers) > 1 {
		out = io.MultiWriter(writers...)
	}
	return log.New(out, "", Flags), file.Close, nil
}
