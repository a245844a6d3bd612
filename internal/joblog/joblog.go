// Package joblog provides the per-job log sink: a plain-text, line-oriented
// log file with a size cap and a fixed backup count, one file per job run.
package joblog

import (
	"fmt"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultLayout is the timestamp layout prefixing each line unless the job's
// props override it.
const DefaultLayout = "02-01-2006 15:04:05"

const (
	DefaultMaxSizeMB   = 5
	DefaultBackupCount = 4
)

type Options struct {
	// MaxSizeMB caps the size of the active log file before it rolls.
	MaxSizeMB int

	// BackupCount is the number of rolled files kept.
	BackupCount int

	// Layout is the Go time layout used as the line prefix.
	Layout string
}

func DefaultOptions() Options {
	return Options{
		MaxSizeMB:   DefaultMaxSizeMB,
		BackupCount: DefaultBackupCount,
		Layout:      DefaultLayout,
	}
}

// Logger writes timestamp-prefixed lines to a rolling file. It is safe for
// concurrent use by the runner and the job logic it hosts.
type Logger struct {
	mu     sync.Mutex
	out    *lumberjack.Logger
	layout string
	closed bool
}

// Open creates a sink writing to path. The file itself is created lazily on
// the first line written.
func Open(path string, opts Options) *Logger {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = DefaultMaxSizeMB
	}
	if opts.BackupCount <= 0 {
		opts.BackupCount = DefaultBackupCount
	}
	if opts.Layout == "" {
		opts.Layout = DefaultLayout
	}

	return &Logger{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.BackupCount,
		},
		layout: opts.Layout,
	}
}

func (l *Logger) Printf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	fmt.Fprintf(l.out, "%s %s\n", time.Now().Format(l.layout), fmt.Sprintf(format, args...))
}

func (l *Logger) Path() string {
	return l.out.Filename
}

// Close detaches the sink. Further Printf calls are dropped.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.out.Close()
}
