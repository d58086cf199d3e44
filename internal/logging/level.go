package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Level is the verbosity threshold. Lower values are less verbose.
type Level uint8

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// slog has no trace or critical levels; these sit outside the built-in range.
const (
	slogLevelTrace    = slog.LevelDebug - 4
	slogLevelCritical = slog.LevelError + 4
)

var levelNames = map[string]Level{
	"error": LevelError,
	"warn":  LevelWarn,
	"info":  LevelInfo,
	"debug": LevelDebug,
	"trace": LevelTrace,
}

// ParseLevel accepts a level name (error, warn, info, debug, trace; any case)
// or a number from 0 to 5, where 0 is error and 4 and 5 both mean trace.
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		if n > 5 {
			return 0, fmt.Errorf("invalid log level %q", s)
		}
		if n > uint64(LevelTrace) {
			return LevelTrace, nil
		}
		return Level(n), nil
	}
	if l, ok := levelNames[strings.ToLower(s)]; ok {
		return l, nil
	}
	return 0, fmt.Errorf("invalid log level %q", s)
}

func (l Level) String() string {
	for name, v := range levelNames {
		if v == l {
			return name
		}
	}
	return "unknown"
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelWarn:
		return slog.LevelWarn
	case LevelInfo:
		return slog.LevelInfo
	case LevelDebug:
		return slog.LevelDebug
	case LevelTrace:
		return slogLevelTrace
	default:
		return slog.LevelError
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelTrace:
		return zerolog.TraceLevel
	default:
		return zerolog.ErrorLevel
	}
}

// Backend names accepted by New.
const (
	BackendSlog    = "slog"
	BackendZerolog = "zerolog"
)

// Options configure New.
type Options struct {
	Backend string
	Level   Level
	// Console switches zerolog to its human-readable writer. slog always emits JSON.
	Console bool
	Output  io.Writer
}

// New builds the Logger selected by opts.Backend, defaulting to slog.
func New(opts Options) (Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	switch opts.Backend {
	case "", BackendSlog:
		h := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: opts.Level.slog()})
		return NewSlogLogger(slog.New(h)), nil
	case BackendZerolog:
		return NewZerologLogger(out, opts.Level, opts.Console), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", opts.Backend)
	}
}
