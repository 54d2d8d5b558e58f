// Package log holds the single process-wide logger used by every component
// of the room server, mirroring tempo's pkg/util/log: one global
// go-kit logger, initialized once from the server config, with level
// filtering applied at init time rather than on every call site.
package log

import (
	"os"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/time/rate"
)

// Logger is the process-wide structured logger. It defaults to an unfiltered
// logfmt logger to stderr so that packages can log during init(); InitLogger
// narrows it once the configured level is known.
var Logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))

// Level and Format mirror the server config fields that choose how Logger is
// constructed by InitLogger.
type Level string

type Format string

const (
	FormatLogfmt Format = "logfmt"
	FormatJSON   Format = "json"

	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// InitLogger rebuilds Logger for the given level/format, adding the standard
// timestamp and caller fields the way cmd/tempo/main.go's log.InitLogger
// does. It must be called exactly once, after config has been parsed and
// before any component starts logging in earnest.
func InitLogger(lvl Level, format Format) {
	var l log.Logger
	switch format {
	case FormatJSON:
		l = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
	default:
		l = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	}
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5))
	l = filterFor(lvl, l)
	Logger = l
}

func filterFor(lvl Level, l log.Logger) log.Logger {
	switch lvl {
	case LevelDebug:
		return level.NewFilter(l, level.AllowDebug())
	case LevelWarn:
		return level.NewFilter(l, level.AllowWarn())
	case LevelError:
		return level.NewFilter(l, level.AllowError())
	default:
		return level.NewFilter(l, level.AllowInfo())
	}
}

// With returns a logger derived from Logger with the given key/value pairs
// attached to every line, e.g. log.With(log.Logger, "room", roomID).
func With(logger log.Logger, keyvals ...interface{}) log.Logger {
	return log.With(logger, keyvals...)
}

// RateLimitedLogger bounds how often a hot path (e.g. per-record decode
// failures) can emit, silently dropping lines above the configured rate.
type RateLimitedLogger struct {
	limiter *rate.Limiter
	logger  log.Logger
}

// NewRateLimitedLogger returns a logger that forwards at most
// logsPerSecond calls to Log, dropping the rest.
func NewRateLimitedLogger(logsPerSecond int, logger log.Logger) *RateLimitedLogger {
	return &RateLimitedLogger{
		limiter: rate.NewLimiter(rate.Limit(logsPerSecond), 1),
		logger:  logger,
	}
}

func (l *RateLimitedLogger) Log(keyvals ...interface{}) error {
	if !l.limiter.AllowN(time.Now(), 1) {
		return nil
	}
	return l.logger.Log(keyvals...)
}
