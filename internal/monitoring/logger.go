package monitoring

import (
	"log/slog"
	"os"
	"time"
)

// Logger provides structured logging with domain-specific helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger writing to stdout.
func NewLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{Logger: slog.New(handler)}
}

// RequestLogger logs HTTP request details.
func (l *Logger) RequestLogger(method, path, ip, userAgent string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"user_agent", userAgent,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// PipelineLogger logs one scoring/aggregation run.
func (l *Logger) PipelineLogger(scope string, population, aggregated int, duration time.Duration, cacheHit bool) {
	l.Info("Cohort Aggregated",
		"scope", scope,
		"population", population,
		"aggregated", aggregated,
		"duration_ms", duration.Milliseconds(),
		"cache_hit", cacheHit,
	)
}

// AlertLogger logs mentor alert deliveries.
func (l *Logger) AlertLogger(rno, recipient string, sent bool, err error) {
	if sent {
		l.Info("Mentor Alert Sent", "rno", rno, "recipient", recipient)
		return
	}
	l.Error("Mentor Alert Failed", "rno", rno, "recipient", recipient, "error", err)
}

// CacheLogger logs cache operations.
func (l *Logger) CacheLogger(operation, key string, hit bool, itemCount int) {
	short := key
	if len(short) > 8 {
		short = short[:8] + "..."
	}
	l.Debug("Cache Operation",
		"operation", operation,
		"key_hash", short,
		"hit", hit,
		"cache_size", itemCount,
	)
}

// SystemLogger logs system-level events.
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

var startTime = time.Now()
