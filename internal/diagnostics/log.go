// Package diagnostics keeps a bounded, structured record of playback
// attempts and failures for offline reporting.
package diagnostics

import (
	"maps"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Level is the severity of a record.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// DefaultCapacity is the number of records kept before the oldest is dropped.
const DefaultCapacity = 1000

// Record is one log entry.
type Record struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
}

// Stats summarises the records currently held.
type Stats struct {
	Total        int     `json:"total"`
	ErrorCount   int     `json:"errorCount"`
	WarningCount int     `json:"warningCount"`
	InfoCount    int     `json:"infoCount"`
	ErrorRate    float64 `json:"errorRate"`
}

// Log is a fixed-capacity ring buffer of records. Every record is also
// written to the process logger.
type Log struct {
	mu       sync.RWMutex
	buf      []Record
	start    int // index of the oldest record
	count    int
	capacity int

	now    func() time.Time
	logger *log.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithLogger sets the logger records are mirrored to.
func WithLogger(logger *log.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// New creates a log holding at most capacity records.
func New(capacity int, opts ...Option) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Log{
		buf:      make([]Record, capacity),
		capacity: capacity,
		now:      time.Now,
		logger:   log.Default().WithPrefix("diagnostics"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log appends a record, dropping the oldest one when full.
func (l *Log) Log(level Level, message string, ctx map[string]any) Record {
	rec := Record{
		ID:        uuid.NewString(),
		Timestamp: l.now(),
		Level:     level,
		Message:   message,
		Context:   maps.Clone(ctx),
	}

	l.mu.Lock()
	l.appendLocked(rec)
	l.mu.Unlock()

	l.mirror(rec)
	return rec
}

// Info logs at info level. kv are alternating keys and values.
func (l *Log) Info(message string, kv ...any) { l.Log(LevelInfo, message, pairs(kv)) }

// Warn logs at warning level.
func (l *Log) Warn(message string, kv ...any) { l.Log(LevelWarning, message, pairs(kv)) }

// Error logs at error level.
func (l *Log) Error(message string, kv ...any) { l.Log(LevelError, message, pairs(kv)) }

func pairs(kv []any) map[string]any {
	if len(kv) == 0 {
		return nil
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			m[k] = kv[i+1]
		}
	}
	return m
}

func (l *Log) appendLocked(rec Record) {
	if l.count < l.capacity {
		l.buf[(l.start+l.count)%l.capacity] = rec
		l.count++
		return
	}
	l.buf[l.start] = rec
	l.start = (l.start + 1) % l.capacity
}

func (l *Log) mirror(rec Record) {
	kv := make([]any, 0, len(rec.Context)*2)
	for k, v := range rec.Context {
		kv = append(kv, k, v)
	}
	switch rec.Level {
	case LevelError:
		l.logger.Error(rec.Message, kv...)
	case LevelWarning:
		l.logger.Warn(rec.Message, kv...)
	default:
		l.logger.Debug(rec.Message, kv...)
	}
}

// Records returns all records, oldest first.
func (l *Log) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

func (l *Log) snapshotLocked() []Record {
	out := make([]Record, l.count)
	for i := 0; i < l.count; i++ {
		out[i] = l.buf[(l.start+i)%l.capacity]
	}
	return out
}

// Len returns the number of records held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// Capacity returns the maximum number of records held.
func (l *Log) Capacity() int { return l.capacity }

// Stats computes counters over the records currently held.
func (l *Log) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return computeStats(l.snapshotLocked())
}

func computeStats(records []Record) Stats {
	s := Stats{Total: len(records)}
	for _, r := range records {
		switch r.Level {
		case LevelError:
			s.ErrorCount++
		case LevelWarning:
			s.WarningCount++
		default:
			s.InfoCount++
		}
	}
	if s.Total > 0 {
		s.ErrorRate = float64(s.ErrorCount) / float64(s.Total)
	}
	return s
}

// RecentErrors returns up to n error records, newest first.
func (l *Log) RecentErrors(n int) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Record
	for i := l.count - 1; i >= 0 && len(out) < n; i-- {
		if r := l.buf[(l.start+i)%l.capacity]; r.Level == LevelError {
			out = append(out, r)
		}
	}
	return out
}

// Clear drops every record.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reset()
}

func (l *Log) reset() {
	clear(l.buf)
	l.start, l.count = 0, 0
}
