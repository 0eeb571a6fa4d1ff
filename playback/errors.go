package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wordsprout/wordsprout/internal/cache"
	"github.com/wordsprout/wordsprout/internal/speech"
)

// Common errors for the playback layer.
var (
	ErrGestureRequired     = errors.New("audio blocked until a user gesture")
	ErrStrategyUnavailable = errors.New("playback strategy unavailable")
	ErrSynthesisFailed     = errors.New("speech synthesis failed")
	ErrMediaFetchTimeout   = errors.New("media fetch timed out")
	ErrMediaPlayback       = errors.New("media playback failed")
	ErrCancelled           = errors.New("playback cancelled")
	ErrExhausted           = errors.New("all playback strategies exhausted")
	ErrSoundDisabled       = errors.New("sound is disabled")
	ErrNoText              = errors.New("nothing to pronounce")
)

// reasonErrors maps sentinel errors to their reason.
var reasonErrors = []struct {
	err    error
	reason Reason
}{
	{ErrCancelled, ReasonCancelled},
	{ErrGestureRequired, ReasonGestureRequired},
	{ErrSoundDisabled, ReasonSoundDisabled},
	{ErrExhausted, ReasonAllStrategiesExhausted},
	{ErrMediaFetchTimeout, ReasonMediaFetchTimeout},
	{cache.ErrFetchTimeout, ReasonMediaFetchTimeout},
	{ErrStrategyUnavailable, ReasonStrategyUnavailable},
	{speech.ErrEngineNotFound, ReasonStrategyUnavailable},
	{ErrSynthesisFailed, ReasonSynthesisEngineError},
	{ErrMediaPlayback, ReasonMediaPlaybackError},
}

// ReasonOf returns the reason for err. Errors from a *PlaybackError use
// its strategy to pick between synthesis and media failures.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	for _, re := range reasonErrors {
		if errors.Is(err, re.err) {
			return re.reason
		}
	}

	var pe *PlaybackError
	if errors.As(err, &pe) {
		timedOut := errors.Is(err, context.DeadlineExceeded)
		switch pe.Strategy {
		case StrategySpeech:
			return ReasonSynthesisEngineError
		case StrategyMedia:
			if timedOut {
				return ReasonMediaFetchTimeout
			}
			return ReasonMediaPlaybackError
		}
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCancelled
	}
	return ReasonMediaPlaybackError
}

// IsRecoverable reports whether a failed attempt may fall back to the next
// strategy.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	switch ReasonOf(err) {
	case ReasonCancelled, ReasonGestureRequired, ReasonSoundDisabled:
		return false
	}
	return true
}

// ErrorSeverity represents the severity of an error.
type ErrorSeverity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo ErrorSeverity = iota
	// SeverityWarning is for failures that were recovered by a fallback.
	SeverityWarning
	// SeverityError is for failures that lose an attempt.
	SeverityError
)

// String returns the string representation of the severity.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	default:
		return "error"
	}
}

// PlaybackError provides detailed error information for a failed attempt.
type PlaybackError struct {
	Err       error          // The underlying error
	Strategy  StrategyKind   // Strategy that failed
	Action    string         // Action being performed when the error occurred
	Severity  ErrorSeverity  // Severity of the error
	Timestamp time.Time      // When the error occurred
	Context   map[string]any // Additional context
}

// Error implements the error interface.
func (e *PlaybackError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: unknown playback error", e.Strategy)
	}
	if e.Action == "" {
		return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Strategy, e.Action, e.Err)
}

// Unwrap returns the underlying error.
func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// Reason returns the failure reason.
func (e *PlaybackError) Reason() Reason {
	return ReasonOf(e)
}

// NewPlaybackError creates a playback error with context.
func NewPlaybackError(err error, strategy StrategyKind, action string) *PlaybackError {
	return &PlaybackError{
		Err:       err,
		Strategy:  strategy,
		Action:    action,
		Severity:  SeverityError,
		Timestamp: time.Now(),
		Context:   make(map[string]any),
	}
}

// WithSeverity sets the error severity.
func (e *PlaybackError) WithSeverity(severity ErrorSeverity) *PlaybackError {
	e.Severity = severity
	return e
}

// WithContext adds context to the error.
func (e *PlaybackError) WithContext(key string, value any) *PlaybackError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
