// Package playback pronounces words and phrases through an ordered chain of
// strategies: synthesized speech, a cached media asset, and finally a text
// rendering. It owns the gesture gate, asset cache and diagnostics log for a
// session through [Service].
package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/wordsprout/wordsprout/internal/audio"
	"github.com/wordsprout/wordsprout/internal/speech"
)

// Request asks for one pronunciation.
type Request struct {
	Text     string
	Language speech.Language

	// FallbackAssetKey names a pre-recorded asset. Empty means none.
	FallbackAssetKey string
}

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	// Started is emitted to subscribers when a strategy begins producing output.
	Started OutcomeKind = iota
	// Completed means audio played to the end.
	Completed
	// Failed carries a Reason.
	Failed
	// DegradedToText means no audio was produced; the text should be shown.
	DegradedToText
)

// String returns the string representation of the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case Started:
		return "started"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case DegradedToText:
		return "degraded-to-text"
	default:
		return "unknown"
	}
}

// Reason explains a Failed outcome or a failed attempt.
type Reason string

const (
	ReasonNone                   Reason = ""
	ReasonGestureRequired        Reason = "GestureRequired"
	ReasonStrategyUnavailable    Reason = "StrategyUnavailable"
	ReasonSynthesisEngineError   Reason = "SynthesisEngineError"
	ReasonMediaFetchTimeout      Reason = "MediaFetchTimeout"
	ReasonMediaPlaybackError     Reason = "MediaPlaybackError"
	ReasonCancelled              Reason = "Cancelled"
	ReasonAllStrategiesExhausted Reason = "AllStrategiesExhausted"
	ReasonSoundDisabled          Reason = "SoundDisabled"
)

// StrategyKind names a way of rendering a pronunciation.
type StrategyKind string

const (
	StrategyNone   StrategyKind = ""
	StrategySpeech StrategyKind = "speech"
	StrategyMedia  StrategyKind = "media"
	StrategyText   StrategyKind = "text"
)

// Attempt records one strategy execution.
type Attempt struct {
	Strategy StrategyKind
	Duration time.Duration
	Reason   Reason
	Err      error
}

// Outcome is the result of a pronunciation.
type Outcome struct {
	Kind     OutcomeKind
	Reason   Reason       // set when Kind is Failed
	Strategy StrategyKind // strategy that produced the outcome

	// Text is the literal text of the request, for display on
	// DegradedToText and on failures.
	Text string

	// Prompt is the gesture gate's hint when Reason is GestureRequired.
	Prompt string

	// DisplayFor is how long degraded text should stay visible.
	DisplayFor time.Duration

	Attempts []Attempt
	Err      error
}

// IsTerminal reports whether the outcome ends the request.
func (o Outcome) IsTerminal() bool {
	return o.Kind != Started
}

// String returns a string representation of the outcome.
func (o Outcome) String() string {
	switch o.Kind {
	case Failed:
		return fmt.Sprintf("Failed{%s}", o.Reason)
	case DegradedToText:
		return fmt.Sprintf("DegradedToText{%q}", o.Text)
	default:
		return o.Kind.String()
	}
}

// Pronouncer is implemented by the Orchestrator and its decorators.
type Pronouncer interface {
	Pronounce(ctx context.Context, req Request) Outcome
	Stop()
}

// Player plays decoded clips; *audio.Output implements it.
type Player interface {
	Play(ctx context.Context, clip *audio.Clip) error
	Stop() error
}
