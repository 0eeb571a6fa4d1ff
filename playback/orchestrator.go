package playback

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wordsprout/wordsprout/internal/cache"
	"github.com/wordsprout/wordsprout/internal/capability"
	"github.com/wordsprout/wordsprout/internal/diagnostics"
	"github.com/wordsprout/wordsprout/internal/gesture"
	"github.com/wordsprout/wordsprout/internal/observe"
	"github.com/wordsprout/wordsprout/internal/speech"
)

const (
	// DefaultAttemptTimeout bounds one speech or media attempt.
	DefaultAttemptTimeout = 15 * time.Second

	// DefaultTextDisplay is how long degraded text stays visible.
	DefaultTextDisplay = 2 * time.Second

	// handoffTimeout bounds how long a new request waits for the one it
	// cancelled to wind down.
	handoffTimeout = 500 * time.Millisecond
)

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	Profile capability.Profile
	Gate    *gesture.Gate

	Engine speech.Engine // nil disables the speech strategy
	Player Player        // nil disables speech and media
	Assets *cache.AssetCache
	Fetch  cache.Fetcher // nil disables the media strategy

	Diagnostics *diagnostics.Log
	Metrics     *observe.Metrics
	Logger      *log.Logger

	AttemptTimeout time.Duration
	TextDisplay    time.Duration
}

type activeRequest struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// Orchestrator runs one pronunciation at a time through the ordered
// strategy list. A new request cancels the one in flight.
type Orchestrator struct {
	profile    capability.Profile
	gate       *gesture.Gate
	player     Player
	strategies []strategy
	diag       *diagnostics.Log
	metrics    *observe.Metrics
	logger     *log.Logger

	attemptTimeout time.Duration
	textDisplay    time.Duration

	soundEnabled atomic.Bool

	mu          sync.Mutex
	active      *activeRequest
	machine     *StateMachine
	displayed   string
	displayGen  uint64
	subscribers []func(Outcome)
}

// NewOrchestrator creates an orchestrator with sound enabled.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Gate == nil {
		cfg.Gate = gesture.NewGate(gesture.Config{RequiresGesture: cfg.Profile.RequiresGesture}, nil)
	}
	if cfg.Diagnostics == nil {
		cfg.Diagnostics = diagnostics.New(diagnostics.DefaultCapacity)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.Noop()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default().WithPrefix("playback")
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.TextDisplay <= 0 {
		cfg.TextDisplay = DefaultTextDisplay
	}

	o := &Orchestrator{
		profile: cfg.Profile,
		gate:    cfg.Gate,
		player:  cfg.Player,
		strategies: []strategy{
			&speechStrategy{engine: cfg.Engine, player: cfg.Player, profile: cfg.Profile},
			&mediaStrategy{assets: cfg.Assets, fetch: cfg.Fetch, player: cfg.Player, profile: cfg.Profile},
			&textStrategy{},
		},
		diag:           cfg.Diagnostics,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		attemptTimeout: cfg.AttemptTimeout,
		textDisplay:    cfg.TextDisplay,
		machine:        NewStateMachine(),
	}
	o.soundEnabled.Store(true)
	return o
}

// SetSoundEnabled toggles the sound setting checked before every request.
func (o *Orchestrator) SetSoundEnabled(enabled bool) {
	if o.soundEnabled.Swap(enabled) != enabled {
		o.logger.Debug("Sound setting changed", "enabled", enabled)
		if !enabled {
			o.Stop()
		}
	}
}

// SoundEnabled reports the sound setting.
func (o *Orchestrator) SoundEnabled() bool {
	return o.soundEnabled.Load()
}

// Subscribe registers fn for every outcome, including Started.
func (o *Orchestrator) Subscribe(fn func(Outcome)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subscribers = append(o.subscribers, fn)
}

// State returns the state of the current or most recent request.
func (o *Orchestrator) State() StateType {
	o.mu.Lock()
	sm := o.machine
	o.mu.Unlock()
	return sm.Current()
}

// Displayed returns the degraded text currently on display, if any.
func (o *Orchestrator) Displayed() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.displayed
}

// Plan returns the strategies that would be tried for req, in order.
func (o *Orchestrator) Plan(req Request) []StrategyKind {
	var kinds []StrategyKind
	for _, s := range o.plan(req) {
		kinds = append(kinds, s.Kind())
	}
	return kinds
}

func (o *Orchestrator) plan(req Request) []strategy {
	var out []strategy
	for _, s := range o.strategies {
		if s.Available(req) {
			out = append(out, s)
		}
	}
	return out
}

// Stop cancels the request in flight, if any, and clears degraded text.
// It is safe to call at any time and any number of times.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	ar := o.active
	o.clearDisplayLocked()
	o.mu.Unlock()

	if ar == nil {
		return
	}
	ar.cancel(ErrCancelled)
	if o.player != nil {
		if err := o.player.Stop(); err != nil {
			o.logger.Debug("Player stop failed", "error", err)
		}
	}
}

// Pronounce renders req and returns its terminal outcome. It never panics.
func (o *Orchestrator) Pronounce(ctx context.Context, req Request) (out Outcome) {
	reqCtx, ar := o.begin(ctx)
	defer o.end(ar)

	sm := o.newMachine()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Recovered from panic in playback", "panic", r)
			sm.Transition(StateFailed)
			out = o.finish(req, Outcome{
				Kind:   Failed,
				Reason: ReasonAllStrategiesExhausted,
				Err:    fmt.Errorf("%w: panic: %v", ErrExhausted, r),
			})
		}
	}()

	if reqCtx.Err() != nil {
		return o.cancelled(sm, req, StrategyNone, nil)
	}

	if !o.soundEnabled.Load() {
		sm.Transition(StateFailed)
		return o.finish(req, Outcome{Kind: Failed, Reason: ReasonSoundDisabled, Err: ErrSoundDisabled})
	}

	sm.Transition(StateCheckingGesture)
	o.diag.Info("Pronunciation requested",
		"text", req.Text, "language", string(languageOf(req)), "asset", req.FallbackAssetKey)

	if !o.gate.CanPlay() {
		prompt := o.gate.Prompt()
		o.diag.Warn("Playback blocked until user gesture", "text", req.Text, "prompt", prompt)
		sm.Transition(StateFailed)
		return o.finish(req, Outcome{Kind: Failed, Reason: ReasonGestureRequired, Prompt: prompt, Err: ErrGestureRequired})
	}

	sm.Transition(StateSelectingStrategy)
	plan := o.plan(req)
	if len(plan) == 0 {
		o.diag.Error("No playback strategy available", "text", req.Text)
		sm.Transition(StateFailed)
		return o.finish(req, Outcome{
			Kind:   Failed,
			Reason: ReasonAllStrategiesExhausted,
			Err:    fmt.Errorf("%w: %w", ErrExhausted, ErrStrategyUnavailable),
		})
	}

	var attempts []Attempt
	var errs []error
	for i, s := range plan {
		if reqCtx.Err() != nil {
			return o.cancelled(sm, req, s.Kind(), attempts)
		}
		if i > 0 {
			sm.Transition(StateSelectingStrategy)
			o.diag.Warn("Falling back to next strategy",
				"from", string(plan[i-1].Kind()), "to", string(s.Kind()), "text", req.Text)
		}
		sm.Transition(StateExecuting)
		o.diag.Info("Playback attempt started", "strategy", string(s.Kind()), "text", req.Text)

		kind, att := o.runAttempt(reqCtx, s, req)
		attempts = append(attempts, att)

		if att.Err == nil {
			return o.succeed(sm, req, s.Kind(), kind, attempts)
		}

		if reqCtx.Err() != nil {
			return o.cancelled(sm, req, s.Kind(), attempts)
		}

		o.diag.Error(failureMessage(att.Reason),
			"strategy", string(s.Kind()), "reason", string(att.Reason),
			"error", att.Err.Error(), "text", req.Text, "duration_ms", att.Duration.Milliseconds())
		errs = append(errs, att.Err)

		if !IsRecoverable(att.Err) {
			sm.Transition(StateFailed)
			return o.finish(req, Outcome{
				Kind: Failed, Reason: att.Reason, Strategy: s.Kind(),
				Attempts: attempts, Err: att.Err,
			})
		}
	}

	o.diag.Error("All playback strategies exhausted", "text", req.Text, "attempts", len(attempts))
	sm.Transition(StateFailed)
	return o.finish(req, Outcome{
		Kind:     Failed,
		Reason:   ReasonAllStrategiesExhausted,
		Strategy: plan[len(plan)-1].Kind(),
		Attempts: attempts,
		Err:      fmt.Errorf("%w: %w", ErrExhausted, errors.Join(errs...)),
	})
}

func (o *Orchestrator) cancelled(sm *StateMachine, req Request, s StrategyKind, attempts []Attempt) Outcome {
	o.diag.Info("Playback cancelled", "strategy", string(s), "text", req.Text)
	sm.Transition(StateFailed)
	return o.finish(req, Outcome{
		Kind: Failed, Reason: ReasonCancelled, Strategy: s,
		Attempts: attempts, Err: ErrCancelled,
	})
}

func (o *Orchestrator) succeed(sm *StateMachine, req Request, s StrategyKind, kind OutcomeKind, attempts []Attempt) Outcome {
	out := Outcome{Kind: kind, Strategy: s, Attempts: attempts}
	switch kind {
	case DegradedToText:
		sm.Transition(StateDegradedToText)
		out.DisplayFor = o.textDisplay
		o.showText(req.Text)
		o.diag.Warn("Degraded to text display", "text", req.Text, "attempts", len(attempts))
	default:
		sm.Transition(StateCompleted)
		o.diag.Info("Playback completed", "strategy", string(s), "text", req.Text)
	}
	return o.finish(req, out)
}

// runAttempt executes one strategy under the attempt ceiling.
func (o *Orchestrator) runAttempt(ctx context.Context, s strategy, req Request) (kind OutcomeKind, att Attempt) {
	att.Strategy = s.Kind()
	start := time.Now()

	actx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	started := func() {
		o.emit(Outcome{Kind: Started, Strategy: s.Kind(), Text: req.Text})
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = NewPlaybackError(fmt.Errorf("strategy panicked: %v", r), s.Kind(), "execute")
			}
		}()
		kind, err = s.Execute(actx, req, started)
		return err
	}()

	if err != nil {
		var pe *PlaybackError
		if !errors.As(err, &pe) {
			err = NewPlaybackError(err, s.Kind(), "execute")
		}
		if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			o.logger.Warn("Playback attempt timed out", "strategy", s.Kind(), "timeout", o.attemptTimeout)
		}
	}

	att.Duration = time.Since(start)
	att.Err = err
	att.Reason = ReasonOf(err)
	o.metrics.RecordAttempt(context.Background(), string(s.Kind()), att.Duration, err)
	return kind, att
}

func failureMessage(r Reason) string {
	switch r {
	case ReasonSynthesisEngineError:
		return "Speech synthesis failed"
	case ReasonMediaFetchTimeout:
		return "Media asset fetch timeout"
	case ReasonStrategyUnavailable:
		return "Playback strategy unavailable"
	default:
		return "Media playback failed"
	}
}

// finish fills in the request fields, records the outcome and notifies
// subscribers.
func (o *Orchestrator) finish(req Request, out Outcome) Outcome {
	out.Text = req.Text
	o.metrics.RecordOutcome(context.Background(), string(out.Strategy), out.Kind.String(), string(out.Reason))
	o.logger.Debug("Pronunciation finished", "text", req.Text, "outcome", out)
	o.emit(out)
	return out
}

func (o *Orchestrator) emit(out Outcome) {
	o.mu.Lock()
	subs := slices.Clone(o.subscribers)
	o.mu.Unlock()
	for _, fn := range subs {
		fn(out)
	}
}

func (o *Orchestrator) newMachine() *StateMachine {
	sm := NewStateMachine()
	for _, st := range []StateType{
		StateCheckingGesture, StateSelectingStrategy, StateExecuting,
		StateCompleted, StateFailed, StateDegradedToText,
	} {
		sm.OnEnter(st, func(from StateType) {
			o.logger.Debug("State transition", "from", from, "to", st)
		})
	}

	o.mu.Lock()
	o.machine = sm
	o.mu.Unlock()
	return sm
}

// begin makes a new request the active one, cancelling its predecessor.
func (o *Orchestrator) begin(parent context.Context) (context.Context, *activeRequest) {
	ctx, cancel := context.WithCancelCause(parent)
	ar := &activeRequest{cancel: cancel, done: make(chan struct{})}

	o.mu.Lock()
	prev := o.active
	o.active = ar
	o.clearDisplayLocked()
	o.mu.Unlock()

	if prev != nil {
		prev.cancel(ErrCancelled)
		if o.player != nil {
			_ = o.player.Stop()
		}
		select {
		case <-prev.done:
		case <-time.After(handoffTimeout):
			o.logger.Warn("Previous request did not stop in time")
		}
	}
	return ctx, ar
}

func (o *Orchestrator) end(ar *activeRequest) {
	o.mu.Lock()
	if o.active == ar {
		o.active = nil
	}
	o.mu.Unlock()
	ar.cancel(nil)
	close(ar.done)
}

func (o *Orchestrator) showText(text string) {
	o.mu.Lock()
	o.displayGen++
	gen := o.displayGen
	o.displayed = text
	o.mu.Unlock()

	time.AfterFunc(o.textDisplay, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.displayGen == gen {
			o.displayed = ""
		}
	})
}

func (o *Orchestrator) clearDisplayLocked() {
	o.displayGen++
	o.displayed = ""
}
