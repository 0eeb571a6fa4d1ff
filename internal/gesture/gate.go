// Package gesture tracks whether a qualifying user interaction has happened
// in environments that block audio until one does.
package gesture

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// State is the gate's unlock state.
type State int

const (
	// StateLocked blocks playback until a qualifying input event arrives.
	StateLocked State = iota
	// StateUnlocking is held while suspended audio contexts are resumed.
	StateUnlocking
	// StateUnlocked is terminal for the session.
	StateUnlocked
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlocking:
		return "unlocking"
	case StateUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// EventKind names an observed input event.
type EventKind string

const (
	EventPointerDown EventKind = "pointerdown"
	EventPointerUp   EventKind = "pointerup"
	EventTouchStart  EventKind = "touchstart"
	EventTouchEnd    EventKind = "touchend"
	EventKeyDown     EventKind = "keydown"
	EventClick       EventKind = "click"
	EventScroll      EventKind = "scroll"
	EventMouseMove   EventKind = "mousemove"
)

// DefaultEvents are the event kinds browsers accept as user activation.
var DefaultEvents = []EventKind{EventPointerDown, EventTouchEnd, EventKeyDown}

// DefaultDebounce collapses the burst of events one physical tap produces.
const DefaultDebounce = 400 * time.Millisecond

// Event is one observed input event.
type Event struct {
	Kind EventKind
	At   time.Time // zero means now
}

// Resumer is an audio processing context that may be suspended until a
// gesture, such as the output device context.
type Resumer interface {
	Resume(ctx context.Context) error
}

// Snapshot is a copy of the gate's state for display and tests.
type Snapshot struct {
	State             State
	HasInteracted     bool
	AttemptCount      int
	LastInteractionAt time.Time
}

// Config configures a Gate.
type Config struct {
	RequiresGesture bool
	Debounce        time.Duration
	Events          []EventKind
	ResumeTimeout   time.Duration
	Now             func() time.Time
}

// Gate enforces that real user input preceded any audio output.
type Gate struct {
	mu sync.Mutex

	requires          bool
	state             State
	hasInteracted     bool
	attemptCount      int
	lastInteractionAt time.Time
	lastQualifying    time.Time

	events        map[EventKind]bool
	debounce      time.Duration
	resumeTimeout time.Duration
	now           func() time.Time

	resumers    []Resumer
	subscribers []func()

	logger *log.Logger
}

// NewGate creates a gate. It starts locked only when cfg.RequiresGesture.
func NewGate(cfg Config, logger *log.Logger) *Gate {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if len(cfg.Events) == 0 {
		cfg.Events = DefaultEvents
	}
	if cfg.ResumeTimeout <= 0 {
		cfg.ResumeTimeout = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = log.Default().WithPrefix("gesture")
	}

	g := &Gate{
		requires:      cfg.RequiresGesture,
		events:        make(map[EventKind]bool),
		debounce:      cfg.Debounce,
		resumeTimeout: cfg.ResumeTimeout,
		now:           cfg.Now,
		logger:        logger,
	}
	for _, k := range cfg.Events {
		g.events[k] = true
	}
	if !cfg.RequiresGesture {
		g.state = StateUnlocked
	}
	return g
}

// CanPlay reports whether audio may be played.
func (g *Gate) CanPlay() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == StateUnlocked
}

// State returns the current unlock state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Snapshot returns a copy of the gate state.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		State:             g.state,
		HasInteracted:     g.hasInteracted,
		AttemptCount:      g.attemptCount,
		LastInteractionAt: g.lastInteractionAt,
	}
}

var prompts = []string{
	"Tap anywhere to turn on sound.",
	"Tap the screen once (a scroll does not count) to turn on sound.",
	"Still quiet? Tap the speaker button, then try again.",
	"Sound is blocked by this app. Check that the device is not muted, then tap the speaker button.",
}

// Prompt returns a human-readable hint that escalates with the number of
// input events that failed to unlock the gate. It is empty once unlocked.
func (g *Gate) Prompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateUnlocked {
		return ""
	}
	return prompts[min(g.attemptCount, len(prompts)-1)]
}

// AddResumer registers an audio context to resume on the unlocking gesture.
func (g *Gate) AddResumer(r Resumer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resumers = append(g.resumers, r)
}

// OnUnlock registers a callback fired once when the gate becomes unlocked.
func (g *Gate) OnUnlock(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscribers = append(g.subscribers, fn)
}

// Widen adds accepted event kinds and, when shorter, replaces the debounce
// window.
func (g *Gate) Widen(kinds []EventKind, debounce time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, k := range kinds {
		g.events[k] = true
	}
	if debounce > 0 && debounce < g.debounce {
		g.debounce = debounce
	}
}

// Accepts reports whether kind is a qualifying event.
func (g *Gate) Accepts(kind EventKind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.events[kind]
}

// Debounce returns the current debounce window.
func (g *Gate) Debounce() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.debounce
}

// Observe feeds an input event to the gate. It returns true when this event
// unlocked the gate.
func (g *Gate) Observe(ev Event) bool {
	at := ev.At
	if at.IsZero() {
		at = g.now()
	}

	g.mu.Lock()
	if !g.events[ev.Kind] {
		if g.state == StateLocked {
			g.attemptCount++
		}
		g.mu.Unlock()
		return false
	}

	if !g.lastQualifying.IsZero() && at.Sub(g.lastQualifying) < g.debounce {
		g.mu.Unlock()
		return false
	}
	g.lastQualifying = at
	g.lastInteractionAt = at
	g.hasInteracted = true

	if g.state != StateLocked {
		g.mu.Unlock()
		return false
	}

	g.state = StateUnlocking
	resumers := slices.Clone(g.resumers)
	g.mu.Unlock()

	g.resumeAll(resumers)

	g.mu.Lock()
	if g.state != StateUnlocking {
		// Reset raced with the resume.
		g.mu.Unlock()
		return false
	}
	g.state = StateUnlocked
	subscribers := slices.Clone(g.subscribers)
	g.mu.Unlock()

	g.logger.Debug("Gesture gate unlocked", "event", ev.Kind)
	for _, fn := range subscribers {
		fn()
	}
	return true
}

// resumeAll wakes suspended audio contexts. Failures are logged and ignored.
func (g *Gate) resumeAll(resumers []Resumer) {
	for _, r := range resumers {
		ctx, cancel := context.WithTimeout(context.Background(), g.resumeTimeout)
		err := safeResume(ctx, r)
		cancel()
		if err != nil {
			g.logger.Debug("Audio context resume failed", "error", err)
		}
	}
}

func safeResume(ctx context.Context, r Resumer) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &resumePanic{value: rec}
		}
	}()
	return r.Resume(ctx)
}

type resumePanic struct{ value any }

func (p *resumePanic) Error() string { return "resume panicked" }

// Reset returns the gate to Locked and clears the interaction history.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = StateLocked
	g.hasInteracted = false
	g.attemptCount = 0
	g.lastInteractionAt = time.Time{}
	g.lastQualifying = time.Time{}
}
