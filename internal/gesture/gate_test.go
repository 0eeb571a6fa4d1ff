package gesture

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeResumer struct {
	calls int
	err   error
	panic bool
}

func (f *fakeResumer) Resume(context.Context) error {
	f.calls++
	if f.panic {
		panic("boom")
	}
	return f.err
}

func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestInitialState(t *testing.T) {
	tests := []struct {
		name     string
		requires bool
		want     State
		canPlay  bool
	}{
		{"gesture required", true, StateLocked, false},
		{"no gesture required", false, StateUnlocked, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(Config{RequiresGesture: tt.requires}, nil)
			if g.State() != tt.want {
				t.Errorf("State() = %v, want %v", g.State(), tt.want)
			}
			if g.CanPlay() != tt.canPlay {
				t.Errorf("CanPlay() = %v, want %v", g.CanPlay(), tt.canPlay)
			}
		})
	}
}

func TestQualifyingEventUnlocks(t *testing.T) {
	r := &fakeResumer{err: errors.New("context closed")}
	g := NewGate(Config{RequiresGesture: true}, nil)
	g.AddResumer(r)

	notified := 0
	g.OnUnlock(func() { notified++ })

	if !g.Observe(Event{Kind: EventKeyDown}) {
		t.Fatal("keydown should unlock the gate")
	}
	if !g.CanPlay() {
		t.Error("gate should allow playback after unlock")
	}
	if r.calls != 1 {
		t.Errorf("resumer called %d times, want 1", r.calls)
	}
	if notified != 1 {
		t.Errorf("subscribers notified %d times, want 1", notified)
	}
	if g.Prompt() != "" {
		t.Errorf("prompt should be empty once unlocked, got %q", g.Prompt())
	}

	// Unlocked is terminal: later events do not notify again.
	g.Observe(Event{Kind: EventPointerDown, At: time.Now().Add(time.Hour)})
	if notified != 1 {
		t.Errorf("subscribers notified %d times after second event, want 1", notified)
	}
}

func TestResumePanicIsSwallowed(t *testing.T) {
	g := NewGate(Config{RequiresGesture: true}, nil)
	g.AddResumer(&fakeResumer{panic: true})
	if !g.Observe(Event{Kind: EventTouchEnd}) {
		t.Fatal("a failing resumer must not keep the gate locked")
	}
}

func TestNonQualifyingEventsEscalatePrompt(t *testing.T) {
	g := NewGate(Config{RequiresGesture: true}, nil)

	first := g.Prompt()
	if first == "" {
		t.Fatal("locked gate should have a prompt")
	}

	g.Observe(Event{Kind: EventScroll})
	second := g.Prompt()
	if second == first {
		t.Error("prompt should escalate after a non-qualifying event")
	}
	if g.CanPlay() {
		t.Error("scroll must not unlock")
	}

	for i := 0; i < 10; i++ {
		g.Observe(Event{Kind: EventMouseMove})
	}
	if got, want := g.Prompt(), prompts[len(prompts)-1]; got != want {
		t.Errorf("prompt should saturate at the last message, got %q", got)
	}
	if got := g.Snapshot().AttemptCount; got != 11 {
		t.Errorf("AttemptCount = %d, want 11", got)
	}
}

func TestDebounce(t *testing.T) {
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	now, advance := fixedClock(start)
	g := NewGate(Config{RequiresGesture: true, Debounce: 400 * time.Millisecond, Events: []EventKind{EventClick}, Now: now}, nil)

	// Reset forgets the previous click entirely.
	g.Observe(Event{Kind: EventClick})
	g.Reset()

	g.Observe(Event{Kind: EventScroll})
	if !g.Observe(Event{Kind: EventClick}) {
		t.Fatal("first click after reset should unlock")
	}
	g.Reset()

	advance(100 * time.Millisecond)
	if !g.Observe(Event{Kind: EventClick}) {
		t.Fatal("reset clears the debounce history")
	}
	g.Reset()
	g.Observe(Event{Kind: EventClick})
	g.mu.Lock()
	g.state = StateLocked
	g.mu.Unlock()

	advance(100 * time.Millisecond)
	if g.Observe(Event{Kind: EventClick}) {
		t.Error("click inside the debounce window should be ignored")
	}
	advance(400 * time.Millisecond)
	if !g.Observe(Event{Kind: EventClick}) {
		t.Error("click after the debounce window should unlock")
	}
	if got := g.Snapshot().LastInteractionAt; !got.Equal(start.Add(600 * time.Millisecond)) {
		t.Errorf("LastInteractionAt = %v", got)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	g := NewGate(Config{RequiresGesture: false}, nil)
	g.Observe(Event{Kind: EventKeyDown})

	g.Reset()
	once := g.Snapshot()
	g.Reset()
	twice := g.Snapshot()

	if once != twice {
		t.Errorf("double reset differs: %+v vs %+v", once, twice)
	}
	if twice.State != StateLocked || twice.HasInteracted || twice.AttemptCount != 0 {
		t.Errorf("reset should return to a fresh locked state, got %+v", twice)
	}
}

func TestWiden(t *testing.T) {
	g := NewGate(Config{RequiresGesture: true}, nil)
	if g.Accepts(EventTouchStart) {
		t.Fatal("touchstart is not a default event")
	}

	g.Widen([]EventKind{EventTouchStart, EventClick}, 150*time.Millisecond)
	if !g.Accepts(EventTouchStart) || !g.Accepts(EventClick) {
		t.Error("widened events should be accepted")
	}
	if g.Debounce() != 150*time.Millisecond {
		t.Errorf("Debounce() = %v, want 150ms", g.Debounce())
	}

	g.Widen(nil, time.Second)
	if g.Debounce() != 150*time.Millisecond {
		t.Error("widen must never lengthen the debounce window")
	}

	if !g.Observe(Event{Kind: EventTouchStart}) {
		t.Error("touchstart should unlock after widening")
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{StateLocked: "locked", StateUnlocking: "unlocking", StateUnlocked: "unlocked", State(9): "unknown"}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
