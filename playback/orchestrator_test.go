package playback

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wordsprout/wordsprout/internal/audio"
	"github.com/wordsprout/wordsprout/internal/cache"
	"github.com/wordsprout/wordsprout/internal/capability"
	"github.com/wordsprout/wordsprout/internal/diagnostics"
	"github.com/wordsprout/wordsprout/internal/gesture"
	"github.com/wordsprout/wordsprout/internal/speech"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

type harness struct {
	orch    *Orchestrator
	engine  *speech.MockEngine
	out     *audio.MockOutput
	assets  *cache.AssetCache
	diag    *diagnostics.Log
	gate    *gesture.Gate
	fetches atomic.Int32
}

func (h *harness) toneFetch(_ context.Context, key string) (cache.Handle, error) {
	h.fetches.Add(1)
	return audio.Tone(key, audio.Note{Frequency: 440, Duration: 20 * time.Millisecond, Gain: 0.2})
}

func (h *harness) hangingFetch(ctx context.Context, _ string) (cache.Handle, error) {
	h.fetches.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (h *harness) failingFetch(context.Context, string) (cache.Handle, error) {
	h.fetches.Add(1)
	return nil, errors.New("http 503")
}

type fetchKind int

const (
	fetchOK fetchKind = iota
	fetchHang
	fetchFail
)

func newHarness(t *testing.T, profile capability.Profile, fk fetchKind, tweak func(*OrchestratorConfig)) *harness {
	t.Helper()
	h := &harness{
		engine: speech.NewMockEngine(),
		out:    audio.NewMockOutput(audio.MockCallbacks{}),
		diag:   diagnostics.New(100, diagnostics.WithLogger(quietLogger())),
		gate:   gesture.NewGate(gesture.Config{RequiresGesture: profile.RequiresGesture}, quietLogger()),
	}
	h.assets = cache.NewAssetCache(cache.Config{
		MaxEntries:   10,
		MaxBytes:     16 << 20,
		FetchTimeout: 50 * time.Millisecond,
	}, quietLogger())

	fetch := h.toneFetch
	switch fk {
	case fetchHang:
		fetch = h.hangingFetch
	case fetchFail:
		fetch = h.failingFetch
	}

	cfg := OrchestratorConfig{
		Profile:     profile,
		Gate:        h.gate,
		Engine:      h.engine,
		Player:      h.out,
		Assets:      h.assets,
		Fetch:       fetch,
		Diagnostics: h.diag,
		Logger:      quietLogger(),
		TextDisplay: 100 * time.Millisecond,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	h.orch = NewOrchestrator(cfg)
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func strategies(attempts []Attempt) []StrategyKind {
	var out []StrategyKind
	for _, a := range attempts {
		out = append(out, a.Strategy)
	}
	return out
}

func TestPlanOrder(t *testing.T) {
	tests := []struct {
		name    string
		profile capability.Profile
		req     Request
		want    []StrategyKind
	}{
		{
			name:    "speech first",
			profile: capability.Profile{HasSpeechSynth: true, HasMediaPlayback: true},
			req:     Request{Text: "dog", FallbackAssetKey: "dog.mp3"},
			want:    []StrategyKind{StrategySpeech, StrategyMedia, StrategyText},
		},
		{
			name:    "media first without speech",
			profile: capability.Profile{HasMediaPlayback: true},
			req:     Request{Text: "dog", FallbackAssetKey: "dog.mp3"},
			want:    []StrategyKind{StrategyMedia, StrategyText},
		},
		{
			name:    "no asset key",
			profile: capability.Profile{HasMediaPlayback: true},
			req:     Request{Text: "dog"},
			want:    []StrategyKind{StrategyText},
		},
		{
			name:    "nothing available",
			profile: capability.Profile{},
			req:     Request{},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.profile, fetchOK, nil)
			got := h.orch.Plan(tt.req)
			if len(got) != len(tt.want) {
				t.Fatalf("Plan() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Plan()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMediaFirstWithoutSpeech(t *testing.T) {
	h := newHarness(t, capability.Profile{HasMediaPlayback: true}, fetchOK, nil)

	out := h.orch.Pronounce(context.Background(), Request{Text: "dog", FallbackAssetKey: "dog.mp3"})

	if out.Kind != Completed || out.Strategy != StrategyMedia {
		t.Fatalf("outcome = %v via %s, want Completed via media", out, out.Strategy)
	}
	if got := strategies(out.Attempts); len(got) != 1 || got[0] != StrategyMedia {
		t.Errorf("attempts = %v, want [media]", got)
	}
	if played := h.out.Played(); len(played) != 1 || played[0] != "dog.mp3" {
		t.Errorf("played = %v", played)
	}
	if !h.assets.Contains("dog.mp3") {
		t.Error("asset should stay cached after playback")
	}

	// A second request is served from the cache.
	h.orch.Pronounce(context.Background(), Request{Text: "dog", FallbackAssetKey: "dog.mp3"})
	if h.fetches.Load() != 1 {
		t.Errorf("fetches = %d, want 1", h.fetches.Load())
	}
	if st := h.assets.Stats(); st.Hits != 1 || st.Misses != 1 {
		t.Errorf("cache stats = %+v, want 1 hit 1 miss", st)
	}
}

func TestGestureRequired(t *testing.T) {
	profile := capability.Profile{HasSpeechSynth: true, HasMediaPlayback: true, RequiresGesture: true}
	h := newHarness(t, profile, fetchOK, nil)
	req := Request{Text: "apple", FallbackAssetKey: "apple.mp3"}

	out := h.orch.Pronounce(context.Background(), req)
	if out.Kind != Failed || out.Reason != ReasonGestureRequired {
		t.Fatalf("outcome = %v, want Failed{GestureRequired}", out)
	}
	if out.Prompt == "" {
		t.Error("gesture failure should carry the gate prompt")
	}
	if st := h.assets.Stats(); st.Hits+st.Misses != 0 || h.fetches.Load() != 0 {
		t.Errorf("cache was touched: %+v", st)
	}
	if len(h.engine.Utterances()) != 0 {
		t.Error("speech engine should not be called while locked")
	}

	if !h.gate.Observe(gesture.Event{Kind: gesture.EventKeyDown}) {
		t.Fatal("key press should unlock the gate")
	}

	out = h.orch.Pronounce(context.Background(), req)
	if out.Kind != Completed || out.Strategy != StrategySpeech {
		t.Fatalf("outcome = %v via %s, want Completed via speech", out, out.Strategy)
	}
	if h.orch.State() != StateCompleted {
		t.Errorf("state = %s, want completed", h.orch.State())
	}
}

func TestFetchTimeoutDegradesToText(t *testing.T) {
	h := newHarness(t, capability.Profile{HasMediaPlayback: true}, fetchHang, nil)

	out := h.orch.Pronounce(context.Background(), Request{Text: "cat", FallbackAssetKey: "cat"})

	if out.Kind != DegradedToText || out.Text != "cat" {
		t.Fatalf("outcome = %v, want DegradedToText{\"cat\"}", out)
	}
	if out.DisplayFor != 100*time.Millisecond {
		t.Errorf("DisplayFor = %v", out.DisplayFor)
	}
	if len(out.Attempts) != 2 || out.Attempts[0].Reason != ReasonMediaFetchTimeout {
		t.Errorf("attempts = %+v, want media timeout then text", out.Attempts)
	}
	if h.assets.Contains("cat") {
		t.Error("timed out fetch must not be cached")
	}

	if h.orch.Displayed() != "cat" {
		t.Errorf("Displayed() = %q, want cat", h.orch.Displayed())
	}
	waitFor(t, "text display to clear", func() bool { return h.orch.Displayed() == "" })

	p := h.diag.AnalyzePatterns()
	if p.ByCategory[diagnostics.CategoryTimeout] == 0 {
		t.Errorf("timeout not recorded in diagnostics: %+v", p.ByCategory)
	}
}

func TestSpeechFailureFallsBackToMedia(t *testing.T) {
	profile := capability.Profile{HasSpeechSynth: true, HasMediaPlayback: true}
	h := newHarness(t, profile, fetchOK, nil)
	h.engine.SetError(errors.New("voice not installed"))

	out := h.orch.Pronounce(context.Background(), Request{Text: "sun", FallbackAssetKey: "sun.mp3"})

	if out.Kind != Completed || out.Strategy != StrategyMedia {
		t.Fatalf("outcome = %v via %s, want Completed via media", out, out.Strategy)
	}
	if out.Attempts[0].Reason != ReasonSynthesisEngineError {
		t.Errorf("first attempt reason = %s", out.Attempts[0].Reason)
	}

	st := h.diag.Stats()
	if st.ErrorCount != 1 {
		t.Errorf("error records = %d, want 1", st.ErrorCount)
	}
	if h.diag.AnalyzePatterns().ByCategory[diagnostics.CategorySpeechSynthesis] != 1 {
		t.Error("speech failure not classified as speech-synthesis")
	}
}

func TestAllStrategiesExhausted(t *testing.T) {
	t.Run("every strategy fails", func(t *testing.T) {
		h := newHarness(t, capability.Profile{HasMediaPlayback: true}, fetchFail, nil)
		out := h.orch.Pronounce(context.Background(), Request{FallbackAssetKey: "moon.mp3"})
		if out.Kind != Failed || out.Reason != ReasonAllStrategiesExhausted {
			t.Fatalf("outcome = %v, want Failed{AllStrategiesExhausted}", out)
		}
		if !errors.Is(out.Err, ErrExhausted) {
			t.Errorf("error = %v, want ErrExhausted", out.Err)
		}
		if len(out.Attempts) != 1 {
			t.Errorf("attempts = %d, want 1", len(out.Attempts))
		}
	})

	t.Run("nothing available", func(t *testing.T) {
		h := newHarness(t, capability.Profile{}, fetchOK, nil)
		out := h.orch.Pronounce(context.Background(), Request{})
		if out.Reason != ReasonAllStrategiesExhausted || !errors.Is(out.Err, ErrStrategyUnavailable) {
			t.Errorf("outcome = %v (%v)", out, out.Err)
		}
	})
}

func TestAttemptTimeout(t *testing.T) {
	h := newHarness(t, capability.Profile{HasSpeechSynth: true}, fetchOK, func(c *OrchestratorConfig) {
		c.AttemptTimeout = 50 * time.Millisecond
	})
	h.engine.SetHang(true)

	start := time.Now()
	out := h.orch.Pronounce(context.Background(), Request{Text: "tree"})

	if out.Kind != DegradedToText {
		t.Fatalf("outcome = %v, want DegradedToText", out)
	}
	if out.Attempts[0].Reason != ReasonSynthesisEngineError {
		t.Errorf("reason = %s, want SynthesisEngineError", out.Attempts[0].Reason)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("hung engine stalled the request for %v", elapsed)
	}
}

func TestStop(t *testing.T) {
	h := newHarness(t, capability.Profile{HasSpeechSynth: true}, fetchOK, nil)
	h.engine.SetHang(true)

	// Stop with nothing in flight is a no-op.
	h.orch.Stop()

	done := make(chan Outcome, 1)
	go func() { done <- h.orch.Pronounce(context.Background(), Request{Text: "fish"}) }()
	waitFor(t, "synthesis to start", func() bool { return len(h.engine.Utterances()) == 1 })

	h.orch.Stop()
	h.orch.Stop()

	select {
	case out := <-done:
		if out.Kind != Failed || out.Reason != ReasonCancelled {
			t.Fatalf("outcome = %v, want Failed{Cancelled}", out)
		}
		if len(out.Attempts) != 1 {
			t.Errorf("attempts = %v, cancelled requests must not fall back", strategies(out.Attempts))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not end the request")
	}
	h.orch.Stop()
}

func TestCancelledRequestIsNotDegraded(t *testing.T) {
	h := newHarness(t, capability.Profile{}, fetchOK, nil)

	var started int
	h.orch.Subscribe(func(o Outcome) {
		if o.Kind == Started {
			started++
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := h.orch.Pronounce(ctx, Request{Text: "dog"})
	if out.Kind != Failed || out.Reason != ReasonCancelled {
		t.Fatalf("outcome = %v, want Failed{Cancelled}", out)
	}
	if out.Text != "dog" {
		t.Errorf("text = %q, want dog", out.Text)
	}
	if got := h.orch.Displayed(); got != "" {
		t.Errorf("displayed = %q, a cancelled request must not show text", got)
	}
	if started != 0 {
		t.Errorf("started %d strategies after cancellation", started)
	}
	if h.orch.State() != StateFailed {
		t.Errorf("state = %s, want failed", h.orch.State())
	}
}

func TestNewRequestCancelsPrevious(t *testing.T) {
	h := newHarness(t, capability.Profile{HasSpeechSynth: true}, fetchOK, nil)
	h.engine.SetHang(true)

	first := make(chan Outcome, 1)
	go func() { first <- h.orch.Pronounce(context.Background(), Request{Text: "one"}) }()
	waitFor(t, "first request to start", func() bool { return len(h.engine.Utterances()) == 1 })

	h.engine.SetHang(false)
	second := h.orch.Pronounce(context.Background(), Request{Text: "two"})
	if second.Kind != Completed {
		t.Errorf("second outcome = %v, want Completed", second)
	}

	select {
	case out := <-first:
		if out.Reason != ReasonCancelled {
			t.Errorf("first outcome = %v, want Failed{Cancelled}", out)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first request never finished")
	}
}

func TestSoundDisabled(t *testing.T) {
	h := newHarness(t, capability.Profile{HasSpeechSynth: true}, fetchOK, nil)
	h.orch.SetSoundEnabled(false)

	out := h.orch.Pronounce(context.Background(), Request{Text: "bird"})
	if out.Kind != Failed || out.Reason != ReasonSoundDisabled || out.Text != "bird" {
		t.Fatalf("outcome = %v, want Failed{SoundDisabled}", out)
	}
	if len(h.engine.Utterances()) != 0 {
		t.Error("no strategy should run while sound is disabled")
	}

	h.orch.SetSoundEnabled(true)
	if out := h.orch.Pronounce(context.Background(), Request{Text: "bird"}); out.Kind != Completed {
		t.Errorf("outcome after re-enabling = %v", out)
	}
}

type panicEngine struct{}

func (panicEngine) Synthesize(context.Context, speech.Utterance) (*audio.Clip, error) {
	panic("engine exploded")
}
func (panicEngine) Info() speech.EngineInfo { return speech.EngineInfo{Name: "panicky"} }
func (panicEngine) Validate() error         { return nil }
func (panicEngine) Close() error            { return nil }

func TestPanicIsContained(t *testing.T) {
	h := newHarness(t, capability.Profile{HasSpeechSynth: true}, fetchOK, func(c *OrchestratorConfig) {
		c.Engine = panicEngine{}
	})

	out := h.orch.Pronounce(context.Background(), Request{Text: "kite"})
	if out.Kind != DegradedToText {
		t.Fatalf("outcome = %v, want DegradedToText after a panicking engine", out)
	}
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t, capability.Profile{HasSpeechSynth: true}, fetchOK, nil)

	var mu sync.Mutex
	var kinds []OutcomeKind
	h.orch.Subscribe(func(o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, o.Kind)
	})

	h.orch.Pronounce(context.Background(), Request{Text: "frog"})

	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != 2 || kinds[0] != Started || kinds[1] != Completed {
		t.Errorf("notifications = %v, want [started completed]", kinds)
	}
}
