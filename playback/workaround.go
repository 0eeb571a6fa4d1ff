package playback

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wordsprout/wordsprout/internal/audio"
	"github.com/wordsprout/wordsprout/internal/diagnostics"
	"github.com/wordsprout/wordsprout/internal/gesture"
)

// WorkaroundConfig tunes the embedded-browser workaround.
type WorkaroundConfig struct {
	// ExtraEvents are accepted as gestures in addition to the defaults.
	ExtraEvents []gesture.EventKind

	// Debounce replaces the gate's debounce window.
	Debounce time.Duration

	// StartupDelay is waited once before the first playback attempt.
	StartupDelay time.Duration

	// WarmUp is the length of the silent tone played once to start the
	// audio subsystem. Zero disables it.
	WarmUp time.Duration
}

// DefaultWorkaroundConfig returns the settings used for the embedded browser.
func DefaultWorkaroundConfig() WorkaroundConfig {
	return WorkaroundConfig{
		ExtraEvents:  []gesture.EventKind{gesture.EventTouchStart, gesture.EventClick, gesture.EventPointerUp},
		Debounce:     150 * time.Millisecond,
		StartupDelay: 300 * time.Millisecond,
		WarmUp:       50 * time.Millisecond,
	}
}

// EmbeddedWorkaround decorates a Pronouncer for the embedded in-app
// browser. It only adds behaviour: requests still reach the wrapped
// Pronouncer unchanged.
type EmbeddedWorkaround struct {
	next   Pronouncer
	gate   *gesture.Gate
	player Player // nil skips the warm-up
	diag   *diagnostics.Log
	cfg    WorkaroundConfig
	logger *log.Logger

	mu       sync.Mutex
	started  bool
	warmedUp bool

	// pending cancels the request waiting in prepare. Guarded by pendingMu
	// because prepare holds mu for the whole startup delay.
	pendingMu sync.Mutex
	pending   *pendingRequest
}

type pendingRequest struct {
	cancel context.CancelFunc
}

// NewEmbeddedWorkaround wraps next and widens gate immediately.
func NewEmbeddedWorkaround(next Pronouncer, gate *gesture.Gate, player Player, diag *diagnostics.Log, cfg WorkaroundConfig, logger *log.Logger) *EmbeddedWorkaround {
	if logger == nil {
		logger = log.Default().WithPrefix("workaround")
	}
	if diag == nil {
		diag = diagnostics.New(diagnostics.DefaultCapacity)
	}
	if gate != nil {
		gate.Widen(cfg.ExtraEvents, cfg.Debounce)
	}
	logger.Debug("Embedded workaround enabled",
		"events", cfg.ExtraEvents, "debounce", cfg.Debounce, "delay", cfg.StartupDelay)
	return &EmbeddedWorkaround{
		next:   next,
		gate:   gate,
		player: player,
		diag:   diag,
		cfg:    cfg,
		logger: logger,
	}
}

// Pronounce implements Pronouncer. A request cancelled while waiting for
// the startup delay is still handed to the wrapped Pronouncer, which reports
// it as Failed{Cancelled}.
func (w *EmbeddedWorkaround) Pronounce(ctx context.Context, req Request) Outcome {
	ctx, pr := w.track(ctx)
	defer w.untrack(pr)

	if w.gate == nil || w.gate.CanPlay() {
		if err := w.prepare(ctx); err != nil {
			w.diag.Info("Playback cancelled during audio startup", "text", req.Text)
		}
	}
	return w.next.Pronounce(ctx, req)
}

// Stop implements Pronouncer. It also cancels a request that has not yet
// reached the wrapped Pronouncer.
func (w *EmbeddedWorkaround) Stop() {
	w.pendingMu.Lock()
	pr := w.pending
	w.pendingMu.Unlock()
	if pr != nil {
		pr.cancel()
	}
	w.next.Stop()
}

// track makes the request the pending one, cancelling its predecessor.
func (w *EmbeddedWorkaround) track(parent context.Context) (context.Context, *pendingRequest) {
	ctx, cancel := context.WithCancel(parent)
	pr := &pendingRequest{cancel: cancel}

	w.pendingMu.Lock()
	prev := w.pending
	w.pending = pr
	w.pendingMu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	return ctx, pr
}

func (w *EmbeddedWorkaround) untrack(pr *pendingRequest) {
	w.pendingMu.Lock()
	if w.pending == pr {
		w.pending = nil
	}
	w.pendingMu.Unlock()
	pr.cancel()
}

// WarmedUp reports whether the warm-up tone has been played.
func (w *EmbeddedWorkaround) WarmedUp() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.warmedUp
}

// prepare waits the startup delay and plays the warm-up tone, each once.
// Only cancellation of ctx is reported; warm-up failures are logged.
func (w *EmbeddedWorkaround) prepare(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		if w.cfg.StartupDelay > 0 {
			timer := time.NewTimer(w.cfg.StartupDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
		w.started = true
	}

	if w.warmedUp || w.player == nil || w.cfg.WarmUp <= 0 {
		return nil
	}
	w.warmedUp = true

	clip, err := audio.Silence("warm-up", w.cfg.WarmUp)
	if err == nil {
		defer clip.Release()
		err = w.player.Play(ctx, clip)
	}
	if err != nil {
		w.diag.Warn("Audio warm-up tone failed", "error", err.Error())
		return nil
	}
	w.diag.Info("Audio warm-up tone played", "duration_ms", w.cfg.WarmUp.Milliseconds())
	return nil
}
