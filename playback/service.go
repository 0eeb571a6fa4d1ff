package playback

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/wordsprout/wordsprout/internal/cache"
	"github.com/wordsprout/wordsprout/internal/capability"
	"github.com/wordsprout/wordsprout/internal/diagnostics"
	"github.com/wordsprout/wordsprout/internal/gesture"
	"github.com/wordsprout/wordsprout/internal/observe"
	"github.com/wordsprout/wordsprout/internal/speech"
)

// Config holds the tunables of a Service.
type Config struct {
	Cache               cache.Config
	GestureDebounce     time.Duration
	AttemptTimeout      time.Duration
	TextDisplay         time.Duration
	DiagnosticsCapacity int
	SoundEnabled        bool
	Network             capability.NetworkHint

	// PreloadPerSecond limits batch preloading; zero means unlimited.
	PreloadPerSecond float64

	// Workaround applies to embedded profiles only.
	Workaround WorkaroundConfig
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		Cache:               cache.DefaultConfig(),
		GestureDebounce:     gesture.DefaultDebounce,
		AttemptTimeout:      DefaultAttemptTimeout,
		TextDisplay:         DefaultTextDisplay,
		DiagnosticsCapacity: diagnostics.DefaultCapacity,
		SoundEnabled:        true,
		PreloadPerSecond:    4,
		Workaround:          DefaultWorkaroundConfig(),
	}
}

// Deps are the collaborators a Service is built from.
type Deps struct {
	Profile capability.Profile
	Engine  speech.Engine // nil when no speech engine is installed
	Player  Player        // nil when there is no audio device
	Fetch   cache.Fetcher // nil when assets cannot be fetched
	Metrics *observe.Metrics
	Logger  *log.Logger
}

// Service is the composition root of the playback layer. It owns one gate,
// asset cache, diagnostics log and orchestrator for the session.
type Service struct {
	profile   capability.Profile
	cfg       Config
	gate      *gesture.Gate
	assets    *cache.AssetCache
	preloader *cache.Preloader
	diag      *diagnostics.Log
	metrics   *observe.Metrics
	player    Player
	engine    speech.Engine
	fetch     cache.Fetcher
	orch      *Orchestrator
	front     Pronouncer
	logger    *log.Logger
}

// NewService wires the playback layer for a detected profile.
func NewService(cfg Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observe.Noop()
	}

	diag := diagnostics.New(cfg.DiagnosticsCapacity, diagnostics.WithLogger(logger.WithPrefix("diagnostics")))

	gate := gesture.NewGate(gesture.Config{
		RequiresGesture: deps.Profile.RequiresGesture,
		Debounce:        cfg.GestureDebounce,
	}, logger.WithPrefix("gesture"))
	if r, ok := deps.Player.(gesture.Resumer); ok {
		gate.AddResumer(r)
	}
	gate.OnUnlock(func() {
		metrics.RecordUnlock(context.Background())
		diag.Info("Audio unlocked by user gesture")
	})

	assets := cache.NewAssetCache(cfg.Cache, logger.WithPrefix("cache"))
	assets.SetObserver(metrics)

	var limiter *rate.Limiter
	if cfg.PreloadPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.PreloadPerSecond), 1)
	}

	orch := NewOrchestrator(OrchestratorConfig{
		Profile:        deps.Profile,
		Gate:           gate,
		Engine:         deps.Engine,
		Player:         deps.Player,
		Assets:         assets,
		Fetch:          deps.Fetch,
		Diagnostics:    diag,
		Metrics:        metrics,
		Logger:         logger.WithPrefix("playback"),
		AttemptTimeout: cfg.AttemptTimeout,
		TextDisplay:    cfg.TextDisplay,
	})
	orch.SetSoundEnabled(cfg.SoundEnabled)

	s := &Service{
		profile:   deps.Profile,
		cfg:       cfg,
		gate:      gate,
		assets:    assets,
		preloader: cache.NewPreloader(assets, deps.Fetch, limiter, logger.WithPrefix("preload")),
		diag:      diag,
		metrics:   metrics,
		player:    deps.Player,
		engine:    deps.Engine,
		fetch:     deps.Fetch,
		orch:      orch,
		front:     orch,
		logger:    logger,
	}

	if deps.Profile.IsEmbedded() {
		var warmUp Player
		if deps.Profile.HasToneSynthesis {
			warmUp = deps.Player
		}
		s.front = NewEmbeddedWorkaround(orch, gate, warmUp, diag, cfg.Workaround, logger.WithPrefix("workaround"))
	}

	diag.Info("Playback service started",
		"platform", deps.Profile.PlatformID, "device", string(deps.Profile.DeviceClass),
		"speech", deps.Profile.HasSpeechSynth, "media", deps.Profile.HasMediaPlayback,
		"gesture", deps.Profile.RequiresGesture)
	return s
}

// Pronounce renders req through the fallback chain.
func (s *Service) Pronounce(ctx context.Context, req Request) Outcome {
	return s.front.Pronounce(ctx, req)
}

// Stop cancels the pronunciation in flight.
func (s *Service) Stop() {
	s.front.Stop()
}

// Subscribe registers fn for every outcome, including Started.
func (s *Service) Subscribe(fn func(Outcome)) {
	s.orch.Subscribe(fn)
}

// Displayed returns the degraded text currently on display, if any.
func (s *Service) Displayed() string {
	return s.orch.Displayed()
}

// State returns the state of the current or most recent request.
func (s *Service) State() StateType {
	return s.orch.State()
}

// Plan returns the strategies that would be tried for req.
func (s *Service) Plan(req Request) []StrategyKind {
	return s.orch.Plan(req)
}

// CanPlay reports whether the gesture gate allows audio.
func (s *Service) CanPlay() bool {
	return s.gate.CanPlay()
}

// Prompt returns the gesture gate's hint.
func (s *Service) Prompt() string {
	return s.gate.Prompt()
}

// OnUnlock registers fn for the gate's unlock notification.
func (s *Service) OnUnlock(fn func()) {
	s.gate.OnUnlock(fn)
}

// ObserveInput feeds a user input event to the gesture gate.
func (s *Service) ObserveInput(ev gesture.Event) bool {
	return s.gate.Observe(ev)
}

// Gate returns the session's gesture gate.
func (s *Service) Gate() *gesture.Gate {
	return s.gate
}

// SetSoundEnabled toggles sound. Disabling stops the current request.
func (s *Service) SetSoundEnabled(enabled bool) {
	s.orch.SetSoundEnabled(enabled)
}

// SoundEnabled reports the sound setting.
func (s *Service) SoundEnabled() bool {
	return s.orch.SoundEnabled()
}

// Profile returns the capability profile the service was built for.
func (s *Service) Profile() capability.Profile {
	return s.profile
}

// Quality returns the quality recommendation for the profile and network.
func (s *Service) Quality() capability.Recommendation {
	return capability.Estimate(s.profile, s.cfg.Network)
}

// Feedback plays a UI sound when tones are supported, sound is on and the
// gate is open. Otherwise it does nothing.
func (s *Service) Feedback(ctx context.Context, f Feedback) error {
	if !s.profile.HasToneSynthesis || s.player == nil || !s.SoundEnabled() || !s.gate.CanPlay() {
		return nil
	}
	if err := playFeedback(ctx, s.player, f); err != nil {
		s.diag.Warn("Feedback tone playback failed", "sound", f.String(), "error", err.Error())
		return err
	}
	return nil
}

// Preload warms the asset cache. An empty strategy uses the quality
// recommendation.
func (s *Service) Preload(ctx context.Context, items []cache.PreloadItem, strategy capability.PreloadStrategy) (cache.PreloadReport, error) {
	if strategy == "" {
		strategy = s.Quality().Preload
	}
	if !s.profile.HasMediaPlayback || s.fetch == nil {
		s.diag.Info("Preload skipped, no media playback", "items", len(items))
		return cache.PreloadReport{Requested: len(items), Skipped: len(items)}, nil
	}
	report, err := s.preloader.Run(ctx, items, strategy)
	if report.Failed > 0 {
		s.diag.Warn("Asset preload incomplete",
			"loaded", report.Loaded, "failed", report.Failed, "skipped", report.Skipped)
	} else {
		s.diag.Info("Asset preload finished", "loaded", report.Loaded, "skipped", report.Skipped)
	}
	return report, err
}

// CacheStats returns the asset cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.assets.Stats()
}

// Assets returns the asset cache.
func (s *Service) Assets() *cache.AssetCache {
	return s.assets
}

// Diagnostics returns the diagnostics log.
func (s *Service) Diagnostics() *diagnostics.Log {
	return s.diag
}

// LogStats returns the diagnostics counters.
func (s *Service) LogStats() diagnostics.Stats {
	return s.diag.Stats()
}

// ExportLogs serializes the diagnostics log.
func (s *Service) ExportLogs() (string, error) {
	return s.diag.Export()
}

// ImportLogs replaces the diagnostics log with an exported document. It
// reports whether the document was accepted.
func (s *Service) ImportLogs(data string) bool {
	if err := s.diag.Import(data); err != nil {
		s.logger.Warn("Rejected diagnostics import", "error", err)
		return false
	}
	return true
}

// Close stops playback and releases cached assets and the speech engine.
func (s *Service) Close() error {
	s.Stop()
	s.assets.Clear()
	if s.engine != nil {
		return s.engine.Close()
	}
	return nil
}
