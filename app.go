package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/wordsprout/wordsprout/internal/audio"
	"github.com/wordsprout/wordsprout/internal/cache"
	"github.com/wordsprout/wordsprout/internal/capability"
	"github.com/wordsprout/wordsprout/internal/content"
	"github.com/wordsprout/wordsprout/internal/fetch"
	"github.com/wordsprout/wordsprout/internal/observe"
	"github.com/wordsprout/wordsprout/internal/settings"
	"github.com/wordsprout/wordsprout/internal/speech"
	"github.com/wordsprout/wordsprout/playback"
)

// app is one session: the playback service and everything it was built
// from.
type app struct {
	opts    options
	svc     *playback.Service
	catalog *content.Catalog
	output  *audio.Output
	disk    *cache.DiskStore
	fetcher *fetch.Fetcher
	metrics *observe.Provider
	watcher *settings.Watcher
	cancel  context.CancelFunc
	logger  *log.Logger
}

func newApp(ctx context.Context, opts options) (*app, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	a := &app{opts: opts, cancel: cancel, logger: log.Default()}

	catalogPath, err := opts.catalogPath()
	if err != nil {
		cancel()
		return nil, err
	}
	a.catalog, err = content.Load(catalogPath)
	if err != nil {
		cancel()
		return nil, err
	}

	profile := capability.NewDetector(capability.NativeProbe{
		UserAgent:     opts.UserAgent,
		DisableSpeech: opts.SpeechEngine == "none",
	}, a.logger.WithPrefix("capability")).Detect()

	deps := playback.Deps{Profile: profile, Logger: a.logger}

	if out, err := audio.NewOutput(a.logger.WithPrefix("audio")); err != nil {
		a.logger.Warn("No audio output, words will be shown as text", "error", err)
	} else {
		a.output = out
		deps.Player = out
	}

	engine, err := newEngine(ctx, opts.SpeechEngine, a.logger)
	if err != nil {
		a.logger.Warn("Speech engine unavailable", "engine", opts.SpeechEngine, "error", err)
	} else if engine != nil {
		deps.Engine = engine
	}

	if opts.AssetsBaseURL != "" {
		a.fetcher, err = a.newFetcher(opts)
		if err != nil {
			a.close() //nolint:errcheck
			return nil, err
		}
		deps.Fetch = a.fetcher.Fetch
	}

	if opts.MetricsAddr != "" {
		if err := a.startMetrics(ctx, &deps); err != nil {
			a.logger.Warn("Metrics disabled", "error", err)
		}
	}

	a.svc = playback.NewService(opts.serviceConfig(), deps)
	a.watchSettings(ctx)
	return a, nil
}

func (a *app) newFetcher(opts options) (*fetch.Fetcher, error) {
	var store fetch.Store
	if dir, err := opts.assetDir(); err != nil {
		a.logger.Warn("No asset directory, recordings will not persist", "error", err)
	} else if ds, err := cache.NewDiskStore(dir, opts.DiskMaxBytes, opts.CompressionLevel, a.logger.WithPrefix("disk")); err != nil {
		a.logger.Warn("Disk store unavailable", "dir", dir, "error", err)
	} else {
		a.disk = ds
		store = ds
	}

	return fetch.New(fetch.Config{
		BaseURL:           opts.AssetsBaseURL,
		RequestsPerMinute: opts.RequestsPerMinute,
		UserAgent:         "wordsprout/" + Version,
	}, store, a.logger.WithPrefix("fetch"))
}

func (a *app) startMetrics(ctx context.Context, deps *playback.Deps) error {
	prov, err := observe.InitProvider(observe.ProviderConfig{ServiceVersion: Version})
	if err != nil {
		return err
	}
	m, err := observe.NewMetrics(prov.MeterProvider)
	if err != nil {
		return err
	}
	a.metrics = prov
	deps.Metrics = m

	go func() {
		if err := prov.Serve(ctx, a.opts.MetricsAddr, a.logger.WithPrefix("metrics")); err != nil {
			a.logger.Error("Metrics server stopped", "error", err)
		}
	}()
	return nil
}

// watchSettings applies live edits of sound.enabled in the config file.
func (a *app) watchSettings(ctx context.Context) {
	if a.opts.ConfigFile == "" {
		return
	}
	w, err := settings.NewWatcher(a.opts.ConfigFile, a.logger.WithPrefix("settings"))
	if err != nil {
		a.logger.Debug("Not watching config file", "error", err)
		return
	}
	a.watcher = w
	go func() {
		err := w.Run(ctx, func(s settings.Settings) {
			a.logger.Info("Sound setting changed", "enabled", s.SoundEnabled)
			a.svc.SetSoundEnabled(s.SoundEnabled)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("Config watcher stopped", "error", err)
		}
	}()
}

// saveSession writes the diagnostics of this session for `wordsprout logs`.
func (a *app) saveSession() error {
	data, err := a.svc.ExportLogs()
	if err != nil {
		return err
	}
	return writeSessionLog(data)
}

func writeSessionLog(data string) error {
	path, err := sessionLogPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("unable to create data directory: %w", err)
	}
	return os.WriteFile(path, []byte(data), 0o600)
}

func (a *app) close() error {
	var errs []error
	if a.svc != nil {
		if err := a.saveSession(); err != nil {
			errs = append(errs, fmt.Errorf("save diagnostics: %w", err))
		}
		errs = append(errs, a.svc.Close())
	}
	a.cancel()
	if a.watcher != nil {
		errs = append(errs, a.watcher.Close())
	}
	if a.metrics != nil {
		errs = append(errs, a.metrics.Shutdown(context.Background()))
	}
	if a.disk != nil {
		errs = append(errs, a.disk.Close())
	}
	if a.output != nil {
		errs = append(errs, a.output.Close())
	}
	return errors.Join(errs...)
}

// newEngine builds the configured speech engine. It returns nil, nil when
// speech is disabled or, for "auto", when no engine is installed.
func newEngine(ctx context.Context, name string, logger *log.Logger) (speech.Engine, error) {
	switch name {
	case "none":
		return nil, nil
	case "espeak":
		e, err := speech.NewESpeakEngine(speech.ESpeakConfig{}, logger.WithPrefix("espeak"))
		if err != nil {
			return nil, err
		}
		return e, nil
	case "google":
		e, err := speech.NewGoogleEngine(ctx, speech.GoogleConfig{}, logger.WithPrefix("google"))
		if err != nil {
			return nil, err
		}
		return e, nil
	case "auto", "":
		if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
			e, err := speech.NewGoogleEngine(ctx, speech.GoogleConfig{}, logger.WithPrefix("google"))
			if err == nil {
				return e, nil
			}
			logger.Warn("Cloud speech unavailable, trying espeak", "error", err)
		}
		e, err := speech.NewESpeakEngine(speech.ESpeakConfig{}, logger.WithPrefix("espeak"))
		if err != nil {
			logger.Debug("No local speech engine", "error", err)
			return nil, nil
		}
		return e, nil
	}
	return nil, fmt.Errorf("unknown speech engine %q", name)
}
