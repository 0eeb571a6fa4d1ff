package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/wordsprout/wordsprout/internal/cache"
	"github.com/wordsprout/wordsprout/internal/capability"
	"github.com/wordsprout/wordsprout/playback"
)

var speechEngines = []string{"auto", "espeak", "google", "none"}

// options are the resolved configuration values.
type options struct {
	SoundEnabled        bool
	GestureDebounce     time.Duration
	CacheMaxEntries     int
	CacheMaxBytes       int64
	FetchTimeout        time.Duration
	CacheDir            string
	DiskMaxBytes        int64
	CompressionLevel    int
	AssetsBaseURL       string
	RequestsPerMinute   int
	SpeechEngine        string
	AttemptTimeout      time.Duration
	TextDisplay         time.Duration
	DiagnosticsCapacity int
	Network             string
	MemoryGB            float64
	Catalog             string
	MetricsAddr         string
	UserAgent           string
	ConfigFile          string
}

func loadOptions() options {
	return optionsFrom(viper.GetViper())
}

func optionsFrom(v *viper.Viper) options {
	return options{
		SoundEnabled:        v.GetBool("sound.enabled") && !v.GetBool("mute"),
		GestureDebounce:     v.GetDuration("gesture.debounce"),
		CacheMaxEntries:     v.GetInt("cache.max_entries"),
		CacheMaxBytes:       v.GetInt64("cache.max_bytes"),
		FetchTimeout:        v.GetDuration("cache.fetch_timeout"),
		CacheDir:            v.GetString("cache.dir"),
		DiskMaxBytes:        v.GetInt64("cache.disk_max_bytes"),
		CompressionLevel:    v.GetInt("cache.compression_level"),
		AssetsBaseURL:       v.GetString("assets.base_url"),
		RequestsPerMinute:   v.GetInt("assets.requests_per_minute"),
		SpeechEngine:        v.GetString("speech.engine"),
		AttemptTimeout:      v.GetDuration("playback.attempt_timeout"),
		TextDisplay:         v.GetDuration("playback.text_display"),
		DiagnosticsCapacity: v.GetInt("diagnostics.capacity"),
		Network:             v.GetString("network"),
		MemoryGB:            v.GetFloat64("memory_gb"),
		Catalog:             v.GetString("catalog"),
		MetricsAddr:         v.GetString("metrics.addr"),
		UserAgent:           v.GetString("user_agent"),
		ConfigFile:          configFile,
	}
}

func (o options) validate() error {
	var errs []error
	if !slices.Contains(speechEngines, o.SpeechEngine) {
		errs = append(errs, fmt.Errorf("speech.engine must be one of %v, got %q", speechEngines, o.SpeechEngine))
	}
	if o.CacheMaxEntries < 1 {
		errs = append(errs, fmt.Errorf("cache.max_entries must be at least 1, got %d", o.CacheMaxEntries))
	}
	if o.CacheMaxBytes < 1 {
		errs = append(errs, fmt.Errorf("cache.max_bytes must be positive, got %d", o.CacheMaxBytes))
	}
	if o.CompressionLevel < 0 || o.CompressionLevel > 22 {
		errs = append(errs, fmt.Errorf("cache.compression_level must be between 0 and 22, got %d", o.CompressionLevel))
	}
	for key, d := range map[string]time.Duration{
		"gesture.debounce":         o.GestureDebounce,
		"cache.fetch_timeout":      o.FetchTimeout,
		"playback.attempt_timeout": o.AttemptTimeout,
		"playback.text_display":    o.TextDisplay,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration, got %s", key, d))
		}
	}
	if o.DiagnosticsCapacity < 1 {
		errs = append(errs, fmt.Errorf("diagnostics.capacity must be at least 1, got %d", o.DiagnosticsCapacity))
	}
	if o.Network != "" && capability.ParseNetworkClass(o.Network) == capability.NetworkUnknown {
		errs = append(errs, fmt.Errorf("unknown network hint %q", o.Network))
	}
	return errors.Join(errs...)
}

// serviceConfig maps the options onto the playback service configuration.
func (o options) serviceConfig() playback.Config {
	cfg := playback.DefaultConfig()
	cfg.Cache = cache.Config{
		MaxEntries:   o.CacheMaxEntries,
		MaxBytes:     o.CacheMaxBytes,
		FetchTimeout: o.FetchTimeout,
	}
	cfg.GestureDebounce = o.GestureDebounce
	cfg.AttemptTimeout = o.AttemptTimeout
	cfg.TextDisplay = o.TextDisplay
	cfg.DiagnosticsCapacity = o.DiagnosticsCapacity
	cfg.SoundEnabled = o.SoundEnabled
	cfg.Network = capability.NetworkHint{
		Class:    capability.ParseNetworkClass(o.Network),
		MemoryGB: o.MemoryGB,
	}
	return cfg
}

// assetDir is where fetched recordings persist between runs.
func (o options) assetDir() (string, error) {
	if o.CacheDir != "" {
		return homedir.Expand(o.CacheDir)
	}
	dir, err := gap.NewScope(gap.User, "wordsprout").CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "assets"), nil
}

// catalogPath expands ~ in the catalog path. Empty means the built-in
// catalog.
func (o options) catalogPath() (string, error) {
	if o.Catalog == "" {
		return "", nil
	}
	return homedir.Expand(o.Catalog)
}

// sessionLogPath is where the diagnostics of the last session are kept.
func sessionLogPath() (string, error) {
	return gap.NewScope(gap.User, "wordsprout").DataPath("diagnostics.json")
}
