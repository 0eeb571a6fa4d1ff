// Package fetch resolves asset keys to audio bytes, consulting the on-disk
// store before the network, and decodes them into playable clips.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/wordsprout/wordsprout/internal/audio"
	"github.com/wordsprout/wordsprout/internal/cache"
)

var (
	// ErrNotFound is returned when the asset does not exist.
	ErrNotFound = errors.New("asset not found")

	// ErrTooLarge is returned when an asset exceeds Config.MaxBytes.
	ErrTooLarge = errors.New("asset too large")

	// ErrNoSource is returned when a relative key is fetched without a base URL.
	ErrNoSource = errors.New("no asset base URL configured")
)

// StatusError is returned for unexpected HTTP responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Store persists fetched bytes. *cache.DiskStore implements it.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string)
}

// Config configures a Fetcher.
type Config struct {
	// BaseURL resolves relative keys. http(s) and file URLs are supported.
	BaseURL string

	// RequestsPerMinute limits network requests (defaults to 120).
	RequestsPerMinute int

	// MaxBytes bounds a single asset (defaults to 4MB).
	MaxBytes int64

	// Client defaults to a client with a 30s timeout.
	Client *http.Client

	UserAgent string
}

// Fetcher loads asset bytes and decodes them.
type Fetcher struct {
	base      *url.URL
	client    *http.Client
	limiter   *rate.Limiter
	maxBytes  int64
	userAgent string
	store     Store
	logger    *log.Logger
}

// New creates a fetcher. store may be nil.
func New(cfg Config, store Store, logger *log.Logger) (*Fetcher, error) {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 120
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 4 << 20
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "wordsprout"
	}
	if logger == nil {
		logger = log.Default().WithPrefix("fetch")
	}

	f := &Fetcher{
		client:    cfg.Client,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 4),
		maxBytes:  cfg.MaxBytes,
		userAgent: cfg.UserAgent,
		store:     store,
		logger:    logger,
	}
	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid asset base URL: %w", err)
		}
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}
		f.base = base
	}
	return f, nil
}

// Resolve returns the absolute URL of key.
func (f *Fetcher) Resolve(key string) (*url.URL, error) {
	ref, err := url.Parse(key)
	if err != nil {
		return nil, fmt.Errorf("invalid asset key %q: %w", key, err)
	}
	if ref.IsAbs() {
		return ref, nil
	}
	if f.base == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSource, key)
	}
	return f.base.ResolveReference(ref), nil
}

// Bytes returns the raw asset, from the store when present. It does not
// persist what it downloads; Clip does once the bytes decode.
func (f *Fetcher) Bytes(ctx context.Context, key string) ([]byte, error) {
	data, _, err := f.load(ctx, key)
	return data, err
}

func (f *Fetcher) load(ctx context.Context, key string) (data []byte, stored bool, err error) {
	if f.store != nil {
		if data, ok := f.store.Get(key); ok {
			f.logger.Debug("Asset served from disk", "key", key)
			return data, true, nil
		}
	}

	u, err := f.Resolve(key)
	if err != nil {
		return nil, false, err
	}

	switch u.Scheme {
	case "file":
		data, err = f.readFile(u)
	case "http", "https":
		data, err = f.get(ctx, u)
	default:
		err = fmt.Errorf("unsupported asset scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, false, err
	}
	return data, false, nil
}

func (f *Fetcher) readFile(u *url.URL) ([]byte, error) {
	path := filepath.FromSlash(u.Path)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	if info.Size() > f.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, path, info.Size())
	}
	return os.ReadFile(path)
}

func (f *Fetcher) get(ctx context.Context, u *url.URL) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "audio/mpeg, audio/wav;q=0.9, */*;q=0.1")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{URL: u.String(), Code: resp.StatusCode}
	case resp.ContentLength > f.maxBytes:
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, u, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("network error reading %s: %w", u, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, u)
	}
	return data, nil
}

// Clip fetches and decodes key. Only bytes that decode are persisted; a
// stored copy that no longer decodes is dropped so the next fetch goes back
// to the source.
func (f *Fetcher) Clip(ctx context.Context, key string) (*audio.Clip, error) {
	data, stored, err := f.load(ctx, key)
	if err != nil {
		return nil, err
	}
	format := audio.FormatOf(key)
	if format == "" {
		format = "mp3"
	}

	clip, err := audio.Decode(key, data, format)
	if err != nil {
		if stored {
			f.logger.Warn("Dropping undecodable asset from disk", "key", key, "error", err)
			f.store.Delete(key)
		}
		return nil, err
	}

	if f.store != nil && !stored {
		if err := f.store.Put(key, data); err != nil {
			f.logger.Warn("Failed to persist asset", "key", key, "error", err)
		}
	}
	return clip, nil
}

// Fetch adapts Clip to cache.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, key string) (cache.Handle, error) {
	clip, err := f.Clip(ctx, key)
	if err != nil {
		return nil, err
	}
	return clip, nil
}
