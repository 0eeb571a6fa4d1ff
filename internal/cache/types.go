package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when a handle exceeds the byte capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrFetchTimeout is returned when a fetch does not finish in time
	ErrFetchTimeout = errors.New("asset fetch timed out")

	// ErrNilHandle is returned when a fetcher reports success without a handle
	ErrNilHandle = errors.New("fetcher returned no handle")

	// ErrCacheCorrupted is returned when persisted data cannot be decoded
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Handle is a ready-to-play asset owned by the cache.
type Handle interface {
	// SizeEstimate returns the approximate memory held by the handle.
	SizeEstimate() int64

	// Release stops any playback and frees underlying resources.
	Release() error
}

// Fetcher loads the asset for key. It must honour ctx cancellation.
type Fetcher func(ctx context.Context, key string) (Handle, error)

// Priority orders preload work; higher values are fetched and kept first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// String returns the string representation of the priority
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// categoryPriorities is the static priority table keyed by asset category.
var categoryPriorities = map[string]Priority{
	"alphabet": PriorityHigh,
	"letters":  PriorityHigh,
	"numbers":  PriorityMedium,
	"colors":   PriorityMedium,
	"colours":  PriorityMedium,
}

// PriorityFor returns the preload priority of an asset category.
func PriorityFor(category string) Priority {
	if p, ok := categoryPriorities[strings.ToLower(strings.TrimSpace(category))]; ok {
		return p
	}
	return PriorityLow
}

// Stats holds cache performance metrics
type Stats struct {
	Size      int     // Number of entries
	MaxSize   int     // Maximum number of entries
	Bytes     int64   // Estimated bytes held
	MaxBytes  int64   // Maximum estimated bytes
	Hits      int64   // Number of cache hits
	Misses    int64   // Number of cache misses
	Evictions int64   // Number of evictions
	HitRate   float64 // hits / (hits + misses), 0 when both are zero
}

// EntryInfo describes a cached entry without exposing its handle.
type EntryInfo struct {
	Key            string
	SizeEstimate   int64
	Priority       Priority
	LastAccessedAt time.Time
}

// Config holds configuration for an AssetCache
type Config struct {
	MaxEntries   int           // Entry count cap
	MaxBytes     int64         // Estimated byte cap
	FetchTimeout time.Duration // Bound on every fetch

	// Now is the clock used for access timestamps.
	Now func() time.Time
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxEntries:   50,
		MaxBytes:     32 * 1024 * 1024, // 32MB of decoded audio
		FetchTimeout: 10 * time.Second,
	}
}

// Observer receives cache events, typically for metrics.
type Observer interface {
	CacheHit(key string)
	CacheMiss(key string)
	CacheEviction(key string)
}
