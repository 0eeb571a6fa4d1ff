package cache

import (
	"context"
	"errors"
	"sort"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/wordsprout/wordsprout/internal/capability"
)

// PreloadItem is one asset to warm up.
type PreloadItem struct {
	Key      string
	Category string
}

// PreloadReport summarises a batch preload.
type PreloadReport struct {
	Requested int
	Loaded    int
	Skipped   int // filtered by strategy or dropped as low priority
	Failed    int
	Errors    map[string]error
}

// Preloader warms an AssetCache with a batch of assets, most important
// categories first.
type Preloader struct {
	cache   *AssetCache
	fetch   Fetcher
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewPreloader creates a preloader. A nil limiter means unlimited.
func NewPreloader(c *AssetCache, fetch Fetcher, limiter *rate.Limiter, logger *log.Logger) *Preloader {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if logger == nil {
		logger = log.Default().WithPrefix("preload")
	}
	return &Preloader{cache: c, fetch: fetch, limiter: limiter, logger: logger}
}

// admits reports whether a strategy preloads assets of priority p.
func admits(strategy capability.PreloadStrategy, p Priority) bool {
	switch strategy {
	case capability.PreloadAggressive:
		return true
	case capability.PreloadBalanced:
		return p >= PriorityMedium
	default:
		return p == PriorityHigh
	}
}

// Plan filters items by strategy and orders them by descending priority,
// keeping catalog order within a priority.
func Plan(items []PreloadItem, strategy capability.PreloadStrategy) []PreloadItem {
	out := make([]PreloadItem, 0, len(items))
	for _, it := range items {
		if admits(strategy, PriorityFor(it.Category)) {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return PriorityFor(out[i].Category) > PriorityFor(out[j].Category)
	})
	return out
}

// Run preloads items sequentially. Individual failures are collected in the
// report; only cancellation of ctx aborts the batch.
func (p *Preloader) Run(ctx context.Context, items []PreloadItem, strategy capability.PreloadStrategy) (PreloadReport, error) {
	plan := Plan(items, strategy)
	report := PreloadReport{
		Requested: len(items),
		Skipped:   len(items) - len(plan),
		Errors:    make(map[string]error),
	}

	for _, it := range plan {
		if err := p.limiter.Wait(ctx); err != nil {
			return report, err
		}

		h, err := p.cache.Preload(ctx, it.Key, p.fetch, PriorityFor(it.Category))
		switch {
		case err != nil && ctx.Err() != nil:
			return report, ctx.Err()
		case err != nil:
			report.Failed++
			report.Errors[it.Key] = err
			level := log.WarnLevel
			if errors.Is(err, ErrFetchTimeout) {
				level = log.ErrorLevel
			}
			p.logger.Log(level, "Preload failed", "key", it.Key, "error", err)
		case h == nil:
			report.Skipped++
		default:
			report.Loaded++
		}
	}

	p.logger.Debug("Preload finished", "loaded", report.Loaded, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}
