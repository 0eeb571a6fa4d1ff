// Package cache provides the bounded asset cache that maps asset keys to
// ready-to-play handles, a priority-aware batch preloader, and a persistent
// zstd-compressed disk store for fetched asset bytes.
package cache
