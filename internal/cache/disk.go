package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const indexFile = "assets.index"

// DiskStore keeps fetched asset bytes on disk across sessions so a restart
// does not have to download every pronunciation again. Payloads are zstd
// compressed when that makes them smaller.
type DiskStore struct {
	dir      string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry
	mu    sync.Mutex

	now    func() time.Time
	logger *log.Logger
}

// diskEntry is one persisted asset in the gob index.
type diskEntry struct {
	Key        string
	File       string
	DiskSize   int64
	RawSize    int64
	StoredAt   time.Time
	LastAccess time.Time
	Compressed bool
}

// DiskStats summarises the disk tier.
type DiskStats struct {
	Entries  int
	Bytes    int64
	Capacity int64
	RawBytes int64
}

// NewDiskStore opens (or creates) a store in dir. A compression level of 0
// stores payloads uncompressed.
func NewDiskStore(dir string, capacity int64, compressionLevel int, logger *log.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	if logger == nil {
		logger = log.Default().WithPrefix("disk")
	}

	ds := &DiskStore{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		now:      time.Now,
		logger:   logger,
	}

	var err error
	if compressionLevel > 0 {
		ds.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// Always able to read compressed payloads written with a previous setting.
	ds.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if err := ds.loadIndex(); err != nil {
		logger.Warn("Discarding unreadable asset index", "dir", dir, "error", err)
		ds.index = make(map[string]*diskEntry)
	}
	for _, e := range ds.index {
		ds.size += e.DiskSize
	}

	return ds, nil
}

// Get returns the stored bytes for key.
func (ds *DiskStore) Get(key string) ([]byte, bool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	entry, ok := ds.index[key]
	if !ok {
		return nil, false
	}

	data, err := os.ReadFile(entry.File)
	if err != nil {
		ds.dropLocked(entry)
		return nil, false
	}
	if entry.Compressed {
		data, err = ds.decoder.DecodeAll(data, nil)
		if err != nil {
			ds.logger.Warn("Dropping corrupted asset", "key", key, "error", errors.Join(ErrCacheCorrupted, err))
			ds.dropLocked(entry)
			return nil, false
		}
	}

	entry.LastAccess = ds.now()
	return data, true
}

// Put stores value under key, evicting least recently read entries to fit.
func (ds *DiskStore) Put(key string, value []byte) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	payload, compressed := value, false
	if ds.encoder != nil && len(value) > 1024 {
		if packed := ds.encoder.EncodeAll(value, nil); len(packed) < len(value) {
			payload, compressed = packed, true
		}
	}

	diskSize := int64(len(payload))
	if diskSize > ds.capacity {
		return ErrItemTooLarge
	}

	if existing, ok := ds.index[key]; ok {
		ds.dropLocked(existing)
	}
	for ds.size+diskSize > ds.capacity && len(ds.index) > 0 {
		ds.evictOldestLocked()
	}

	path := ds.pathFor(key)
	if err := writeAtomic(path, func(f *os.File) error {
		_, err := f.Write(payload)
		return err
	}); err != nil {
		return fmt.Errorf("failed to write asset file: %w", err)
	}

	now := ds.now()
	ds.index[key] = &diskEntry{
		Key:        key,
		File:       path,
		DiskSize:   diskSize,
		RawSize:    int64(len(value)),
		StoredAt:   now,
		LastAccess: now,
		Compressed: compressed,
	}
	ds.size += diskSize
	return nil
}

// Delete removes key from the store.
func (ds *DiskStore) Delete(key string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if entry, ok := ds.index[key]; ok {
		ds.dropLocked(entry)
	}
}

// Keys lists stored keys from least to most recently read.
func (ds *DiskStore) Keys() []string {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	entries := make([]*diskEntry, 0, len(ds.index))
	for _, e := range ds.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastAccess.Equal(entries[j].LastAccess) {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].LastAccess.Before(entries[j].LastAccess)
	})

	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// Stats returns the current disk usage.
func (ds *DiskStore) Stats() DiskStats {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	s := DiskStats{Entries: len(ds.index), Bytes: ds.size, Capacity: ds.capacity}
	for _, e := range ds.index {
		s.RawBytes += e.RawSize
	}
	return s
}

// Clear removes every stored asset.
func (ds *DiskStore) Clear() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	for _, e := range ds.index {
		_ = os.Remove(e.File)
	}
	ds.index = make(map[string]*diskEntry)
	ds.size = 0
	return ds.saveIndex()
}

// Close persists the index and frees the codecs.
func (ds *DiskStore) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.encoder != nil {
		_ = ds.encoder.Close()
	}
	ds.decoder.Close()
	return ds.saveIndex()
}

func (ds *DiskStore) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(ds.dir, hex.EncodeToString(sum[:16])+".asset")
}

func (ds *DiskStore) dropLocked(e *diskEntry) {
	_ = os.Remove(e.File)
	ds.size -= e.DiskSize
	delete(ds.index, e.Key)
}

func (ds *DiskStore) evictOldestLocked() {
	var oldest *diskEntry
	for _, e := range ds.index {
		if oldest == nil || e.LastAccess.Before(oldest.LastAccess) {
			oldest = e
		}
	}
	if oldest != nil {
		ds.logger.Debug("Evicting stored asset", "key", oldest.Key)
		ds.dropLocked(oldest)
	}
}

func (ds *DiskStore) loadIndex() error {
	f, err := os.Open(filepath.Join(ds.dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(&ds.index); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheCorrupted, err)
	}
	return nil
}

func (ds *DiskStore) saveIndex() error {
	return writeAtomic(filepath.Join(ds.dir, indexFile), func(f *os.File) error {
		return gob.NewEncoder(f).Encode(ds.index)
	})
}

// writeAtomic writes through a temp file and renames it into place.
func writeAtomic(path string, write func(*os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	err = write(f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
