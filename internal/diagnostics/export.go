package diagnostics

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ExportVersion is the version written into exported documents.
const ExportVersion = 1

// ErrInvalidExport is returned when an import document cannot be used.
var ErrInvalidExport = errors.New("invalid diagnostics export")

type exportDoc struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Stats      Stats     `json:"stats"`
	Records    []Record  `json:"records"`
}

// Export serialises the record set as an indented JSON document.
func (l *Log) Export() (string, error) {
	l.mu.RLock()
	records := l.snapshotLocked()
	l.mu.RUnlock()

	doc := exportDoc{
		Version:    ExportVersion,
		ExportedAt: l.now(),
		Stats:      computeStats(records),
		Records:    records,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export diagnostics: %w", err)
	}
	return string(data), nil
}

// Import replaces the record set with the records of an exported document.
// When the document holds more records than the log's capacity, the newest
// are kept. The log is unchanged on error.
func (l *Log) Import(data string) error {
	var doc exportDoc
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExport, err)
	}
	if doc.Version != ExportVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidExport, doc.Version)
	}
	for i, r := range doc.Records {
		switch r.Level {
		case LevelInfo, LevelWarning, LevelError:
		default:
			return fmt.Errorf("%w: record %d has level %q", ErrInvalidExport, i, r.Level)
		}
	}

	records := doc.Records
	if len(records) > l.capacity {
		records = records[len(records)-l.capacity:]
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.reset()
	for _, r := range records {
		l.appendLocked(r)
	}
	return nil
}
