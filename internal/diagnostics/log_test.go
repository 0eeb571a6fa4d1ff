package diagnostics

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func quietLog(capacity int) *Log {
	clock := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	return New(capacity,
		WithLogger(log.New(io.Discard)),
		WithClock(func() time.Time {
			clock = clock.Add(time.Millisecond)
			return clock
		}),
	)
}

func TestRingBufferDropsOldest(t *testing.T) {
	l := quietLog(3)
	for i := 0; i < 5; i++ {
		l.Info(fmt.Sprintf("attempt %d", i))
	}

	records := l.Records()
	if len(records) != 3 {
		t.Fatalf("len = %d, want 3", len(records))
	}
	for i, want := range []string{"attempt 2", "attempt 3", "attempt 4"} {
		if records[i].Message != want {
			t.Errorf("records[%d] = %q, want %q", i, records[i].Message, want)
		}
	}
	if records[0].ID == "" || records[0].ID == records[1].ID {
		t.Error("records should carry unique ids")
	}
}

func TestStats(t *testing.T) {
	l := quietLog(10)
	if s := l.Stats(); s != (Stats{}) {
		t.Errorf("empty stats = %+v", s)
	}

	l.Info("speech started")
	l.Warn("fallback hop", "from", "speech", "to", "media")
	l.Error("speech synthesis failed")
	l.Error("media playback failed")

	s := l.Stats()
	want := Stats{Total: 4, ErrorCount: 2, WarningCount: 1, InfoCount: 1, ErrorRate: 0.5}
	if s != want {
		t.Errorf("Stats() = %+v, want %+v", s, want)
	}

	if got := l.Records()[1].Context["to"]; got != "media" {
		t.Errorf("context[to] = %v, want media", got)
	}
}

func TestRecentErrors(t *testing.T) {
	l := quietLog(10)
	l.Error("first")
	l.Info("noise")
	l.Error("second")
	l.Error("third")

	got := l.RecentErrors(2)
	if len(got) != 2 || got[0].Message != "third" || got[1].Message != "second" {
		t.Errorf("RecentErrors(2) = %v", got)
	}
	if n := len(l.RecentErrors(10)); n != 3 {
		t.Errorf("RecentErrors(10) returned %d records, want 3", n)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		message string
		want    Category
	}{
		{"Speech synthesis engine error", CategorySpeechSynthesis},
		{"Media playback error: device busy", CategoryAudioPlayback},
		{"Failed to decode asset", CategoryAudioLoading},
		{"HTTP 503 from asset host", CategoryNetwork},
		{"Playback blocked until gesture", CategoryPermission},
		{"Speech attempt timed out", CategoryTimeout},
		{"something odd", CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := Classify(tt.message); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.message, got, tt.want)
			}
		})
	}
}

func TestAnalyzePatterns(t *testing.T) {
	l := quietLog(100)
	for i := 0; i < 3; i++ {
		l.Error("Speech synthesis engine error")
	}
	l.Error("Media fetch timed out")
	l.Warn("Media fetch timed out")
	l.Info("Speech started")
	for i := 0; i < 5; i++ {
		l.Error(fmt.Sprintf("unique %d", i))
	}

	p := l.AnalyzePatterns()
	if p.ByCategory[CategorySpeechSynthesis] != 3 || p.ByCategory[CategoryTimeout] != 2 || p.ByCategory[CategoryUnknown] != 5 {
		t.Errorf("ByCategory = %v", p.ByCategory)
	}
	if _, ok := p.ByMessage["Speech started"]; ok {
		t.Error("info records should not be aggregated")
	}
	if len(p.MostCommon) != 5 {
		t.Fatalf("MostCommon has %d entries, want 5", len(p.MostCommon))
	}
	if p.MostCommon[0] != (MessageCount{"Speech synthesis engine error", 3}) {
		t.Errorf("MostCommon[0] = %+v", p.MostCommon[0])
	}
	if p.MostCommon[1] != (MessageCount{"Media fetch timed out", 2}) {
		t.Errorf("MostCommon[1] = %+v", p.MostCommon[1])
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := quietLog(50)
	src.Info("Speech started", "word", "apple")
	src.Warn("Falling back", "reason", "SynthesisEngineError")
	src.Error("Media playback error", "key", "cat")

	data, err := src.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	dst := quietLog(50)
	dst.Info("stale record")
	if err := dst.Import(data); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if src.Stats() != dst.Stats() {
		t.Errorf("stats differ after round trip: %+v vs %+v", src.Stats(), dst.Stats())
	}
	a, b := src.Records(), dst.Records()
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Message != b[i].Message || !a[i].Timestamp.Equal(b[i].Timestamp) {
			t.Errorf("record %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestImportRejectsBadInput(t *testing.T) {
	tests := map[string]string{
		"not json":      "{",
		"wrong version": `{"version": 9, "records": []}`,
		"bad level":     `{"version": 1, "records": [{"id": "x", "level": "fatal", "message": "m"}]}`,
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			l := quietLog(5)
			l.Info("kept")
			if err := l.Import(input); !errors.Is(err, ErrInvalidExport) {
				t.Errorf("Import error = %v, want ErrInvalidExport", err)
			}
			if l.Len() != 1 {
				t.Error("failed import must leave the log unchanged")
			}
		})
	}
}

func TestImportKeepsNewestWhenOverCapacity(t *testing.T) {
	big := quietLog(10)
	for i := 0; i < 10; i++ {
		big.Info(fmt.Sprintf("r%d", i))
	}
	data, _ := big.Export()

	small := quietLog(4)
	if err := small.Import(data); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	records := small.Records()
	if len(records) != 4 || records[0].Message != "r6" || records[3].Message != "r9" {
		t.Errorf("records = %v", records)
	}

	small.Clear()
	if small.Len() != 0 {
		t.Error("Clear should drop all records")
	}
}
