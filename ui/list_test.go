package ui

import (
	"strings"
	"testing"

	"github.com/wordsprout/wordsprout/internal/content"
	"github.com/wordsprout/wordsprout/playback"
)

func testEntries() []content.Entry {
	return []content.Entry{
		{Text: "apple", Category: "fruit", Asset: "apple.mp3"},
		{Text: "grape", Category: "fruit"},
		{Text: "zebra", Category: "animals"},
		{Text: "苹果", Category: "fruit"},
	}
}

func TestWordListFilter(t *testing.T) {
	tests := []struct {
		pattern string
		want    []string
	}{
		{"", []string{"apple", "grape", "zebra", "苹果"}},
		{"zb", []string{"zebra"}},
		{"  ", []string{"apple", "grape", "zebra", "苹果"}},
		{"xyz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			l := newWordList(testEntries())
			l.applyFilter(tt.pattern)
			var got []string
			for _, it := range l.items {
				got = append(got, it.entry.Text)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("applyFilter(%q) = %v, want %v", tt.pattern, got, tt.want)
			}
		})
	}
}

func TestWordListScroll(t *testing.T) {
	l := newWordList(testEntries())
	l.setHeight(2)

	l.moveDown()
	l.moveDown()
	if l.cursor != 2 || l.offset != 1 {
		t.Errorf("cursor=%d offset=%d, want 2 and 1", l.cursor, l.offset)
	}

	for range 10 {
		l.moveDown()
	}
	if l.cursor != 3 {
		t.Errorf("cursor ran past the end: %d", l.cursor)
	}

	for range 10 {
		l.moveUp()
	}
	if l.cursor != 0 || l.offset != 0 {
		t.Errorf("cursor=%d offset=%d, want 0", l.cursor, l.offset)
	}

	if got := strings.Count(l.view(false), "\n") + 1; got != 2 {
		t.Errorf("view shows %d rows, want 2", got)
	}
}

func TestWordListView(t *testing.T) {
	l := newWordList(testEntries())
	if l.textColumn() != 5 {
		t.Errorf("textColumn() = %d, want 5", l.textColumn())
	}

	view := l.view(true)
	for _, want := range []string{"apple", "zebra", "苹果", "animals", "♪"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	l.applyFilter("qqq")
	if !strings.Contains(l.view(true), "No words match") {
		t.Error("empty filter result should say so")
	}
}

func TestDescribeOutcome(t *testing.T) {
	tests := []struct {
		outcome playback.Outcome
		want    string
	}{
		{playback.Outcome{Kind: playback.Completed, Strategy: playback.StrategySpeech, Text: "dog"}, `Said "dog"`},
		{playback.Outcome{Kind: playback.Completed, Strategy: playback.StrategyMedia, Text: "dog"}, `Played recording of "dog"`},
		{playback.Outcome{Kind: playback.DegradedToText, Text: "dog"}, `Showing "dog" (no audio)`},
		{playback.Outcome{Kind: playback.Failed, Reason: playback.ReasonSoundDisabled}, "Sound is off"},
		{playback.Outcome{Kind: playback.Started}, "Playing…"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := describeOutcome(tt.outcome); got != tt.want {
				t.Errorf("describeOutcome() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAttemptTrail(t *testing.T) {
	out := playback.Outcome{Attempts: []playback.Attempt{
		{Strategy: playback.StrategySpeech, Err: playback.ErrSynthesisFailed},
		{Strategy: playback.StrategyText},
	}}
	if got := attemptTrail(out); got != "speech ✗ → text" {
		t.Errorf("attemptTrail() = %q", got)
	}
}
