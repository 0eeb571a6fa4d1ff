package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wordsprout/wordsprout/internal/cache"
	"github.com/wordsprout/wordsprout/internal/capability"
	"github.com/wordsprout/wordsprout/internal/content"
	"github.com/wordsprout/wordsprout/internal/diagnostics"
	"github.com/wordsprout/wordsprout/internal/gesture"
	"github.com/wordsprout/wordsprout/playback"
)

const testCatalog = `
words:
  - text: apple
    asset: fruit/apple.mp3
    category: fruit
  - text: banana
    category: fruit
  - text: cat
    asset: animals/cat.mp3
    category: animals
  - text: 苹果
    language: zh
    category: fruit
`

type fakeService struct {
	locked   bool
	sound    bool
	events   []gesture.EventKind
	requests []playback.Request
	feedback []playback.Feedback
	outcome  playback.Outcome
	stops    int
}

func (f *fakeService) Pronounce(_ context.Context, req playback.Request) playback.Outcome {
	f.requests = append(f.requests, req)
	out := f.outcome
	out.Text = req.Text
	return out
}

func (f *fakeService) Stop() { f.stops++ }

func (f *fakeService) ObserveInput(ev gesture.Event) bool {
	f.events = append(f.events, ev.Kind)
	if f.locked {
		f.locked = false
		return true
	}
	return false
}

func (f *fakeService) CanPlay() bool { return !f.locked }
func (f *fakeService) Prompt() string { return "Tap anywhere to turn on sound" }

func (f *fakeService) Feedback(_ context.Context, fb playback.Feedback) error {
	f.feedback = append(f.feedback, fb)
	return nil
}

func (f *fakeService) SetSoundEnabled(enabled bool) { f.sound = enabled }
func (f *fakeService) SoundEnabled() bool { return f.sound }

func (f *fakeService) Profile() capability.Profile {
	return capability.Profile{PlatformID: capability.PlatformLinux, DeviceClass: capability.DeviceDesktop}
}

func (f *fakeService) CacheStats() cache.Stats { return cache.Stats{MaxSize: 50} }
func (f *fakeService) LogStats() diagnostics.Stats { return diagnostics.Stats{} }

func newTestModel(t *testing.T, svc *fakeService, cfg Config) model {
	t.Helper()
	catalog, err := content.Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	m := newModel(cfg, svc, catalog)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(model)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m model, keys ...string) model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(model)
	}
	return m
}

func TestKeyPressUnlocksGate(t *testing.T) {
	svc := &fakeService{locked: true, sound: true}
	m := newTestModel(t, svc, Config{})

	if !strings.Contains(m.View(), svc.Prompt()) {
		t.Error("locked gate prompt should be shown in the status bar")
	}

	m = press(t, m, "j")
	if len(svc.events) != 1 || svc.events[0] != gesture.EventKeyDown {
		t.Fatalf("events = %v, want [keydown]", svc.events)
	}
	if m.statusMessage != "Sound is on" {
		t.Errorf("status message = %q", m.statusMessage)
	}
	if m.list.cursor != 1 {
		t.Errorf("cursor = %d, the key should still move the list", m.list.cursor)
	}
}

func TestMousePressIsGesture(t *testing.T) {
	svc := &fakeService{locked: true, sound: true}
	m := newTestModel(t, svc, Config{EnableMouse: true})

	next, _ := m.Update(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	m = next.(model)
	if len(svc.events) != 1 || svc.events[0] != gesture.EventPointerDown {
		t.Errorf("events = %v, want [pointerdown]", svc.events)
	}

	next, _ = m.Update(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})
	m = next.(model)
	if len(svc.events) != 1 {
		t.Error("scrolling is not a gesture")
	}
	if m.list.cursor != 1 {
		t.Errorf("cursor = %d, want 1 after wheel down", m.list.cursor)
	}
}

func TestPronounceDegradedText(t *testing.T) {
	svc := &fakeService{
		sound:   true,
		outcome: playback.Outcome{Kind: playback.DegradedToText, Reason: playback.ReasonNone, DisplayFor: 0},
	}
	m := newTestModel(t, svc, Config{})

	m = press(t, m, "down", "down", "enter")
	if !m.pronouncing || m.current != "cat" || m.seq != 1 {
		t.Fatalf("model not pronouncing cat: pronouncing=%v current=%q seq=%d", m.pronouncing, m.current, m.seq)
	}

	entry, _ := m.list.selected()
	msg := pronounceCmd(svc, entry, m.seq)()
	if len(svc.requests) != 1 || svc.requests[0].FallbackAssetKey != "animals/cat.mp3" {
		t.Fatalf("requests = %+v", svc.requests)
	}

	next, _ := m.Update(msg)
	m = next.(model)
	if m.pronouncing || m.display != "cat" {
		t.Fatalf("display = %q, pronouncing = %v", m.display, m.pronouncing)
	}
	if !strings.Contains(m.View(), "cat") {
		t.Error("degraded text should be rendered")
	}

	next, _ = m.Update(clearDisplayMsg{seq: m.seq})
	m = next.(model)
	if m.display != "" {
		t.Errorf("display = %q after clear", m.display)
	}
}

func TestStaleOutcomeIgnored(t *testing.T) {
	svc := &fakeService{sound: true}
	m := newTestModel(t, svc, Config{})
	m = press(t, m, "enter", "enter")

	next, _ := m.Update(pronouncedMsg{seq: 1, outcome: playback.Outcome{Kind: playback.Completed, Text: "apple"}})
	m = next.(model)
	if !m.pronouncing || m.last != nil {
		t.Error("reply for a replaced request must be dropped")
	}
}

func TestGestureFailureShowsPrompt(t *testing.T) {
	svc := &fakeService{sound: true}
	m := newTestModel(t, svc, Config{})
	m = press(t, m, "enter")

	next, _ := m.Update(pronouncedMsg{seq: m.seq, outcome: playback.Outcome{
		Kind: playback.Failed, Reason: playback.ReasonGestureRequired, Prompt: "Tap to hear words",
	}})
	m = next.(model)
	if m.statusMessage != "Tap to hear words" {
		t.Errorf("status message = %q", m.statusMessage)
	}
}

func TestFilter(t *testing.T) {
	svc := &fakeService{sound: true}
	m := newTestModel(t, svc, Config{})

	m = press(t, m, "/", "b", "n")
	if m.state != stateFilter {
		t.Fatalf("state = %s, want filtering", m.state)
	}
	if m.list.Len() != 1 {
		t.Fatalf("filtered list has %d items, want 1", m.list.Len())
	}
	if e, _ := m.list.selected(); e.Text != "banana" {
		t.Errorf("selected = %q, want banana", e.Text)
	}
	if len(svc.events) != 3 {
		t.Errorf("every key is observed, got %d events", len(svc.events))
	}

	m = press(t, m, "enter")
	if m.state != stateBrowse || !m.pronouncing {
		t.Errorf("enter on a single match should pronounce it (state %s)", m.state)
	}

	m = press(t, m, "esc")
	if m.list.Len() != 4 {
		t.Errorf("esc should clear the filter, have %d items", m.list.Len())
	}
}

func TestSoundToggleAndQuit(t *testing.T) {
	svc := &fakeService{sound: true}
	m := newTestModel(t, svc, Config{})

	m = press(t, m, "m")
	if svc.sound {
		t.Error("m should turn sound off")
	}
	if !strings.Contains(m.View(), "sound off") {
		t.Error("header should show sound off")
	}

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should return tea.Quit")
	}
	if svc.stops != 1 {
		t.Errorf("stops = %d, quitting should stop playback", svc.stops)
	}
}

func TestCategoryConfig(t *testing.T) {
	svc := &fakeService{sound: true}
	m := newTestModel(t, svc, Config{Category: "animals"})
	if m.list.Len() != 1 {
		t.Errorf("category list has %d items, want 1", m.list.Len())
	}

	m = newTestModel(t, svc, Config{Category: "planets"})
	if m.fatalErr == nil {
		t.Error("an empty category should be an error")
	}
	if !strings.Contains(m.View(), "ERROR") {
		t.Error("error view not rendered")
	}
}
