package speech

import (
	"context"
	"sync"
	"time"

	"github.com/wordsprout/wordsprout/internal/audio"
)

// MockEngine is an Engine for tests. It returns a short tone per utterance.
type MockEngine struct {
	mu         sync.Mutex
	delay      time.Duration
	hang       bool
	failWith   error
	utterances []Utterance
}

// NewMockEngine creates a mock engine that succeeds immediately.
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

// SetError makes Synthesize fail with err. Nil clears it.
func (m *MockEngine) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// SetDelay simulates synthesis latency.
func (m *MockEngine) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetHang makes Synthesize block until ctx is done.
func (m *MockEngine) SetHang(hang bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hang = hang
}

// Utterances returns every utterance received.
func (m *MockEngine) Utterances() []Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Utterance(nil), m.utterances...)
}

// Synthesize implements Engine.
func (m *MockEngine) Synthesize(ctx context.Context, u Utterance) (*audio.Clip, error) {
	if err := validateText(u.Text, 0); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.utterances = append(m.utterances, u)
	delay, hang, failWith := m.delay, m.hang, m.failWith
	m.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failWith != nil {
		return nil, failWith
	}
	return audio.Tone(u.Text, audio.Note{Frequency: 440, Duration: 50 * time.Millisecond, Gain: 0.3})
}

// Info implements Engine.
func (m *MockEngine) Info() EngineInfo { return EngineInfo{Name: "mock"} }

// Validate implements Engine.
func (m *MockEngine) Validate() error { return nil }

// Close implements Engine.
func (m *MockEngine) Close() error { return nil }
