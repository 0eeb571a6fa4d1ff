package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MockOutput simulates the audio device without producing sound. It has
// the same method set as Output.
type MockOutput struct {
	mu sync.Mutex

	volume      float64
	delayFactor float64 // scales simulated clip length; 0 returns at once
	hang        bool    // Play blocks until stopped or cancelled
	failWith    error
	closed      bool
	suspended   bool
	stopCh      chan struct{}

	played []string

	callbacks MockCallbacks

	playCount   atomic.Int64
	stopCount   atomic.Int64
	resumeCount atomic.Int64
}

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnPlay   func(clip *Clip)
	OnStop   func()
	OnResume func()
}

// MockMetrics contains playback counters for testing.
type MockMetrics struct {
	PlayCount   int64
	StopCount   int64
	ResumeCount int64
}

// NewMockOutput creates a mock whose clips finish immediately.
func NewMockOutput(callbacks MockCallbacks) *MockOutput {
	return &MockOutput{volume: 1.0, callbacks: callbacks, stopCh: make(chan struct{})}
}

// SetDelayFactor makes Play block for the clip duration times factor.
func (m *MockOutput) SetDelayFactor(factor float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delayFactor = factor
}

// SetHang makes Play block until Stop, clip release or cancellation.
func (m *MockOutput) SetHang(hang bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hang = hang
}

// SetError makes every Play fail with err. Nil clears it.
func (m *MockOutput) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (m *MockOutput) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", v)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
	return nil
}

// Volume returns the current volume.
func (m *MockOutput) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Play simulates playing clip.
func (m *MockOutput) Play(ctx context.Context, clip *Clip) error {
	if _, err := clip.PCM(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("output is closed")
	}
	if m.failWith != nil {
		err := m.failWith
		m.mu.Unlock()
		return err
	}
	m.played = append(m.played, clip.Name)
	stopCh := m.stopCh
	hang := m.hang
	wait := time.Duration(float64(clip.Duration()) * m.delayFactor)
	m.mu.Unlock()

	m.playCount.Add(1)
	if m.callbacks.OnPlay != nil {
		m.callbacks.OnPlay(clip)
	}

	var done <-chan time.Time
	if !hang {
		if wait <= 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		done = timer.C
	}

	select {
	case <-done:
		return nil
	case <-stopCh:
		return context.Canceled
	case <-clip.Released():
		return ErrReleased
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop interrupts any Play in progress.
func (m *MockOutput) Stop() error {
	m.mu.Lock()
	close(m.stopCh)
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	m.stopCount.Add(1)
	if m.callbacks.OnStop != nil {
		m.callbacks.OnStop()
	}
	return nil
}

// Suspend marks the simulated device suspended.
func (m *MockOutput) Suspend() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = true
	return nil
}

// Resume clears the suspended flag.
func (m *MockOutput) Resume(context.Context) error {
	m.mu.Lock()
	m.suspended = false
	m.mu.Unlock()

	m.resumeCount.Add(1)
	if m.callbacks.OnResume != nil {
		m.callbacks.OnResume()
	}
	return nil
}

// Suspended reports whether Suspend was called without a later Resume.
func (m *MockOutput) Suspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}

// Close makes later Play calls fail.
func (m *MockOutput) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Played returns the names of clips played so far.
func (m *MockOutput) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.played...)
}

// Metrics returns playback counters.
func (m *MockOutput) Metrics() MockMetrics {
	return MockMetrics{
		PlayCount:   m.playCount.Load(),
		StopCount:   m.stopCount.Load(),
		ResumeCount: m.resumeCount.Load(),
	}
}
