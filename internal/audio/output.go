//go:build !nocgo && cgo
// +build !nocgo,cgo

package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

// sharedContext creates the process-wide oto context. oto allows only one.
func sharedContext(bufferSize time.Duration) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   SampleRate,
			ChannelCount: Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   bufferSize,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		select {
		case <-ready:
			otoCtx = ctx
		case <-time.After(5 * time.Second):
			otoErr = errors.New("audio device did not become ready")
		}
	})
	return otoCtx, otoErr
}

// Output plays clips on the system audio device. Only one clip plays at a
// time; starting another stops the current one.
type Output struct {
	ctx    *oto.Context
	volume float64

	mu      sync.Mutex
	current *oto.Player
	cancel  context.CancelFunc
	closed  bool

	logger *log.Logger
}

// NewOutput opens the system audio device.
func NewOutput(logger *log.Logger) (*Output, error) {
	if logger == nil {
		logger = log.Default().WithPrefix("audio")
	}
	ctx, err := sharedContext(100 * time.Millisecond)
	if err != nil {
		return nil, err
	}
	return &Output{ctx: ctx, volume: 1.0, logger: logger}, nil
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (o *Output) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", v)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = v
	if o.current != nil {
		o.current.SetVolume(v)
	}
	return nil
}

// Play plays clip and blocks until it finishes, ctx is done, Stop is
// called, or the clip is released.
func (o *Output) Play(ctx context.Context, clip *Clip) error {
	pcm, err := clip.PCM()
	if err != nil {
		return err
	}
	if err := o.ctx.Err(); err != nil {
		return fmt.Errorf("audio device error: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return errors.New("output is closed")
	}
	o.stopLocked()
	player := o.ctx.NewPlayer(bytes.NewReader(pcm))
	player.SetVolume(o.volume)
	o.current = player
	o.cancel = cancel
	o.mu.Unlock()

	defer o.finish(player)

	player.Play()
	o.logger.Debug("Playing clip", "clip", clip.Name, "duration", clip.Duration())

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clip.Released():
			return ErrReleased
		case <-ticker.C:
			if err := player.Err(); err != nil {
				return fmt.Errorf("playback failed: %w", err)
			}
			if !player.IsPlaying() {
				return nil
			}
		}
	}
}

// finish closes player if it is still the current one.
func (o *Output) finish(player *oto.Player) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == player {
		o.stopLocked()
	}
}

func (o *Output) stopLocked() {
	if o.current != nil {
		o.current.Pause()
		if err := o.current.Close(); err != nil {
			o.logger.Debug("Failed to close player", "error", err)
		}
		o.current = nil
	}
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// Stop stops the current clip. It is a no-op when nothing plays.
func (o *Output) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
	return nil
}

// Suspend pauses the device.
func (o *Output) Suspend() error {
	return o.ctx.Suspend()
}

// Resume resumes a suspended device.
func (o *Output) Resume(context.Context) error {
	return o.ctx.Resume()
}

// Close stops playback. The device itself lives for the process.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
	o.closed = true
	return nil
}
