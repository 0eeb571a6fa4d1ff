package audio

import (
	"errors"
	"sync"
	"time"
)

// Output format shared by decoding, tone synthesis and playback.
const (
	SampleRate     = 44100
	Channels       = 1
	BytesPerSample = 2 // signed 16-bit little endian
)

// ErrReleased is returned when playing a clip that has been released.
var ErrReleased = errors.New("clip released")

// Clip is decoded PCM audio ready for output. Releasing a clip stops any
// playback of it and drops its samples.
type Clip struct {
	Name string

	mu       sync.Mutex
	pcm      []byte
	size     int64
	duration time.Duration
	released chan struct{}
	once     sync.Once
}

// NewClip wraps signed 16-bit little endian mono PCM at SampleRate.
func NewClip(name string, pcm []byte) *Clip {
	frames := len(pcm) / (Channels * BytesPerSample)
	return &Clip{
		Name:     name,
		pcm:      pcm,
		size:     int64(len(pcm)),
		duration: time.Duration(frames) * time.Second / SampleRate,
		released: make(chan struct{}),
	}
}

// PCM returns the clip's samples, or ErrReleased.
func (c *Clip) PCM() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pcm == nil {
		return nil, ErrReleased
	}
	return c.pcm, nil
}

// Duration returns the playing time of the clip.
func (c *Clip) Duration() time.Duration { return c.duration }

// SizeEstimate returns the bytes of PCM held by the clip.
func (c *Clip) SizeEstimate() int64 { return c.size }

// Released is closed when the clip is released.
func (c *Clip) Released() <-chan struct{} { return c.released }

// Release stops playback of the clip and frees its samples. It is safe to
// call more than once.
func (c *Clip) Release() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.pcm = nil
		c.mu.Unlock()
		close(c.released)
	})
	return nil
}
