package audio

import (
	"fmt"
	"math"
	"time"

	"github.com/faiface/beep"
)

// Note is one tone in a sequence.
type Note struct {
	Frequency float64       // Hz; 0 is silence
	Duration  time.Duration
	Gain      float64 // 0..1
}

// sine is a beep.Streamer producing a sine wave with short linear fades so
// notes start and stop without clicks.
type sine struct {
	freq   float64
	gain   float64
	pos    int
	frames int
	fade   int
}

func (s *sine) Stream(samples [][2]float64) (n int, ok bool) {
	if s.pos >= s.frames {
		return 0, false
	}
	for i := range samples {
		if s.pos >= s.frames {
			break
		}
		v := s.gain * math.Sin(2*math.Pi*s.freq*float64(s.pos)/SampleRate)
		if s.fade > 0 {
			v *= min(1, float64(s.pos)/float64(s.fade), float64(s.frames-s.pos)/float64(s.fade))
		}
		samples[i] = [2]float64{v, v}
		s.pos++
		n++
	}
	return n, true
}

func (s *sine) Err() error { return nil }

func noteStreamer(n Note) beep.Streamer {
	frames := int(n.Duration.Seconds() * SampleRate)
	if n.Frequency <= 0 || n.Gain <= 0 {
		return beep.Silence(frames)
	}
	return &sine{
		freq:   n.Frequency,
		gain:   clamp(n.Gain),
		frames: frames,
		fade:   min(frames/4, SampleRate/200), // up to 5ms
	}
}

// Tone synthesizes a sequence of notes into a clip.
func Tone(name string, notes ...Note) (*Clip, error) {
	if len(notes) == 0 {
		return nil, fmt.Errorf("tone %s: %w", name, ErrEmptyAudio)
	}

	streamers := make([]beep.Streamer, len(notes))
	var total time.Duration
	for i, n := range notes {
		streamers[i] = noteStreamer(n)
		total += n.Duration
	}

	pcm, err := render(beep.Seq(streamers...), min(total, MaxClipDuration))
	if err != nil {
		return nil, fmt.Errorf("tone %s: %w", name, err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("tone %s: %w", name, ErrEmptyAudio)
	}
	return NewClip(name, pcm), nil
}

// Silence returns a silent clip of the given length.
func Silence(name string, d time.Duration) (*Clip, error) {
	return Tone(name, Note{Duration: d})
}
