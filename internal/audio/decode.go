package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// MaxClipDuration bounds decoding of a single asset. Pronunciations are a
// word or a short phrase.
const MaxClipDuration = 30 * time.Second

var (
	// ErrUnsupportedFormat is returned for asset formats we cannot decode.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrEmptyAudio is returned when decoding produced no samples.
	ErrEmptyAudio = errors.New("audio contains no samples")
)

// FormatOf guesses an asset's container from its key or URL.
func FormatOf(key string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(key), "."))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	return ext
}

// Decode decodes an mp3 or wav asset into a clip at the output sample rate.
func Decode(name string, data []byte, format string) (*Clip, error) {
	var (
		streamer beep.StreamSeekCloser
		f        beep.Format
		err      error
	)

	switch strings.ToLower(format) {
	case "mp3", "mpeg":
		streamer, f, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	case "wav", "wave":
		streamer, f, err = wav.Decode(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if f.SampleRate != SampleRate {
		s = beep.Resample(4, f.SampleRate, SampleRate, s)
	}

	pcm, err := render(s, MaxClipDuration)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("decode %s: %w", name, ErrEmptyAudio)
	}
	return NewClip(name, pcm), nil
}

// render drains s into mono 16-bit PCM, stopping at limit.
func render(s beep.Streamer, limit time.Duration) ([]byte, error) {
	maxFrames := int(limit.Seconds() * SampleRate)
	out := make([]byte, 0, 4096)
	buf := make([][2]float64, 512)

	frames := 0
	for frames < maxFrames {
		n, ok := s.Stream(buf[:min(len(buf), maxFrames-frames)])
		for _, sample := range buf[:n] {
			v := int16(clamp((sample[0]+sample[1])/2) * math.MaxInt16)
			out = append(out, byte(v), byte(v>>8))
		}
		frames += n
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func clamp(v float64) float64 {
	return max(-1, min(1, v))
}
