package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

func TestClipRelease(t *testing.T) {
	clip := NewClip("cat", make([]byte, SampleRate*BytesPerSample)) // one second

	if clip.Duration() != time.Second {
		t.Errorf("Duration() = %v, want 1s", clip.Duration())
	}
	if clip.SizeEstimate() != SampleRate*BytesPerSample {
		t.Errorf("SizeEstimate() = %d", clip.SizeEstimate())
	}

	clip.Release()
	clip.Release()

	if _, err := clip.PCM(); !errors.Is(err, ErrReleased) {
		t.Errorf("PCM() after release error = %v, want ErrReleased", err)
	}
	select {
	case <-clip.Released():
	default:
		t.Error("Released() should be closed")
	}
	if clip.SizeEstimate() == 0 {
		t.Error("size estimate is kept for accounting after release")
	}
}

func TestTone(t *testing.T) {
	clip, err := Tone("chime", Note{Frequency: 880, Duration: 100 * time.Millisecond, Gain: 0.5}, Note{Frequency: 1320, Duration: 50 * time.Millisecond, Gain: 0.5})
	if err != nil {
		t.Fatalf("Tone failed: %v", err)
	}
	if got, want := clip.Duration(), 150*time.Millisecond; got < want-time.Millisecond || got > want+time.Millisecond {
		t.Errorf("Duration() = %v, want ~%v", got, want)
	}

	pcm, _ := clip.PCM()
	silent := true
	for _, b := range pcm {
		if b != 0 {
			silent = false
			break
		}
	}
	if silent {
		t.Error("tone should not be silent")
	}

	if _, err := Tone("empty"); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("Tone() with no notes error = %v, want ErrEmptyAudio", err)
	}
}

func TestSilence(t *testing.T) {
	clip, err := Silence("warmup", 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Silence failed: %v", err)
	}
	pcm, _ := clip.PCM()
	if len(pcm) == 0 {
		t.Fatal("silence should have samples")
	}
	for i, b := range pcm {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestDecodeWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dog.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	format := beep.Format{SampleRate: 22050, NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, beep.Silence(11025), format); err != nil {
		t.Fatalf("wav.Encode failed: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	clip, err := Decode("dog", data, FormatOf(path))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if d := clip.Duration(); d < 450*time.Millisecond || d > 550*time.Millisecond {
		t.Errorf("Duration() = %v, want about 500ms after resampling", d)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		format string
		want   error
	}{
		{"ogg is unsupported", "ogg", ErrUnsupportedFormat},
		{"garbage wav", "wav", nil},
		{"garbage mp3", "mp3", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("junk", []byte("definitely not audio"), tt.format)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFormatOf(t *testing.T) {
	tests := map[string]string{
		"words/apple.mp3":                 "mp3",
		"https://cdn.example/cat.MP3?v=2": "mp3",
		"letters/a.wav":                   "wav",
		"noext":                           "",
	}
	for key, want := range tests {
		if got := FormatOf(key); got != want {
			t.Errorf("FormatOf(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestMockOutput(t *testing.T) {
	clip := NewClip("apple", make([]byte, 4410))

	t.Run("records plays", func(t *testing.T) {
		var seen string
		out := NewMockOutput(MockCallbacks{OnPlay: func(c *Clip) { seen = c.Name }})
		if err := out.Play(context.Background(), clip); err != nil {
			t.Fatalf("Play failed: %v", err)
		}
		if seen != "apple" || len(out.Played()) != 1 || out.Metrics().PlayCount != 1 {
			t.Errorf("play not recorded: seen=%q played=%v", seen, out.Played())
		}
	})

	t.Run("stop interrupts a hanging play", func(t *testing.T) {
		out := NewMockOutput(MockCallbacks{})
		out.SetHang(true)

		errCh := make(chan error, 1)
		go func() { errCh <- out.Play(context.Background(), clip) }()

		time.Sleep(10 * time.Millisecond)
		out.Stop()
		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Play error = %v, want context.Canceled", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Play did not return after Stop")
		}
	})

	t.Run("context deadline", func(t *testing.T) {
		out := NewMockOutput(MockCallbacks{})
		out.SetHang(true)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := out.Play(ctx, clip); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Play error = %v, want DeadlineExceeded", err)
		}
	})

	t.Run("injected error", func(t *testing.T) {
		out := NewMockOutput(MockCallbacks{})
		boom := errors.New("device busy")
		out.SetError(boom)
		if err := out.Play(context.Background(), clip); !errors.Is(err, boom) {
			t.Errorf("Play error = %v, want %v", err, boom)
		}
	})

	t.Run("released clip", func(t *testing.T) {
		out := NewMockOutput(MockCallbacks{})
		gone := NewClip("gone", make([]byte, 10))
		gone.Release()
		if err := out.Play(context.Background(), gone); !errors.Is(err, ErrReleased) {
			t.Errorf("Play error = %v, want ErrReleased", err)
		}
	})

	t.Run("suspend and resume", func(t *testing.T) {
		out := NewMockOutput(MockCallbacks{})
		out.Suspend()
		if !out.Suspended() {
			t.Fatal("should be suspended")
		}
		out.Resume(context.Background())
		if out.Suspended() || out.Metrics().ResumeCount != 1 {
			t.Error("resume should clear the suspended state")
		}
	})
}
