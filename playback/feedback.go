package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/wordsprout/wordsprout/internal/audio"
)

// Feedback is a short UI sound.
type Feedback int

const (
	FeedbackTap Feedback = iota
	FeedbackCorrect
	FeedbackWrong
)

// String returns the string representation of the feedback sound.
func (f Feedback) String() string {
	switch f {
	case FeedbackTap:
		return "tap"
	case FeedbackCorrect:
		return "correct"
	case FeedbackWrong:
		return "wrong"
	default:
		return "unknown"
	}
}

var feedbackNotes = map[Feedback][]audio.Note{
	FeedbackTap: {
		{Frequency: 880, Duration: 30 * time.Millisecond, Gain: 0.2},
	},
	// C5 E5 G5
	FeedbackCorrect: {
		{Frequency: 523.25, Duration: 90 * time.Millisecond, Gain: 0.3},
		{Frequency: 659.25, Duration: 90 * time.Millisecond, Gain: 0.3},
		{Frequency: 783.99, Duration: 160 * time.Millisecond, Gain: 0.3},
	},
	FeedbackWrong: {
		{Frequency: 220, Duration: 150 * time.Millisecond, Gain: 0.3},
		{Duration: 40 * time.Millisecond},
		{Frequency: 196, Duration: 220 * time.Millisecond, Gain: 0.3},
	},
}

// FeedbackClip synthesizes the clip for a feedback sound.
func FeedbackClip(f Feedback) (*audio.Clip, error) {
	notes, ok := feedbackNotes[f]
	if !ok {
		return nil, fmt.Errorf("unknown feedback sound %d", f)
	}
	return audio.Tone("feedback-"+f.String(), notes...)
}

// playFeedback plays f through player and releases the clip afterwards.
func playFeedback(ctx context.Context, player Player, f Feedback) error {
	clip, err := FeedbackClip(f)
	if err != nil {
		return err
	}
	defer clip.Release()
	return player.Play(ctx, clip)
}
