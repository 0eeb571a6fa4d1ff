// Package speech synthesizes spoken words into playable clips. Engines are
// the local espeak-ng binary and Google Cloud Text-to-Speech.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/wordsprout/wordsprout/internal/audio"
	"github.com/wordsprout/wordsprout/internal/capability"
)

// Language is a content language.
type Language string

const (
	English Language = "en"
	Chinese Language = "zh"
)

// ParseLanguage accepts "en", "zh" and BCP 47 tags such as "zh-CN".
func ParseLanguage(s string) (Language, error) {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", s, err)
	}
	base, _ := tag.Base()
	switch base.String() {
	case "en":
		return English, nil
	case "zh", "cmn":
		return Chinese, nil
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

var (
	ErrEmptyText      = errors.New("text cannot be empty")
	ErrTextTooLong    = errors.New("text too long")
	ErrEngineNotFound = errors.New("speech engine not available")
)

var (
	usEnglish       = language.MustParse("en-US")
	mainlandChinese = language.MustParse("zh-CN")
	languageTags    = map[Language]language.Tag{English: usEnglish, Chinese: mainlandChinese}
)

// Tag returns the locale used to voice l: en-US for English, zh-CN for
// Chinese. Unknown languages fall back to en-US.
func (l Language) Tag() language.Tag {
	if t, ok := languageTags[l]; ok {
		return t
	}
	return usEnglish
}

// Prosody controls how an utterance is voiced. 1.0 is the engine default
// for each field.
type Prosody struct {
	Rate   float64
	Pitch  float64
	Volume float64
}

// Utterance is one phrase to synthesize.
type Utterance struct {
	Text     string
	Language Language
	Prosody  Prosody
}

// chineseRate slows Chinese further; tones are hard to hear at full speed.
const chineseRate = 0.9

// TuneFor returns voice settings for a device and language. Handheld and
// embedded devices speak more slowly and a little higher for young ears.
func TuneFor(p capability.Profile, lang Language) Prosody {
	var pr Prosody
	switch {
	case p.IsEmbedded():
		pr = Prosody{Rate: 0.8, Pitch: 1.1, Volume: 1.0}
	case p.IsHandheld():
		pr = Prosody{Rate: 0.85, Pitch: 1.1, Volume: 1.0}
	default:
		pr = Prosody{Rate: 1.0, Pitch: 1.0, Volume: 0.9}
	}
	if lang == Chinese {
		pr.Rate *= chineseRate
	}
	return pr
}

// EngineInfo describes an engine.
type EngineInfo struct {
	Name        string
	MaxTextSize int
	IsOnline    bool
}

// Engine converts an utterance into a clip.
type Engine interface {
	// Synthesize returns the spoken utterance. It must honour ctx.
	Synthesize(ctx context.Context, u Utterance) (*audio.Clip, error)

	// Info returns engine capabilities.
	Info() EngineInfo

	// Validate checks the engine can run (binary present, credentials set).
	Validate() error

	// Close releases engine resources.
	Close() error
}

func validateText(text string, max int) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if max > 0 && len(text) > max {
		return fmt.Errorf("%w: %d characters (max %d)", ErrTextTooLong, len(text), max)
	}
	return nil
}
