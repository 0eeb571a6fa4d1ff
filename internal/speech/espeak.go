package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/wordsprout/wordsprout/internal/audio"
)

// espeak defaults: 175 words per minute, pitch 50 of 0-99, amplitude 100 of 0-200.
const (
	espeakWPM       = 175
	espeakPitch     = 50
	espeakAmplitude = 100
	espeakMaxText   = 1000
)

// espeakVoices maps languages to espeak-ng voice names.
var espeakVoices = map[Language]string{
	English: "en-us",
	Chinese: "cmn",
}

// ESpeakConfig configures the espeak engine.
type ESpeakConfig struct {
	// Binary overrides the executable; by default espeak-ng then espeak
	// are looked up in PATH.
	Binary string

	// Runner and LookPath are replaced in tests.
	Runner   Runner
	LookPath func(string) (string, error)
}

// ESpeakEngine synthesizes speech with the local espeak-ng binary. Output
// is captured as WAV on stdout and played by the caller.
type ESpeakEngine struct {
	binary string
	run    Runner
	logger *log.Logger

	mu sync.Mutex // espeak-ng is not reentrant on some builds
}

// NewESpeakEngine locates the espeak binary.
func NewESpeakEngine(cfg ESpeakConfig, logger *log.Logger) (*ESpeakEngine, error) {
	if cfg.LookPath == nil {
		cfg.LookPath = exec.LookPath
	}
	if cfg.Runner == nil {
		cfg.Runner = execRunner
	}
	if logger == nil {
		logger = log.Default().WithPrefix("espeak")
	}

	candidates := []string{"espeak-ng", "espeak"}
	if cfg.Binary != "" {
		candidates = []string{cfg.Binary}
	}

	for _, c := range candidates {
		if path, err := cfg.LookPath(c); err == nil {
			logger.Debug("Found espeak", "path", path)
			return &ESpeakEngine{binary: path, run: cfg.Runner, logger: logger}, nil
		}
	}
	return nil, fmt.Errorf("%w: espeak-ng not found in PATH", ErrEngineNotFound)
}

// Args builds the espeak command line for an utterance.
func (e *ESpeakEngine) Args(u Utterance) []string {
	voice, ok := espeakVoices[u.Language]
	if !ok {
		voice = espeakVoices[English]
	}
	p := normalize(u.Prosody)
	return []string{
		"-v", voice,
		"-s", strconv.Itoa(int(espeakWPM * p.Rate)),
		"-p", strconv.Itoa(min(99, int(espeakPitch*p.Pitch))),
		"-a", strconv.Itoa(min(200, int(espeakAmplitude*p.Volume))),
		"--stdout",
		"--stdin",
	}
}

// Synthesize implements Engine.
func (e *ESpeakEngine) Synthesize(ctx context.Context, u Utterance) (*audio.Clip, error) {
	if err := validateText(u.Text, espeakMaxText); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	wav, err := e.run(ctx, u.Text, e.binary, e.Args(u)...)
	if err != nil {
		return nil, err
	}
	if len(wav) == 0 {
		return nil, fmt.Errorf("espeak produced no audio")
	}

	clip, err := audio.Decode(u.Text, wav, "wav")
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Synthesized", "text", u.Text, "duration", clip.Duration())
	return clip, nil
}

// Info implements Engine.
func (e *ESpeakEngine) Info() EngineInfo {
	return EngineInfo{Name: "espeak", MaxTextSize: espeakMaxText}
}

// Validate runs espeak --version.
func (e *ESpeakEngine) Validate() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultValidateTimeout)
	defer cancel()
	if _, err := e.run(ctx, "", e.binary, "--version"); err != nil {
		return fmt.Errorf("espeak test failed: %w", err)
	}
	return nil
}

// Close implements Engine.
func (e *ESpeakEngine) Close() error { return nil }

// normalize fills zero prosody fields with defaults.
func normalize(p Prosody) Prosody {
	if p.Rate <= 0 {
		p.Rate = 1
	}
	if p.Pitch <= 0 {
		p.Pitch = 1
	}
	if p.Volume <= 0 {
		p.Volume = 1
	}
	return p
}
