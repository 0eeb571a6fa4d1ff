package speech

import (
	"context"
	"fmt"
	"math"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/wordsprout/wordsprout/internal/audio"
)

const (
	googleMaxText          = 4800 // a little under the 5000 byte API limit
	defaultValidateTimeout = 5 * time.Second
)

// cloudSynthesizer is the part of the Cloud TTS client we use.
type cloudSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

// clientAdapter drops the variadic call options of the generated client.
type clientAdapter struct{ c *texttospeech.Client }

func (a clientAdapter) SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	return a.c.SynthesizeSpeech(ctx, req)
}

func (a clientAdapter) Close() error { return a.c.Close() }

// GoogleConfig configures the Cloud TTS engine.
type GoogleConfig struct {
	// Voices maps languages to voice names. Empty lets the API choose.
	Voices map[Language]string

	// RequestsPerMinute limits API calls (defaults to 60).
	RequestsPerMinute int
}

// GoogleEngine synthesizes speech with Google Cloud Text-to-Speech.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS.
type GoogleEngine struct {
	client  cloudSynthesizer
	voices  map[Language]string
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewGoogleEngine creates a Cloud TTS client.
func NewGoogleEngine(ctx context.Context, cfg GoogleConfig, logger *log.Logger) (*GoogleEngine, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}
	return newGoogleEngine(clientAdapter{client}, cfg, logger), nil
}

func newGoogleEngine(client cloudSynthesizer, cfg GoogleConfig, logger *log.Logger) *GoogleEngine {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if logger == nil {
		logger = log.Default().WithPrefix("google")
	}
	return &GoogleEngine{
		client:  client,
		voices:  cfg.Voices,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		logger:  logger,
	}
}

// Request builds the API request for an utterance.
func (g *GoogleEngine) Request(u Utterance) *texttospeechpb.SynthesizeSpeechRequest {
	p := normalize(u.Prosody)
	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: u.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: u.Language.Tag().String(),
			Name:         g.voices[u.Language],
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			SpeakingRate:  math.Max(0.25, math.Min(4, p.Rate)),
			Pitch:         math.Max(-20, math.Min(20, (p.Pitch-1)*20)), // semitones
			VolumeGainDb:  math.Max(-96, math.Min(16, 20*math.Log10(p.Volume))),
		},
	}
}

// Synthesize implements Engine.
func (g *GoogleEngine) Synthesize(ctx context.Context, u Utterance) (*audio.Clip, error) {
	if err := validateText(u.Text, googleMaxText); err != nil {
		return nil, err
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	resp, err := g.client.SynthesizeSpeech(ctx, g.Request(u))
	if err != nil {
		return nil, fmt.Errorf("cloud synthesis failed: %w", err)
	}
	if len(resp.GetAudioContent()) == 0 {
		return nil, fmt.Errorf("cloud synthesis returned no audio")
	}

	clip, err := audio.Decode(u.Text, resp.GetAudioContent(), "mp3")
	if err != nil {
		return nil, err
	}
	g.logger.Debug("Synthesized", "text", u.Text, "locale", u.Language.Tag(), "bytes", len(resp.GetAudioContent()))
	return clip, nil
}

// Info implements Engine.
func (g *GoogleEngine) Info() EngineInfo {
	return EngineInfo{Name: "google", MaxTextSize: googleMaxText, IsOnline: true}
}

// Validate implements Engine. Credentials are checked on first use.
func (g *GoogleEngine) Validate() error {
	if g.client == nil {
		return ErrEngineNotFound
	}
	return nil
}

// Close implements Engine.
func (g *GoogleEngine) Close() error {
	return g.client.Close()
}
