package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wordsprout/wordsprout/internal/audio"
	"github.com/wordsprout/wordsprout/internal/cache"
	"github.com/wordsprout/wordsprout/internal/capability"
	"github.com/wordsprout/wordsprout/internal/speech"
)

// strategy is one way of rendering a request.
type strategy interface {
	Kind() StrategyKind

	// Available reports whether the strategy can serve req at all.
	Available(req Request) bool

	// Execute renders req, calling started once output begins. It returns
	// Completed or DegradedToText on success.
	Execute(ctx context.Context, req Request, started func()) (OutcomeKind, error)
}

func hasText(req Request) bool {
	return strings.TrimSpace(req.Text) != ""
}

func languageOf(req Request) speech.Language {
	if req.Language == "" {
		return speech.English
	}
	return req.Language
}

// speechStrategy synthesizes the text and plays the result.
type speechStrategy struct {
	engine  speech.Engine
	player  Player
	profile capability.Profile
}

func (s *speechStrategy) Kind() StrategyKind { return StrategySpeech }

func (s *speechStrategy) Available(req Request) bool {
	return s.profile.HasSpeechSynth && s.engine != nil && s.player != nil && hasText(req)
}

func (s *speechStrategy) Execute(ctx context.Context, req Request, started func()) (OutcomeKind, error) {
	lang := languageOf(req)
	u := speech.Utterance{
		Text:     strings.TrimSpace(req.Text),
		Language: lang,
		Prosody:  speech.TuneFor(s.profile, lang),
	}

	clip, err := s.engine.Synthesize(ctx, u)
	if err != nil {
		return Failed, NewPlaybackError(fmt.Errorf("%w: %w", ErrSynthesisFailed, err), StrategySpeech, "synthesize").
			WithContext("engine", s.engine.Info().Name).
			WithContext("locale", lang.Tag().String())
	}
	defer clip.Release()

	started()
	if err := s.player.Play(ctx, clip); err != nil {
		return Failed, NewPlaybackError(fmt.Errorf("%w: %w", ErrSynthesisFailed, err), StrategySpeech, "play utterance")
	}
	return Completed, nil
}

// mediaStrategy plays a pre-recorded asset through the asset cache.
type mediaStrategy struct {
	assets  *cache.AssetCache
	fetch   cache.Fetcher
	player  Player
	profile capability.Profile
}

func (s *mediaStrategy) Kind() StrategyKind { return StrategyMedia }

func (s *mediaStrategy) Available(req Request) bool {
	return req.FallbackAssetKey != "" && s.profile.HasMediaPlayback &&
		s.assets != nil && s.fetch != nil && s.player != nil
}

func (s *mediaStrategy) Execute(ctx context.Context, req Request, started func()) (OutcomeKind, error) {
	key := req.FallbackAssetKey

	h, ok := s.assets.Get(key)
	if !ok {
		var err error
		h, err = s.assets.Preload(ctx, key, s.fetch, cache.PriorityHigh)
		if err != nil {
			if errors.Is(err, cache.ErrFetchTimeout) || errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %w", ErrMediaFetchTimeout, err)
			} else {
				err = fmt.Errorf("%w: %w", ErrMediaPlayback, err)
			}
			return Failed, NewPlaybackError(err, StrategyMedia, "fetch asset").WithContext("key", key)
		}
	}

	clip, ok := h.(*audio.Clip)
	if !ok || clip == nil {
		return Failed, NewPlaybackError(fmt.Errorf("%w: asset %q is not playable", ErrMediaPlayback, key), StrategyMedia, "resolve asset")
	}

	started()
	if err := s.player.Play(ctx, clip); err != nil {
		return Failed, NewPlaybackError(fmt.Errorf("%w: %w", ErrMediaPlayback, err), StrategyMedia, "play asset").WithContext("key", key)
	}
	return Completed, nil
}

// textStrategy shows the text instead of playing it. It never fails.
type textStrategy struct{}

func (s *textStrategy) Kind() StrategyKind { return StrategyText }

func (s *textStrategy) Available(req Request) bool { return hasText(req) }

func (s *textStrategy) Execute(_ context.Context, _ Request, started func()) (OutcomeKind, error) {
	started()
	return DegradedToText, nil
}
