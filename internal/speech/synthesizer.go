package speech

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/echodrill/internal/audio"
	"golang.org/x/text/language"
)

const (
	// DefaultFallbackDelay is how long Speak waits when it cannot speak.
	DefaultFallbackDelay = time.Second

	// DefaultRate is the speaking rate relative to normal speech.
	DefaultRate = 0.8
)

// Renderer turns text into a playable clip, typically WAV.
type Renderer interface {
	Render(ctx context.Context, text string, tag language.Tag, rate float64) ([]byte, error)
}

// Player plays one asset to its end. *audio.Controller satisfies it.
type Player interface {
	PlayToEnd(ctx context.Context, a *audio.Asset) error
}

// Config configures a Synthesizer.
type Config struct {
	// Renderer may be nil, in which case Speak only waits.
	Renderer Renderer

	// Player plays rendered speech. Required when Renderer is set.
	Player Player

	FallbackDelay time.Duration
	Rate          float64
	Logger        *log.Logger
}

// Synthesizer speaks short phrases with a local speech facility.
type Synthesizer struct {
	renderer Renderer
	player   Player
	delay    time.Duration
	rate     float64
	logger   *log.Logger
}

// New creates a Synthesizer.
func New(cfg Config) *Synthesizer {
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = DefaultFallbackDelay
	}
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Player == nil {
		cfg.Renderer = nil
	}
	return &Synthesizer{
		renderer: cfg.Renderer,
		player:   cfg.Player,
		delay:    cfg.FallbackDelay,
		rate:     cfg.Rate,
		logger:   cfg.Logger,
	}
}

// Speak says text in locale and returns when it has been spoken. If speech
// is unavailable or fails, it waits the fallback delay and returns nil.
// The only error it returns is the context's.
func (s *Synthesizer) Speak(ctx context.Context, text, locale string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.renderer == nil {
		return s.wait(ctx)
	}

	tag, err := language.Parse(locale)
	if err != nil {
		s.logger.Debug("Unknown speech locale, using default voice", "locale", locale, "err", err)
		tag = language.Und
	}

	wav, err := s.renderer.Render(ctx, text, tag, s.rate)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("Speech synthesis unavailable", "text", text, "err", err)
		return s.wait(ctx)
	}

	asset, err := audio.NewAssetFromBytes("speech:"+text, wav)
	if err != nil {
		s.logger.Warn("Synthesized speech is not playable", "err", err)
		return s.wait(ctx)
	}

	err = s.player.PlayToEnd(ctx, asset)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, audio.ErrCancelled):
		return err
	}
	s.logger.Warn("Synthesized speech failed to play", "err", err)
	return s.wait(ctx)
}

// Cancel stops speech that is currently playing. Speak then returns
// audio.ErrCancelled.
func (s *Synthesizer) Cancel() {
	if c, ok := s.player.(interface{ Cancel() }); ok {
		c.Cancel()
	}
}

func (s *Synthesizer) wait(ctx context.Context) error {
	t := time.NewTimer(s.delay)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
