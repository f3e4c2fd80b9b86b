package drill

import (
	"context"

	"github.com/dgnsrekt/echodrill/internal/audio"
)

// Asset is a clip handle produced by a Preloader.
type Asset interface {
	Ref() string
	Ready() bool
}

// Preloader buffers clips ahead of playback. Every session gets its own.
type Preloader interface {
	// Preload returns the shared asset for ref, fetching it if needed.
	Preload(ctx context.Context, ref string) (Asset, error)

	// Load fetches ref once more, bypassing anything already preloaded.
	Load(ctx context.Context, ref string) (Asset, error)

	// Release gives up one hold on a.
	Release(a Asset)

	// Close releases everything the preloader still holds.
	Close()
}

// Player plays one asset at a time.
type Player interface {
	PlayToEnd(ctx context.Context, a Asset) error
	Cancel()
}

// Media creates the per-session audio objects.
type Media interface {
	NewPreloader() Preloader
	NewPlayer() Player
}

// Speaker says a short phrase. Implementations that can be interrupted also
// implement Cancel.
type Speaker interface {
	Speak(ctx context.Context, text, locale string) error
}

// AudioMedia adapts an audio.Backend to Media.
type AudioMedia struct {
	Backend *audio.Backend
}

func (m AudioMedia) NewPreloader() Preloader {
	return audioPreloader{m.Backend.NewPreloader()}
}

func (m AudioMedia) NewPlayer() Player {
	return audioPlayer{m.Backend.NewController()}
}

type audioPreloader struct {
	p *audio.Preloader
}

func (a audioPreloader) Preload(ctx context.Context, ref string) (Asset, error) {
	asset, err := a.p.Preload(ctx, ref)
	if err != nil {
		return nil, err
	}
	return asset, nil
}

func (a audioPreloader) Load(ctx context.Context, ref string) (Asset, error) {
	asset, err := a.p.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return asset, nil
}

func (a audioPreloader) Release(asset Asset) {
	if aa, ok := asset.(*audio.Asset); ok {
		a.p.Release(aa)
	}
}

func (a audioPreloader) Close() {
	a.p.Close()
}

type audioPlayer struct {
	c *audio.Controller
}

func (a audioPlayer) PlayToEnd(ctx context.Context, asset Asset) error {
	aa, ok := asset.(*audio.Asset)
	if !ok || aa == nil {
		return audio.ErrNotReady
	}
	return a.c.PlayToEnd(ctx, aa)
}

func (a audioPlayer) Cancel() {
	a.c.Cancel()
}

var (
	_ Media  = AudioMedia{}
	_ Asset  = (*audio.Asset)(nil)
	_ Player = audioPlayer{}
)
