package audio

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/echodrill/internal/cache"
)

// BackendConfig configures a Backend.
type BackendConfig struct {
	PreloadTimeout   time.Duration
	MinPlayableBytes int
	Fetcher          *Fetcher
	Cache            *cache.Clips
	PollInterval     time.Duration
	Logger           *log.Logger
}

// Backend is the process-wide audio state: the sound output and the clip
// cache. Sessions get their own Preloader and Controller from it and never
// share live assets.
type Backend struct {
	sink Sink
	cfg  BackendConfig
}

// NewBackend creates a Backend playing on sink.
func NewBackend(sink Sink, cfg BackendConfig) *Backend {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = &Fetcher{}
	}
	return &Backend{sink: sink, cfg: cfg}
}

// NewPreloader returns an empty Preloader sharing the backend's cache.
func (b *Backend) NewPreloader() *Preloader {
	return NewPreloader(PreloaderConfig{
		Timeout:          b.cfg.PreloadTimeout,
		MinPlayableBytes: b.cfg.MinPlayableBytes,
		Fetcher:          b.cfg.Fetcher,
		Cache:            b.cfg.Cache,
		Logger:           b.cfg.Logger,
	})
}

// NewController returns a Controller on the backend's sink.
func (b *Backend) NewController() *Controller {
	return NewController(b.sink, WithPollInterval(b.cfg.PollInterval), WithLogger(b.cfg.Logger))
}

// Sink returns the backend's sound output.
func (b *Backend) Sink() Sink {
	return b.sink
}
