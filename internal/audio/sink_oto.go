//go:build !nocgo

package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process.
var (
	otoOnce sync.Once
	otoSink *OtoSink
	otoErr  error
)

// OtoSink plays PCM on the default sound device.
type OtoSink struct {
	ctx        *oto.Context
	sampleRate int
}

// NewOtoSink opens the sound device. Later calls return the same sink; the
// configuration of the first call wins.
func NewOtoSink(cfg SinkConfig) (*OtoSink, error) {
	otoOnce.Do(func() {
		otoSink, otoErr = openOto(cfg)
	})
	return otoSink, otoErr
}

func openOto(cfg SinkConfig) (*OtoSink, error) {
	cfg.setDefaults()
	if cfg.SampleRate != 44100 && cfg.SampleRate != 48000 {
		return nil, fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", cfg.SampleRate)
	}

	log.Debug("Opening audio output", "sample_rate", cfg.SampleRate, "buffer", cfg.BufferSize)

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   cfg.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoDevice, err)
	}

	select {
	case <-ready:
	case <-time.After(cfg.ReadyTimeout):
		return nil, fmt.Errorf("%w: device not ready after %v", ErrNoDevice, cfg.ReadyTimeout)
	}
	return &OtoSink{ctx: ctx, sampleRate: cfg.SampleRate}, nil
}

// NewVoice implements Sink.
func (s *OtoSink) NewVoice(r io.Reader) (Voice, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoDevice, err)
	}
	return s.ctx.NewPlayer(r), nil
}

// SampleRate implements Sink.
func (s *OtoSink) SampleRate() int {
	return s.sampleRate
}

var _ Sink = (*OtoSink)(nil)
