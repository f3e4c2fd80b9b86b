//go:build nocgo

package audio

import (
	"errors"
	"io"
)

// OtoSink is unavailable in nocgo builds.
type OtoSink struct{}

// NewOtoSink always fails in nocgo builds.
func NewOtoSink(SinkConfig) (*OtoSink, error) {
	return nil, errors.Join(ErrNoDevice, errors.New("built without cgo"))
}

func (s *OtoSink) NewVoice(io.Reader) (Voice, error) { return nil, ErrNoDevice }

func (s *OtoSink) SampleRate() int { return DefaultSampleRate }

var _ Sink = (*OtoSink)(nil)
