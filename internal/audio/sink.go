package audio

import (
	"io"
	"runtime"
	"time"
)

// Output format of every Sink: interleaved signed 16-bit little endian stereo.
const (
	DefaultSampleRate = 44100
	Channels          = 2
	bytesPerFrame     = Channels * 2
)

// Voice is one stream playing on a Sink. *oto.Player satisfies it.
type Voice interface {
	Play()
	Pause()
	IsPlaying() bool
	Err() error
	Close() error
}

// Sink turns PCM streams into sound. One Sink is shared by the whole process.
type Sink interface {
	// NewVoice creates a paused voice reading PCM from r.
	NewVoice(r io.Reader) (Voice, error)

	// SampleRate of the PCM the sink expects.
	SampleRate() int
}

// SinkConfig configures NewOtoSink.
type SinkConfig struct {
	// SampleRate defaults to 44100. oto accepts 44100 and 48000 reliably.
	SampleRate int

	// BufferSize is the device buffer. Zero picks a per-OS default.
	BufferSize time.Duration

	// ReadyTimeout bounds device initialisation. Defaults to 5s.
	ReadyTimeout time.Duration
}

func (c *SinkConfig) setDefaults() {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.BufferSize == 0 {
		c.BufferSize = platformBufferSize()
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = 5 * time.Second
		if runtime.GOOS == "darwin" {
			c.ReadyTimeout = 10 * time.Second
		}
	}
}

func platformBufferSize() time.Duration {
	switch runtime.GOOS {
	case "darwin":
		return 100 * time.Millisecond
	case "windows":
		return 80 * time.Millisecond
	default:
		return 50 * time.Millisecond
	}
}
