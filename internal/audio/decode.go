package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

type clipFormat int

const (
	formatUnknown clipFormat = iota
	formatMP3
	formatWAV
)

func (f clipFormat) String() string {
	switch f {
	case formatMP3:
		return "mp3"
	case formatWAV:
		return "wav"
	default:
		return "unknown"
	}
}

// sniffLen is how many leading bytes sniff needs.
const sniffLen = 12

// sniff identifies a clip from its leading bytes.
func sniff(head []byte) clipFormat {
	switch {
	case len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")):
		return formatWAV
	case len(head) >= 3 && bytes.Equal(head[:3], []byte("ID3")):
		return formatMP3
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return formatMP3
	default:
		return formatUnknown
	}
}

// readCloser pairs a buffered reader with the Close of its source.
type readCloser struct {
	io.Reader
	io.Closer
}

// decode sniffs and opens a clip stream. rc is closed by the returned
// streamer's Close, or here on error.
func decode(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	br := bufio.NewReader(rc)
	head, _ := br.Peek(sniffLen)

	src := readCloser{Reader: br, Closer: rc}
	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch kind := sniff(head); kind {
	case formatMP3:
		s, format, err = mp3.Decode(src)
	case formatWAV:
		s, format, err = wav.Decode(src)
	default:
		_ = rc.Close()
		return nil, beep.Format{}, ErrUndecodable
	}
	if err != nil {
		_ = rc.Close()
		return nil, beep.Format{}, fmt.Errorf("%w: %w", ErrUndecodable, err)
	}
	return s, format, nil
}

// checkHeader checks that data starts with a decodable clip header.
func checkHeader(data []byte) error {
	s, _, err := decode(io.NopCloser(onlyReader{bytes.NewReader(data)}))
	if err != nil {
		return err
	}
	return s.Close()
}

// onlyReader hides every method but Read.
type onlyReader struct{ r io.Reader }

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }

// pcmStream converts a beep streamer into interleaved s16le stereo at the
// sink's sample rate.
type pcmStream struct {
	mu      sync.Mutex
	src     beep.StreamSeekCloser
	s       beep.Streamer
	frames  [][2]float64
	pending []byte
	err     error
}

// newPCMStream decodes rc and resamples it to sampleRate.
func newPCMStream(rc io.ReadCloser, sampleRate int) (*pcmStream, error) {
	src, format, err := decode(rc)
	if err != nil {
		return nil, err
	}

	var s beep.Streamer = src
	if int(format.SampleRate) != sampleRate {
		s = beep.Resample(4, format.SampleRate, beep.SampleRate(sampleRate), fullStreamer{src})
	}
	return &pcmStream{
		src:    src,
		s:      s,
		frames: make([][2]float64, 1024),
	}, nil
}

// fullStreamer fills every buffer unless its source is drained. Decoders
// reading from a stream return short reads, which Resample takes as the end.
type fullStreamer struct {
	s beep.Streamer
}

func (f fullStreamer) Stream(samples [][2]float64) (int, bool) {
	n := 0
	for n < len(samples) {
		got, ok := f.s.Stream(samples[n:])
		n += got
		if !ok || got == 0 {
			return n, n > 0
		}
	}
	return n, true
}

func (f fullStreamer) Err() error {
	return f.s.Err()
}

// Read implements io.Reader for the sink.
func (p *pcmStream) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for n < len(b) {
		if len(p.pending) > 0 {
			c := copy(b[n:], p.pending)
			p.pending = p.pending[c:]
			n += c
			continue
		}
		if p.err != nil {
			break
		}
		p.fill(len(b) - n)
	}
	if n == 0 && p.err != nil {
		return 0, p.err
	}
	return n, nil
}

// fill decodes up to want bytes worth of frames into pending.
func (p *pcmStream) fill(want int) {
	frames := want / bytesPerFrame
	if frames < 1 {
		frames = 1
	}
	if frames > len(p.frames) {
		frames = len(p.frames)
	}

	got, ok := p.s.Stream(p.frames[:frames])
	if got > 0 {
		out := make([]byte, got*bytesPerFrame)
		for i, f := range p.frames[:got] {
			binary.LittleEndian.PutUint16(out[i*4:], uint16(toInt16(f[0])))
			binary.LittleEndian.PutUint16(out[i*4+2:], uint16(toInt16(f[1])))
		}
		p.pending = out
	}
	if !ok {
		p.err = io.EOF
		if err := p.s.Err(); err != nil {
			p.err = fmt.Errorf("%w: %w", ErrPlayback, err)
		}
	}
}

func toInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(v * math.MaxInt16)
}

// Err reports a decode failure seen while streaming.
func (p *pcmStream) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err == io.EOF {
		return nil
	}
	return p.err
}

// Close releases the decoder and the underlying clip reader.
func (p *pcmStream) Close() error {
	return p.src.Close()
}
