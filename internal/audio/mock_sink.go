package audio

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// MockSink is a Sink that simulates playback without a sound device.
// Voices drain their PCM at the sink's sample rate, scaled by DelayFactor.
type MockSink struct {
	sampleRate int

	mu          sync.Mutex
	delayFactor float64
	failNew     error
	failPlay    error
	callbacks   MockCallbacks
	voices      []*MockVoice

	playCount atomic.Int64
}

// MockCallbacks provides hooks for tests.
type MockCallbacks struct {
	OnPlay  func(v *MockVoice)
	OnPause func(v *MockVoice)
	OnEnd   func(v *MockVoice)
}

// NewMockSink creates a mock sink at DefaultSampleRate playing in real time.
func NewMockSink() *MockSink {
	return &MockSink{sampleRate: DefaultSampleRate, delayFactor: 1}
}

// NewVoice implements Sink.
func (s *MockSink) NewVoice(r io.Reader) (Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNew != nil {
		return nil, s.failNew
	}
	v := &MockVoice{
		sink:        s,
		r:           r,
		delayFactor: s.delayFactor,
		failPlay:    s.failPlay,
		stopCh:      make(chan struct{}),
	}
	s.voices = append(s.voices, v)
	return v, nil
}

// SampleRate implements Sink.
func (s *MockSink) SampleRate() int {
	return s.sampleRate
}

// SetDelayFactor scales simulated playback time; 0 plays instantly.
func (s *MockSink) SetDelayFactor(f float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delayFactor = f
}

// SetCallbacks installs test hooks.
func (s *MockSink) SetCallbacks(cb MockCallbacks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = cb
}

// FailNewVoice makes NewVoice fail with err; nil restores it.
func (s *MockSink) FailNewVoice(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNew = err
}

// FailPlayback makes later voices report err shortly after they start.
func (s *MockSink) FailPlayback(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPlay = err
}

// PlayCount returns how many voices have been started.
func (s *MockSink) PlayCount() int64 {
	return s.playCount.Load()
}

// Voices returns every voice created so far.
func (s *MockSink) Voices() []*MockVoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*MockVoice(nil), s.voices...)
}

func (s *MockSink) hooks() MockCallbacks {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callbacks
}

// MockVoice is a Voice created by MockSink.
type MockVoice struct {
	sink        *MockSink
	r           io.Reader
	delayFactor float64
	failPlay    error

	mu      sync.Mutex
	playing bool
	closed  bool
	err     error
	stopCh  chan struct{}
	wg      sync.WaitGroup

	played atomic.Int64
}

// Play starts draining the PCM stream.
func (v *MockVoice) Play() {
	v.mu.Lock()
	if v.playing || v.closed {
		v.mu.Unlock()
		return
	}
	v.playing = true
	v.stopCh = make(chan struct{})
	v.wg.Add(1)
	go v.drain(v.stopCh)
	v.mu.Unlock()

	v.sink.playCount.Add(1)
	if cb := v.sink.hooks().OnPlay; cb != nil {
		cb(v)
	}
}

// Pause stops draining; the stream position is kept.
func (v *MockVoice) Pause() {
	v.mu.Lock()
	if !v.playing {
		v.mu.Unlock()
		return
	}
	v.playing = false
	close(v.stopCh)
	v.mu.Unlock()

	if cb := v.sink.hooks().OnPause; cb != nil {
		cb(v)
	}
}

// IsPlaying reports whether the voice is still draining.
func (v *MockVoice) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

// Err returns the error that ended playback, if any.
func (v *MockVoice) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Close pauses the voice and waits for its reader to stop being used.
func (v *MockVoice) Close() error {
	v.Pause()
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	v.wg.Wait()
	return nil
}

// PlayedBytes returns how much PCM has been consumed.
func (v *MockVoice) PlayedBytes() int64 {
	return v.played.Load()
}

func (v *MockVoice) drain(stop chan struct{}) {
	defer v.wg.Done()

	if v.failPlay != nil {
		v.end(v.failPlay)
		return
	}

	const chunk = 4096
	perChunk := time.Duration(float64(time.Second) * chunk / float64(bytesPerFrame*v.sink.sampleRate) * v.delayFactor)
	buf := make([]byte, chunk)

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := v.r.Read(buf)
		v.played.Add(int64(n))
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			v.end(err)
			return
		}

		if perChunk > 0 && n > 0 {
			select {
			case <-stop:
				return
			case <-time.After(perChunk * time.Duration(n) / chunk):
			}
		}
	}
}

func (v *MockVoice) end(err error) {
	v.mu.Lock()
	v.err = err
	v.playing = false
	v.mu.Unlock()

	if cb := v.sink.hooks().OnEnd; cb != nil {
		cb(v)
	}
}

var (
	_ Sink  = (*MockSink)(nil)
	_ Voice = (*MockVoice)(nil)
)
