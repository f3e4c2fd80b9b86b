package audio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestController(delay float64) (*Controller, *MockSink) {
	sink := NewMockSink()
	sink.SetDelayFactor(delay)
	return NewController(sink, WithPollInterval(time.Millisecond)), sink
}

func TestController_PlayToEnd(t *testing.T) {
	c, sink := newTestController(0)
	const frames = 4410
	a := readyAsset("mem://clip", testWAV(44100, frames))

	if err := c.PlayToEnd(context.Background(), a); err != nil {
		t.Fatalf("PlayToEnd failed: %v", err)
	}
	voices := sink.Voices()
	if len(voices) != 1 {
		t.Fatalf("created %d voices, want 1", len(voices))
	}
	if got := voices[0].PlayedBytes(); got != frames*bytesPerFrame {
		t.Errorf("played %d bytes, want %d", got, frames*bytesPerFrame)
	}
	if c.Busy() {
		t.Error("controller still busy after PlayToEnd returned")
	}
}

func TestController_ReplayStartsFromZero(t *testing.T) {
	c, sink := newTestController(0)
	a := readyAsset("mem://clip", testWAV(44100, 1000))

	for i := range 3 {
		if err := c.PlayToEnd(context.Background(), a); err != nil {
			t.Fatalf("play %d failed: %v", i, err)
		}
	}
	for i, v := range sink.Voices() {
		if v.PlayedBytes() != 1000*bytesPerFrame {
			t.Errorf("play %d consumed %d bytes", i, v.PlayedBytes())
		}
	}
}

func TestController_RealTimeDuration(t *testing.T) {
	c, _ := newTestController(1)
	a := readyAsset("mem://clip", testWAV(44100, 4410)) // 100ms

	start := time.Now()
	if err := c.PlayToEnd(context.Background(), a); err != nil {
		t.Fatalf("PlayToEnd failed: %v", err)
	}
	if d := time.Since(start); d < 80*time.Millisecond {
		t.Errorf("100ms clip finished after %v", d)
	}
}

func TestController_RefusesAssetsThatAreNotReady(t *testing.T) {
	c, sink := newTestController(0)

	notReady := newAsset("mem://clip", newCompleteBuffer(testWAV(44100, 10)), nil)
	released := readyAsset("mem://clip", testWAV(44100, 10))
	released.release()

	for name, a := range map[string]*Asset{"nil": nil, "not ready": notReady, "released": released} {
		if err := c.PlayToEnd(context.Background(), a); !errors.Is(err, ErrNotReady) {
			t.Errorf("%s: error = %v, want ErrNotReady", name, err)
		}
	}
	if sink.PlayCount() != 0 {
		t.Error("nothing should have played")
	}
}

func TestController_Cancel(t *testing.T) {
	c, sink := newTestController(1)
	a := readyAsset("mem://clip", testWAV(44100, 44100)) // 1s

	errCh := make(chan error, 1)
	go func() { errCh <- c.PlayToEnd(context.Background(), a) }()

	waitFor(t, func() bool { return sink.PlayCount() == 1 })

	other := readyAsset("mem://other", testWAV(44100, 10))
	if err := c.PlayToEnd(context.Background(), other); !errors.Is(err, ErrBusy) {
		t.Errorf("second PlayToEnd = %v, want ErrBusy", err)
	}

	start := time.Now()
	c.Cancel()
	if sink.Voices()[0].IsPlaying() {
		t.Error("Cancel should pause the voice before returning")
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("PlayToEnd = %v, want ErrCancelled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("PlayToEnd did not return after Cancel")
	}
	if d := time.Since(start); d > 200*time.Millisecond {
		t.Errorf("cancel took %v", d)
	}

	// The asset is back with its owner and plays again.
	c2, _ := newTestController(0)
	if err := c2.PlayToEnd(context.Background(), a); err != nil {
		t.Errorf("replay after cancel failed: %v", err)
	}
}

func TestController_CancelIsNeverAFinish(t *testing.T) {
	c, sink := newTestController(1)
	a := readyAsset("mem://clip", testWAV(44100, 44100))

	for i := range 30 {
		errCh := make(chan error, 1)
		go func() { errCh <- c.PlayToEnd(context.Background(), a) }()
		waitFor(t, func() bool { return sink.PlayCount() == int64(i+1) })

		c.Cancel()
		if err := <-errCh; !errors.Is(err, ErrCancelled) {
			t.Fatalf("round %d: PlayToEnd = %v, want ErrCancelled", i, err)
		}
	}
}

func TestController_ResampledClipPlaysToEnd(t *testing.T) {
	c, sink := newTestController(0.1)
	a := readyAsset("mem://espeak.wav", testWAV(22050, 22050)) // 1s at 22.05kHz

	start := time.Now()
	if err := c.PlayToEnd(context.Background(), a); err != nil {
		t.Fatalf("PlayToEnd failed: %v", err)
	}
	took := time.Since(start)

	played := sink.Voices()[0].PlayedBytes() / bytesPerFrame
	if want := int64(DefaultSampleRate); played < want*95/100 || played > want*105/100 {
		t.Errorf("played %d frames, want about %d", played, want)
	}
	// 1s of audio at a tenth of real time.
	if took < 80*time.Millisecond {
		t.Errorf("1s clip finished after %v", took)
	}
}

func TestController_ContextCancel(t *testing.T) {
	c, sink := newTestController(1)
	a := readyAsset("mem://clip", testWAV(44100, 44100))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.PlayToEnd(ctx, a) }()

	waitFor(t, func() bool { return sink.PlayCount() == 1 })
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("PlayToEnd = %v, want ErrCancelled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("PlayToEnd did not return after ctx cancel")
	}

	if err := c.PlayToEnd(ctx, a); !errors.Is(err, ErrCancelled) {
		t.Errorf("PlayToEnd with done ctx = %v, want ErrCancelled", err)
	}
}

func TestController_AssetLentOnce(t *testing.T) {
	c1, sink := newTestController(1)
	c2 := NewController(sink, WithPollInterval(time.Millisecond))
	a := readyAsset("mem://clip", testWAV(44100, 44100))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c1.PlayToEnd(context.Background(), a)
	}()
	waitFor(t, func() bool { return sink.PlayCount() == 1 })

	if err := c2.PlayToEnd(context.Background(), a); !errors.Is(err, ErrBusy) {
		t.Errorf("lending a lent asset = %v, want ErrBusy", err)
	}
	c1.Cancel()
	<-done
}

func TestController_PlaybackErrors(t *testing.T) {
	boom := errors.New("device lost")

	t.Run("voice creation", func(t *testing.T) {
		c, sink := newTestController(0)
		sink.FailNewVoice(boom)
		err := c.PlayToEnd(context.Background(), readyAsset("mem://clip", testWAV(44100, 10)))
		if !errors.Is(err, ErrPlayback) || !errors.Is(err, boom) {
			t.Errorf("error = %v, want ErrPlayback wrapping %v", err, boom)
		}
	})

	t.Run("during playback", func(t *testing.T) {
		c, sink := newTestController(0)
		sink.FailPlayback(boom)
		err := c.PlayToEnd(context.Background(), readyAsset("mem://clip", testWAV(44100, 10)))
		if !errors.Is(err, ErrPlayback) {
			t.Errorf("error = %v, want ErrPlayback", err)
		}
	})

	t.Run("undecodable", func(t *testing.T) {
		c, _ := newTestController(0)
		err := c.PlayToEnd(context.Background(), readyAsset("mem://clip", []byte("not audio")))
		if !errors.Is(err, ErrPlayback) || !errors.Is(err, ErrUndecodable) {
			t.Errorf("error = %v, want ErrPlayback wrapping ErrUndecodable", err)
		}
	})
}

func TestController_PlaysWhileDownloading(t *testing.T) {
	c, _ := newTestController(0)
	clip := testWAV(44100, 22050)

	buf := newClipBuffer(int64(len(clip)))
	_, _ = buf.Write(clip[:len(clip)/2])
	a := newAsset("mem://clip", buf, nil)
	a.markReady()

	errCh := make(chan error, 1)
	go func() { errCh <- c.PlayToEnd(context.Background(), a) }()

	time.Sleep(20 * time.Millisecond)
	select {
	case err := <-errCh:
		t.Fatalf("PlayToEnd returned %v before the clip finished downloading", err)
	default:
	}

	_, _ = buf.Write(clip[len(clip)/2:])
	buf.finish(nil)

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("PlayToEnd failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("PlayToEnd did not finish")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
