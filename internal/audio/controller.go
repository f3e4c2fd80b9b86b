package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Controller plays one asset at a time to its natural end.
type Controller struct {
	sink   Sink
	poll   time.Duration
	logger *log.Logger

	mu     sync.Mutex
	busy   bool
	voice  Voice
	cancel context.CancelFunc
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithPollInterval sets how often the voice is checked for its end.
func WithPollInterval(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.poll = d
		}
	}
}

// WithLogger sets the controller's logger.
func WithLogger(l *log.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController creates a Controller playing on sink.
func NewController(sink Sink, opts ...ControllerOption) *Controller {
	c := &Controller{
		sink:   sink,
		poll:   10 * time.Millisecond,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlayToEnd plays a from its start and returns when it finishes.
// It returns ErrNotReady for assets that are not ready, ErrBusy when another
// play is outstanding, ErrCancelled after Cancel or ctx cancellation, and an
// error wrapping ErrPlayback when decoding or the device fails.
func (c *Controller) PlayToEnd(ctx context.Context, a *Asset) error {
	if a == nil || !a.Ready() {
		return ErrNotReady
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	playCtx, cancel := context.WithCancel(ctx)
	c.busy, c.cancel = true, cancel
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.busy, c.cancel, c.voice = false, nil, nil
		c.mu.Unlock()
	}()

	rc, err := a.lend()
	if err != nil {
		return err
	}
	defer a.giveBack()

	// Unblocks a decoder waiting on a clip that is still downloading.
	stopRead := context.AfterFunc(playCtx, func() { _ = rc.Close() })
	defer stopRead()

	pcm, err := newPCMStream(rc, c.sink.SampleRate())
	if err != nil {
		if playCtx.Err() != nil {
			return ErrCancelled
		}
		return fmt.Errorf("%w: %s: %w", ErrPlayback, a.Ref(), err)
	}
	defer pcm.Close() //nolint:errcheck

	voice, err := c.sink.NewVoice(pcm)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPlayback, a.Ref(), err)
	}
	defer voice.Close() //nolint:errcheck

	c.mu.Lock()
	if playCtx.Err() != nil {
		c.mu.Unlock()
		return ErrCancelled
	}
	c.voice = voice
	voice.Play()
	c.mu.Unlock()

	start := time.Now()
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-playCtx.Done():
			voice.Pause()
			return ErrCancelled

		case <-ticker.C:
			if err := voice.Err(); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrPlayback, a.Ref(), err)
			}
			if voice.IsPlaying() {
				continue
			}
			// Cancel cancels before it pauses, so a paused voice is seen
			// together with the cancellation.
			if playCtx.Err() != nil {
				return ErrCancelled
			}
			if err := pcm.Err(); err != nil {
				return fmt.Errorf("%s: %w", a.Ref(), err)
			}
			c.logger.Debug("Clip finished", "ref", a.Ref(), "took", time.Since(start))
			return nil
		}
	}
}

// Cancel pauses the live voice, if any, and makes the outstanding PlayToEnd
// return ErrCancelled. It does nothing when nothing is playing.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if c.voice != nil {
		c.voice.Pause()
	}
}

// Busy reports whether a PlayToEnd call is outstanding.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}
