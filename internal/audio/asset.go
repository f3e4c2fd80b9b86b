package audio

import (
	"context"
	"io"
	"sync"
)

// Asset is one preloaded clip. It is owned by the Preloader that created it
// and lent to a Controller for one PlayToEnd call at a time. Every play
// reads the clip from the start, so an asset replays without refetching.
type Asset struct {
	ref string
	buf *clipBuffer

	// stop aborts a download that is still running.
	stop context.CancelFunc

	mu       sync.Mutex
	ready    bool
	lent     bool
	released bool
}

func newAsset(ref string, buf *clipBuffer, stop context.CancelFunc) *Asset {
	if stop == nil {
		stop = func() {}
	}
	return &Asset{ref: ref, buf: buf, stop: stop}
}

// Ref returns the clip reference the asset was loaded from.
func (a *Asset) Ref() string {
	return a.ref
}

// Ready reports whether the asset can be played.
func (a *Asset) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready && !a.released
}

// Buffered returns how many encoded bytes are held so far.
func (a *Asset) Buffered() int {
	return a.buf.Len()
}

// Complete reports whether the whole clip has been downloaded.
func (a *Asset) Complete() bool {
	done, err := a.buf.state()
	return done && err == nil
}

func (a *Asset) markReady() {
	a.mu.Lock()
	a.ready = true
	a.mu.Unlock()
}

// lend hands the asset to a player. The returned reader starts at offset zero.
func (a *Asset) lend() (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.released:
		return nil, ErrReleased
	case !a.ready:
		return nil, ErrNotReady
	case a.lent:
		return nil, ErrBusy
	}
	a.lent = true
	return a.buf.newReader(), nil
}

func (a *Asset) giveBack() {
	a.mu.Lock()
	a.lent = false
	a.mu.Unlock()
}

// release stops any running download and makes the asset unusable.
func (a *Asset) release() {
	a.mu.Lock()
	a.released = true
	a.ready = false
	a.mu.Unlock()
	a.stop()
}

// NewAssetFromBytes wraps a complete in-memory clip, such as locally
// synthesized speech, in a ready asset owned by the caller.
func NewAssetFromBytes(ref string, data []byte) (*Asset, error) {
	if err := checkHeader(data); err != nil {
		return nil, err
	}
	a := newAsset(ref, newCompleteBuffer(data), nil)
	a.markReady()
	return a, nil
}
