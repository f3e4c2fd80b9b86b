package audio

import (
	"errors"
	"io"
	"sync"
)

var errReaderClosed = errors.New("clip reader closed")

// clipBuffer accumulates a clip while it downloads. Readers see the bytes
// written so far and block for more until the download finishes.
type clipBuffer struct {
	mu   sync.Mutex
	cond *sync.Cond
	data []byte
	done bool
	err  error

	// finished is closed by finish.
	finished chan struct{}
}

func newClipBuffer(sizeHint int64) *clipBuffer {
	b := &clipBuffer{finished: make(chan struct{})}
	if sizeHint > 0 && sizeHint < 64<<20 {
		b.data = make([]byte, 0, sizeHint)
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// newCompleteBuffer wraps an already complete clip.
func newCompleteBuffer(data []byte) *clipBuffer {
	b := newClipBuffer(0)
	b.data = data
	b.finish(nil)
	return b
}

// Write appends p. Writes after finish are rejected.
func (b *clipBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return 0, io.ErrClosedPipe
	}
	b.data = append(b.data, p...)
	b.cond.Broadcast()
	return len(p), nil
}

// finish marks the download complete; err is the download error, if any.
// Only the first call has an effect.
func (b *clipBuffer) finish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	b.done, b.err = true, err
	close(b.finished)
	b.cond.Broadcast()
}

// Len returns the number of bytes buffered so far.
func (b *clipBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// state returns whether the download finished and how.
func (b *clipBuffer) state() (done bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done, b.err
}

// snapshot returns the bytes buffered so far. The slice must not be modified.
func (b *clipBuffer) snapshot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data[:len(b.data):len(b.data)]
}

// newReader returns a reader positioned at the start of the clip.
func (b *clipBuffer) newReader() *bufferReader {
	return &bufferReader{b: b}
}

// bufferReader reads a clipBuffer from offset zero. It deliberately does not
// implement io.Seeker: decoders that see a Seeker scan to the end, which
// would block on a clip that is still downloading.
type bufferReader struct {
	b      *clipBuffer
	off    int
	closed bool
}

func (r *bufferReader) Read(p []byte) (int, error) {
	b := r.b
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if r.closed {
			return 0, errReaderClosed
		}
		if r.off < len(b.data) {
			n := copy(p, b.data[r.off:])
			r.off += n
			return n, nil
		}
		if b.done {
			if b.err != nil {
				return 0, b.err
			}
			return 0, io.EOF
		}
		b.cond.Wait()
	}
}

// Close unblocks a pending Read.
func (r *bufferReader) Close() error {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()

	r.closed = true
	r.b.cond.Broadcast()
	return nil
}
