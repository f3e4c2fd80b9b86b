package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/echodrill/internal/cache"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultPreloadTimeout bounds how long Preload waits for a clip.
	DefaultPreloadTimeout = 5 * time.Second

	// DefaultMinPlayableBytes is how much of a clip must be buffered for a
	// timed out preload to still count as playable.
	DefaultMinPlayableBytes = 16 << 10
)

// PreloaderConfig configures a Preloader.
type PreloaderConfig struct {
	Timeout          time.Duration
	MinPlayableBytes int

	// Fetcher opens clip references. Defaults to a Fetcher on http.DefaultClient.
	Fetcher *Fetcher

	// Cache, when set, is consulted before fetching and filled with
	// completely downloaded clips. It is shared; assets are not.
	Cache *cache.Clips

	Logger *log.Logger
}

func (c *PreloaderConfig) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultPreloadTimeout
	}
	if c.MinPlayableBytes <= 0 {
		c.MinPlayableBytes = DefaultMinPlayableBytes
	}
	if c.Fetcher == nil {
		c.Fetcher = &Fetcher{}
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
}

// Preloader fetches clips ahead of playback and owns the resulting assets.
// Preloading a ref it already holds returns the same asset; the asset is
// freed when every Preload of it has been matched by a Release.
type Preloader struct {
	cfg PreloaderConfig

	// ctx scopes background downloads to the preloader's lifetime.
	ctx    context.Context
	cancel context.CancelFunc

	group singleflight.Group

	mu     sync.Mutex
	assets map[string]*held
	adhoc  map[*Asset]struct{}
	closed bool
}

type held struct {
	asset *Asset
	refs  int
}

// NewPreloader creates an empty Preloader.
func NewPreloader(cfg PreloaderConfig) *Preloader {
	cfg.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Preloader{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		assets: make(map[string]*held),
		adhoc:  make(map[*Asset]struct{}),
	}
}

// Preload returns a ready asset for ref. It resolves once the clip is fully
// buffered, or when the timeout expires with at least MinPlayableBytes
// buffered, in which case the download continues behind the asset.
// Otherwise it fails with ErrPreloadTimeout or the fetch error.
func (p *Preloader) Preload(ctx context.Context, ref string) (*Asset, error) {
	if a, ok, err := p.take(ref); ok || err != nil {
		return a, err
	}

	ch := p.group.DoChan(ref, func() (any, error) {
		a, err := p.load(ref, true)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			a.release()
			return nil, ErrReleased
		}
		if _, ok := p.assets[ref]; !ok {
			p.assets[ref] = &held{asset: a}
		}
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
	}

	a, ok, err := p.take(ref)
	if !ok && err == nil {
		err = ErrReleased
	}
	return a, err
}

// take claims a reference on an asset already held for ref.
func (p *Preloader) take(ref string) (*Asset, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, false, ErrReleased
	}
	h, ok := p.assets[ref]
	if !ok {
		return nil, false, nil
	}
	h.refs++
	return h.asset, true, nil
}

// Load fetches ref directly, bypassing both the assets held by this
// Preloader and the shared cache. The caller releases the asset.
func (p *Preloader) Load(ctx context.Context, ref string) (*Asset, error) {
	type result struct {
		a   *Asset
		err error
	}
	ch := make(chan result, 1)
	go func() {
		a, err := p.load(ref, false)
		ch <- result{a, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.a != nil {
				r.a.release()
			}
		}()
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.err != nil {
		return nil, res.err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		res.a.release()
		return nil, ErrReleased
	}
	p.adhoc[res.a] = struct{}{}
	return res.a, nil
}

// Release gives back one reference to a. The asset is freed when its last
// reference is released.
func (p *Preloader) Release(a *Asset) {
	if a == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.adhoc[a]; ok {
		delete(p.adhoc, a)
		a.release()
		return
	}
	h, ok := p.assets[a.ref]
	if !ok || h.asset != a {
		return
	}
	h.refs--
	if h.refs <= 0 {
		delete(p.assets, a.ref)
		a.release()
	}
}

// Held returns the number of distinct assets currently owned.
func (p *Preloader) Held() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.assets) + len(p.adhoc)
}

// Close releases every asset and stops all downloads. Further preloads fail
// with ErrReleased.
func (p *Preloader) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	assets := make([]*Asset, 0, len(p.assets)+len(p.adhoc))
	for _, h := range p.assets {
		assets = append(assets, h.asset)
	}
	for a := range p.adhoc {
		assets = append(assets, a)
	}
	p.assets = map[string]*held{}
	p.adhoc = map[*Asset]struct{}{}
	p.mu.Unlock()

	for _, a := range assets {
		a.release()
	}
	p.cancel()
}

// load fetches ref into a new asset and waits until it is playable.
func (p *Preloader) load(ref string, cached bool) (*Asset, error) {
	if cached {
		if data, ok := p.cfg.Cache.Get(ref); ok {
			if err := checkHeader(data); err == nil {
				a := newAsset(ref, newCompleteBuffer(data), nil)
				a.markReady()
				p.cfg.Logger.Debug("Clip served from cache", "ref", ref, "size", humanize.IBytes(uint64(len(data))))
				return a, nil
			}
			p.cfg.Cache.Forget(ref)
		}
	}

	dctx, stop := context.WithCancel(p.ctx)
	body, size, err := p.cfg.Fetcher.Open(dctx, ref)
	if err != nil {
		stop()
		return nil, err
	}

	start := time.Now()
	buf := newClipBuffer(size)
	go func() {
		defer body.Close() //nolint:errcheck
		_, err := io.Copy(buf, body)
		if err == nil && dctx.Err() != nil {
			err = dctx.Err()
		}
		buf.finish(err)
		if err == nil && cached {
			p.cfg.Cache.Put(ref, buf.snapshot())
		}
	}()
	stopOnAbort := context.AfterFunc(dctx, func() { _ = body.Close() })
	a := newAsset(ref, buf, func() {
		stop()
		stopOnAbort()
	})

	timer := time.NewTimer(p.cfg.Timeout)
	defer timer.Stop()

	select {
	case <-buf.finished:
		if _, err := buf.state(); err != nil {
			a.release()
			return nil, fmt.Errorf("unable to fetch clip %s: %w", ref, err)
		}
		if err := checkHeader(buf.snapshot()); err != nil {
			a.release()
			return nil, fmt.Errorf("clip %s: %w", ref, err)
		}
		p.cfg.Logger.Debug("Clip preloaded", "ref", ref, "size", humanize.IBytes(uint64(buf.Len())), "took", time.Since(start)) //nolint:gosec

	case <-timer.C:
		n := buf.Len()
		if n < p.cfg.MinPlayableBytes {
			a.release()
			return nil, fmt.Errorf("clip %s: %s buffered after %v: %w", ref, humanize.IBytes(uint64(n)), p.cfg.Timeout, ErrPreloadTimeout) //nolint:gosec
		}
		if err := checkHeader(buf.snapshot()); err != nil {
			a.release()
			return nil, fmt.Errorf("clip %s: %w", ref, err)
		}
		p.cfg.Logger.Debug("Clip playable before download finished", "ref", ref, "buffered", humanize.IBytes(uint64(n))) //nolint:gosec

	case <-p.ctx.Done():
		a.release()
		return nil, ErrReleased
	}

	a.markReady()
	return a, nil
}
