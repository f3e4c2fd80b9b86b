package drill

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/echodrill/internal/lesson"
	"golang.org/x/sync/errgroup"
)

// DefaultGenerateTimeout bounds on-demand clip generation.
const DefaultGenerateTimeout = 15 * time.Second

// PreparedLesson is a lesson whose two clips are preloaded.
type PreparedLesson struct {
	Lesson lesson.Lesson
	Native Asset
	Target Asset
}

func (p *PreparedLesson) release(pl Preloader) {
	if p == nil {
		return
	}
	if p.Native != nil {
		pl.Release(p.Native)
	}
	if p.Target != nil {
		pl.Release(p.Target)
	}
}

// Prefetcher fetches a lesson and preloads its clips.
type Prefetcher struct {
	Source    lesson.Source
	Generator lesson.Generator

	// GenerateTimeout bounds Generator calls. Defaults to DefaultGenerateTimeout.
	GenerateTimeout time.Duration

	Logger *log.Logger
}

func (p *Prefetcher) logger() *log.Logger {
	if p.Logger == nil {
		return log.Default()
	}
	return p.Logger
}

// fetch draws a lesson and fills in missing clips. The returned lesson may
// still be unplayable.
func (p *Prefetcher) fetch(ctx context.Context) (lesson.Lesson, error) {
	l, err := p.Source.FetchRandomLesson(ctx)
	if err != nil {
		return lesson.Lesson{}, err
	}
	return p.complete(ctx, l), nil
}

// complete asks the generator for missing clips, bounded by GenerateTimeout.
func (p *Prefetcher) complete(ctx context.Context, l lesson.Lesson) lesson.Lesson {
	if l.Playable() || p.Generator == nil {
		return l
	}

	timeout := p.GenerateTimeout
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}
	gctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := p.Generator.GenerateClips(gctx, l)
	if err != nil {
		p.logger().Warn("Clip generation failed", "lesson", l.ID, "err", err)
	}
	// A failed call may still have filled one side.
	if out.ID == "" {
		return l
	}
	return out
}

// preloadPair preloads both clips of l in parallel. On failure neither
// asset is held.
func preloadPair(ctx context.Context, pl Preloader, l lesson.Lesson) (*PreparedLesson, error) {
	var native, target Asset
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := pl.Preload(gctx, l.NativeClipRef)
		native = a
		return err
	})
	g.Go(func() error {
		a, err := pl.Preload(gctx, l.TargetClipRef)
		target = a
		return err
	})
	err := g.Wait()

	prepared := &PreparedLesson{Lesson: l, Native: native, Target: target}
	if err != nil {
		prepared.release(pl)
		return nil, err
	}
	return prepared, nil
}

// PrefetchNext fetches the next lesson and preloads both its clips.
// It returns (nil, nil) when no playable lesson could be prepared; the only
// error it returns is cancellation.
func (p *Prefetcher) PrefetchNext(ctx context.Context, pl Preloader) (*PreparedLesson, error) {
	l, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger().Warn("Lookahead lesson fetch failed", "err", err)
		return nil, nil
	}
	if err := l.Validate(); err != nil {
		p.logger().Warn("Lookahead lesson is not playable", "err", err)
		return nil, nil
	}

	prepared, err := preloadPair(ctx, pl, l)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger().Warn("Lookahead preload failed", "lesson", l.ID, "err", err)
		return nil, nil
	}
	p.logger().Debug("Next lesson ready", "lesson", l.ID)
	return prepared, nil
}

// Start runs PrefetchNext in the background.
func (p *Prefetcher) Start(ctx context.Context, pl Preloader) *Lookahead {
	ctx, cancel := context.WithCancel(ctx)
	la := &Lookahead{pl: pl, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(la.done)
		result, err := p.PrefetchNext(ctx, pl)

		la.mu.Lock()
		defer la.mu.Unlock()
		if la.abandoned {
			result.release(pl)
			return
		}
		la.result, la.err = result, err
	}()
	return la
}

// Lookahead is a prefetch running in the background. It is either joined
// with Wait or dropped with Abandon.
type Lookahead struct {
	pl     Preloader
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	result    *PreparedLesson
	err       error
	abandoned bool
	taken     bool
}

// Wait blocks until the prefetch finishes and hands over its result. The
// caller owns the returned assets.
func (l *Lookahead) Wait(ctx context.Context) (*PreparedLesson, error) {
	select {
	case <-l.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.abandoned {
		return nil, context.Canceled
	}
	if l.taken {
		return nil, nil
	}
	l.taken = true
	return l.result, l.err
}

// Abandon cancels the prefetch and releases whatever it produced and was
// not yet handed over by Wait.
func (l *Lookahead) Abandon() {
	l.cancel()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.abandoned {
		return
	}
	l.abandoned = true
	if !l.taken {
		l.result.release(l.pl)
		l.result = nil
	}
}

// Done is closed once the prefetch has finished.
func (l *Lookahead) Done() <-chan struct{} {
	return l.done
}
