package drill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/echodrill/internal/lesson"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultFillerText is announced between lessons when no filler clip
	// can be played.
	DefaultFillerText = "nouvelle phrase"

	// DefaultFillerLocale is the locale of DefaultFillerText.
	DefaultFillerLocale = "fr-FR"

	// DefaultFallbackDelay replaces the filler when it cannot be played or
	// spoken.
	DefaultFallbackDelay = time.Second

	// fillerLookupTimeout bounds asking the lesson source for the filler clip.
	fillerLookupTimeout = 5 * time.Second
)

// Hooks let a presentation layer follow the drill. Hooks run on the
// session's goroutines and must return quickly. OnPhaseChange and OnLesson
// are called while the session holds its emission lock, which Stop waits
// for; stop from them in a new goroutine. OnError may call Stop directly.
type Hooks struct {
	OnPhaseChange func(Phase)
	OnLesson      func(lesson.Lesson)
	OnError       func(error)
}

func (h Hooks) phase(p Phase) {
	if h.OnPhaseChange != nil {
		h.OnPhaseChange(p)
	}
}

func (h Hooks) lesson(l lesson.Lesson) {
	if h.OnLesson != nil {
		h.OnLesson(l)
	}
}

func (h Hooks) fail(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

// Config configures an Engine.
type Config struct {
	Source lesson.Source
	Media  Media

	// Generator fills in missing clips. Optional.
	Generator       lesson.Generator
	GenerateTimeout time.Duration

	// Speaker announces the filler when its clip cannot be played. Optional.
	Speaker Speaker

	// FillerRef is the filler clip. When empty and Source implements
	// lesson.FillerLocator, the source is asked for it.
	FillerRef     string
	FillerText    string
	FillerLocale  string
	FallbackDelay time.Duration

	// Timings defaults to DefaultTimings when zero.
	Timings Timings

	Hooks  Hooks
	Logger *log.Logger
}

// Engine runs drill sessions, one at a time.
type Engine struct {
	cfg        Config
	prefetcher *Prefetcher
	logger     *log.Logger

	mu     sync.Mutex
	sess   *session
	last   *session
	filler string
}

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, errors.New("lesson source is required")
	}
	if cfg.Media == nil {
		return nil, errors.New("media is required")
	}
	if cfg.Timings == (Timings{}) {
		cfg.Timings = DefaultTimings()
	}
	if err := cfg.Timings.Validate(); err != nil {
		return nil, err
	}
	if cfg.FillerText == "" {
		cfg.FillerText = DefaultFillerText
	}
	if cfg.FillerLocale == "" {
		cfg.FillerLocale = DefaultFillerLocale
	}
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = DefaultFallbackDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	return &Engine{
		cfg: cfg,
		prefetcher: &Prefetcher{
			Source:          cfg.Source,
			Generator:       cfg.Generator,
			GenerateTimeout: cfg.GenerateTimeout,
			Logger:          cfg.Logger,
		},
		logger: cfg.Logger,
	}, nil
}

// Start begins a session with a lesson drawn from the source. It returns
// immediately and does nothing if a session is already active.
func (e *Engine) Start(ctx context.Context) {
	e.start(ctx, nil)
}

// StartWith begins a session with l as the first lesson.
func (e *Engine) StartWith(ctx context.Context, l lesson.Lesson) {
	e.start(ctx, &l)
}

func (e *Engine) start(ctx context.Context, first *lesson.Lesson) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess != nil {
		return
	}

	id := uuid.NewString()
	sctx, cancel := context.WithCancel(ctx)
	s := &session{
		id:        id,
		ctx:       sctx,
		cancel:    cancel,
		logger:    e.logger.With("session", id),
		preloader: e.cfg.Media.NewPreloader(),
		player:    e.cfg.Media.NewPlayer(),
		speaker:   e.cfg.Speaker,
		hooks:     e.cfg.Hooks,
		done:      make(chan struct{}),
	}
	e.sess, e.last = s, s

	s.logger.Info("Session started")
	go e.run(s, first)
}

// Stop ends the active session. When it returns no phase is entered, no
// timer fires and nothing plays; the session's assets are released and
// Idle has been reported. Stop without an active session does nothing.
func (e *Engine) Stop() {
	e.mu.Lock()
	s := e.sess
	e.sess = nil
	e.mu.Unlock()

	if s != nil {
		s.shutdown()
	}
}

// Wait blocks until the most recent session's goroutine has exited.
func (e *Engine) Wait() {
	e.mu.Lock()
	s := e.last
	e.mu.Unlock()

	if s != nil {
		<-s.done
	}
}

// Active reports whether a session is running.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess != nil
}

// Phase returns the phase of the active session, or Idle.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	s := e.sess
	e.mu.Unlock()

	if s == nil {
		return Idle
	}
	return s.currentPhase()
}

// Lesson returns the lesson of the active session.
func (e *Engine) Lesson() (lesson.Lesson, bool) {
	e.mu.Lock()
	s := e.sess
	e.mu.Unlock()

	if s == nil {
		return lesson.Lesson{}, false
	}
	return s.currentLesson()
}

// SessionID returns the id of the active session, or "".
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return ""
	}
	return e.sess.id
}

func (e *Engine) run(s *session, first *lesson.Lesson) {
	defer close(s.done)
	defer s.wg.Wait()

	err := e.loop(s, first)
	if err != nil && s.ctx.Err() == nil && !IsCancelled(err) {
		s.logger.Error("Drill stopped", "err", err)
		s.hooks.fail(err)
	}
	e.finish(s)
}

// finish ends s unless Stop already did.
func (e *Engine) finish(s *session) {
	e.mu.Lock()
	if e.sess == s {
		e.sess = nil
	}
	e.mu.Unlock()

	s.shutdown()
}

// loop runs the drill until it is cancelled or fails. Failures are returned
// as *Error.
func (e *Engine) loop(s *session, first *lesson.Lesson) error {
	if !s.enter(LoadingLesson) {
		return context.Canceled
	}

	cur, err := e.prepareFirst(s, first)
	if err != nil {
		return err
	}
	s.adopt(cur)
	s.announce(cur.Lesson)

	s.wg.Add(1)
	go e.preloadFiller(s)

	for {
		next, err := e.cycle(s, cur)
		if err != nil {
			return err
		}
		s.adopt(next)
		s.announce(next.Lesson)
		cur = next
	}
}

// prepareFirst obtains the first lesson and both its clips.
func (e *Engine) prepareFirst(s *session, first *lesson.Lesson) (*PreparedLesson, error) {
	var l lesson.Lesson
	if first != nil {
		l = *first
	} else {
		var err error
		l, err = e.cfg.Source.FetchRandomLesson(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return nil, s.ctx.Err()
			}
			return nil, newError(CodeLessonUnavailable, "unable to fetch a lesson", err)
		}
	}

	l = e.prefetcher.complete(s.ctx, l)
	if err := l.Validate(); err != nil {
		return nil, newError(CodeLessonUnavailable, "lesson cannot be played", err)
	}

	var native, target Asset
	g, gctx := errgroup.WithContext(s.ctx)
	g.Go(func() (err error) {
		native, err = e.acquire(gctx, s, l.NativeClipRef)
		return err
	})
	g.Go(func() (err error) {
		target, err = e.acquire(gctx, s, l.TargetClipRef)
		return err
	})
	err := g.Wait()
	prepared := &PreparedLesson{Lesson: l, Native: native, Target: target}
	if err != nil {
		prepared.release(s.preloader)
		if s.ctx.Err() != nil {
			return nil, s.ctx.Err()
		}
		return nil, classify("unable to load lesson "+l.ID, err)
	}
	return prepared, nil
}

// acquire preloads ref, falling back to one direct load.
func (e *Engine) acquire(ctx context.Context, s *session, ref string) (Asset, error) {
	var a Asset
	err := firstSuccess(ctx, s.logger, ref,
		strategy{name: "preload", try: func(ctx context.Context, ref string) (err error) {
			a, err = s.preloader.Preload(ctx, ref)
			return err
		}},
		strategy{name: "ad-hoc", try: func(ctx context.Context, ref string) (err error) {
			a, err = s.preloader.Load(ctx, ref)
			return err
		}},
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// cycle plays cur once through and returns the prepared next lesson.
func (e *Engine) cycle(s *session, cur *PreparedLesson) (*PreparedLesson, error) {
	t := e.cfg.Timings

	if err := e.playClip(s, PlayingNative, cur.Native, cur.Lesson.NativeClipRef); err != nil {
		return nil, err
	}
	if err := e.pause(s, PauseShort, t.PauseShort); err != nil {
		return nil, err
	}
	if err := e.playClip(s, PlayingTargetFirst, cur.Target, cur.Lesson.TargetClipRef); err != nil {
		return nil, err
	}
	if err := e.pause(s, PauseForRepeatShort, t.PauseForRepeatShort); err != nil {
		return nil, err
	}
	if err := e.playClip(s, PlayingTargetSecond, cur.Target, cur.Lesson.TargetClipRef); err != nil {
		return nil, err
	}

	if !s.enter(PauseForRepeatLong) {
		return nil, context.Canceled
	}
	la := e.prefetcher.Start(s.ctx, s.preloader)
	s.setLookahead(la)
	if err := s.sleep(t.PauseForRepeatLong); err != nil {
		return nil, err
	}

	if err := e.pause(s, PauseBeforeFiller, t.PauseBeforeFiller); err != nil {
		return nil, err
	}
	next, err := e.join(s, la)
	if err != nil {
		return nil, err
	}

	if !s.enter(PlayingFiller) {
		return nil, context.Canceled
	}
	if err := e.playFiller(s); err != nil {
		return nil, err
	}
	if err := e.pause(s, PauseAfterFiller, t.PauseAfterFiller); err != nil {
		return nil, err
	}
	return next, nil
}

func (e *Engine) pause(s *session, p Phase, d time.Duration) error {
	if !s.enter(p) {
		return context.Canceled
	}
	return s.sleep(d)
}

// playClip plays a lesson clip, falling back to one direct load of ref.
func (e *Engine) playClip(s *session, p Phase, a Asset, ref string) error {
	if !s.enter(p) {
		return context.Canceled
	}
	err := firstSuccess(s.ctx, s.logger, ref,
		playPreloaded(s.player, a),
		playAdHoc(s.preloader, s.player),
	)
	if err == nil {
		return nil
	}
	if s.ctx.Err() != nil || IsCancelled(err) {
		return err
	}
	return classify(fmt.Sprintf("unable to play clip during %s", p), err)
}

// join takes the lookahead's result, retrying the prefetch once inline.
func (e *Engine) join(s *session, la *Lookahead) (*PreparedLesson, error) {
	next, err := la.Wait(s.ctx)
	s.setLookahead(nil)
	if err != nil {
		return nil, err
	}

	if next == nil {
		s.logger.Warn("Next lesson not ready, retrying")
		next, err = e.prefetcher.PrefetchNext(s.ctx, s.preloader)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, newError(CodeLessonUnavailable, "unable to prepare the next lesson", ErrLessonUnavailable)
		}
	}
	s.setNext(next)
	return next, nil
}

// playFiller never fails except on cancellation.
func (e *Engine) playFiller(s *session) error {
	ref, clip := s.filler()
	err := firstSuccess(s.ctx, s.logger, ref,
		playPreloaded(s.player, clip),
		playAdHoc(s.preloader, s.player),
		speak(s.speaker, e.cfg.FillerText, e.cfg.FillerLocale),
		wait(s.sleep, e.cfg.FallbackDelay),
	)
	if err == nil {
		return nil
	}
	if s.ctx.Err() != nil || IsCancelled(err) {
		return err
	}
	s.logger.Warn("Filler skipped", "err", err)
	return nil
}

// preloadFiller resolves and preloads the filler clip in the background.
func (e *Engine) preloadFiller(s *session) {
	defer s.wg.Done()

	ref := e.fillerRef(s.ctx)
	if ref == "" {
		return
	}
	s.setFillerRef(ref)

	a, err := s.preloader.Preload(s.ctx, ref)
	if err != nil {
		if s.ctx.Err() == nil && !IsCancelled(err) {
			s.logger.Warn("Filler clip unavailable", "ref", ref, "err", err)
		}
		return
	}
	s.setFillerClip(a)
}

// fillerRef returns the configured filler clip, asking the source for it
// when none is configured. A successful lookup is remembered.
func (e *Engine) fillerRef(ctx context.Context) string {
	if e.cfg.FillerRef != "" {
		return e.cfg.FillerRef
	}

	e.mu.Lock()
	ref := e.filler
	e.mu.Unlock()
	if ref != "" {
		return ref
	}

	loc, ok := e.cfg.Source.(lesson.FillerLocator)
	if !ok {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, fillerLookupTimeout)
	defer cancel()

	ref, err := loc.FillerClipURL(ctx)
	if err != nil {
		e.logger.Debug("No filler clip from lesson source", "err", err)
		return ""
	}

	e.mu.Lock()
	e.filler = ref
	e.mu.Unlock()
	return ref
}
