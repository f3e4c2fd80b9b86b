package drill

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/echodrill/internal/lesson"
)

// session is one run of the drill, from Start until Stop or a terminal
// failure. Everything it starts observes ctx.
type session struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *log.Logger
	preloader Preloader
	player    Player
	speaker   Speaker
	hooks     Hooks
	done      chan struct{}
	wg        sync.WaitGroup

	// emitMu orders hook calls against shutdown, so no phase is reported
	// after Idle.
	emitMu sync.Mutex

	mu         sync.Mutex
	phase      Phase
	timer      *time.Timer
	current    *PreparedLesson
	next       *PreparedLesson
	lookahead  *Lookahead
	fillerRef  string
	fillerClip Asset

	stopOnce sync.Once
}

// enter makes p the current phase and reports it. It returns false once the
// session is cancelled.
func (s *session) enter(p Phase) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if s.ctx.Err() != nil {
		return false
	}
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()

	s.logger.Debug("Phase", "phase", p)
	s.hooks.phase(p)
	return true
}

// announce reports l as the lesson now playing.
func (s *session) announce(l lesson.Lesson) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	s.logger.Info("Lesson", "lesson", l.ID, "native", l.NativeText, "target", l.TargetText)
	s.hooks.lesson(l)
}

// sleep waits d on a timer that shutdown can stop.
func (s *session) sleep(d time.Duration) error {
	s.mu.Lock()
	if err := s.ctx.Err(); err != nil {
		s.mu.Unlock()
		return err
	}
	t := time.NewTimer(d)
	s.timer = t
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.timer == t {
			s.timer = nil
		}
		s.mu.Unlock()
	}()

	select {
	case <-t.C:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *session) currentPhase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *session) currentLesson() (lesson.Lesson, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return lesson.Lesson{}, false
	}
	return s.current.Lesson, true
}

func (s *session) setLookahead(la *Lookahead) {
	s.mu.Lock()
	s.lookahead = la
	s.mu.Unlock()
}

func (s *session) setNext(p *PreparedLesson) {
	s.mu.Lock()
	s.next = p
	s.mu.Unlock()
}

// adopt makes the prepared next lesson current and releases the assets of
// the previous one.
func (s *session) adopt(p *PreparedLesson) {
	s.mu.Lock()
	prev := s.current
	s.current, s.next = p, nil
	s.mu.Unlock()

	if prev != nil {
		prev.release(s.preloader)
	}
}

func (s *session) setFillerRef(ref string) {
	s.mu.Lock()
	s.fillerRef = ref
	s.mu.Unlock()
}

func (s *session) setFillerClip(a Asset) {
	s.mu.Lock()
	s.fillerClip = a
	s.mu.Unlock()
}

func (s *session) filler() (string, Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fillerRef, s.fillerClip
}

// shutdown cancels everything the session started and reports Idle. It
// returns once no timer can fire and nothing plays. Safe to call more than
// once and from any goroutine except inside OnPhaseChange or OnLesson.
func (s *session) shutdown() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.cancel()
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		la := s.lookahead
		s.lookahead = nil
		s.mu.Unlock()

		s.player.Cancel()
		if c, ok := s.speaker.(interface{ Cancel() }); ok {
			c.Cancel()
		}
		if la != nil {
			la.Abandon()
		}
		s.preloader.Close()

		s.emitMu.Lock()
		defer s.emitMu.Unlock()

		s.mu.Lock()
		s.phase = Idle
		s.current, s.next, s.fillerClip = nil, nil, nil
		s.mu.Unlock()

		s.logger.Debug("Session stopped")
		s.hooks.phase(Idle)
	})
}
