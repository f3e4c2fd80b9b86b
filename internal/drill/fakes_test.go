package drill

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/echodrill/internal/audio"
	"github.com/dgnsrekt/echodrill/internal/lesson"
)

// testTimings keeps the phase order of the real table at a fraction of
// its durations.
func testTimings() Timings {
	return Timings{
		PauseShort:          20 * time.Millisecond,
		PauseForRepeatShort: 30 * time.Millisecond,
		PauseForRepeatLong:  40 * time.Millisecond,
		PauseBeforeFiller:   20 * time.Millisecond,
		PauseAfterFiller:    10 * time.Millisecond,
	}
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(nilWriter{}, log.Options{Level: log.FatalLevel})
}

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLesson(id string) lesson.Lesson {
	return lesson.Lesson{
		ID:            id,
		NativeText:    "native " + id,
		TargetText:    "target " + id,
		NativeClipRef: id + ".native.mp3",
		TargetClipRef: id + ".target.mp3",
	}
}

// fakeSource hands out lessons from next, counting calls.
type fakeSource struct {
	mu     sync.Mutex
	calls  []time.Time
	next   func(n int) (lesson.Lesson, error)
	filler string
}

func (s *fakeSource) FetchRandomLesson(ctx context.Context) (lesson.Lesson, error) {
	if err := ctx.Err(); err != nil {
		return lesson.Lesson{}, err
	}
	s.mu.Lock()
	n := len(s.calls)
	s.calls = append(s.calls, time.Now())
	s.mu.Unlock()
	return s.next(n)
}

func (s *fakeSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeSource) CallTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.calls...)
}

// cycling serves ls in order, forever.
func cycling(ls ...lesson.Lesson) *fakeSource {
	return &fakeSource{next: func(n int) (lesson.Lesson, error) {
		return ls[n%len(ls)], nil
	}}
}

// locatingSource also knows the filler clip.
type locatingSource struct {
	*fakeSource
}

func (s locatingSource) FillerClipURL(context.Context) (string, error) {
	if s.filler == "" {
		return "", lesson.ErrNotFound
	}
	return s.filler, nil
}

type fakeAsset struct {
	ref string

	mu    sync.Mutex
	ready bool
}

func newFakeAsset(ref string) *fakeAsset {
	return &fakeAsset{ref: ref, ready: true}
}

func (a *fakeAsset) Ref() string { return a.ref }

func (a *fakeAsset) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

func (a *fakeAsset) release() {
	a.mu.Lock()
	a.ready = false
	a.mu.Unlock()
}

type play struct {
	ref        string
	start, end time.Time
	err        error
}

// fakeMedia is the audio side of the drill without a sound device.
type fakeMedia struct {
	mu           sync.Mutex
	playTime     time.Duration
	preloadDelay time.Duration
	preloadErr   map[string]error
	loadErr      map[string]error
	playErr      map[string]int
	plays        []play
	playing      int
	preloaders   []*fakePreloader
	players      []*fakePlayer
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{
		playTime:   5 * time.Millisecond,
		preloadErr: map[string]error{},
		loadErr:    map[string]error{},
		playErr:    map[string]int{},
	}
}

func (m *fakeMedia) NewPreloader() Preloader {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &fakePreloader{media: m, held: map[string]*heldAsset{}, adhoc: map[*fakeAsset]bool{}}
	m.preloaders = append(m.preloaders, p)
	return p
}

func (m *fakeMedia) NewPlayer() Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &fakePlayer{media: m}
	m.players = append(m.players, p)
	return p
}

func (m *fakeMedia) failPreload(ref string, err error) {
	m.mu.Lock()
	m.preloadErr[ref] = err
	m.mu.Unlock()
}

func (m *fakeMedia) failLoad(ref string, err error) {
	m.mu.Lock()
	m.loadErr[ref] = err
	m.mu.Unlock()
}

// failPlays makes the next n plays of ref fail.
func (m *fakeMedia) failPlays(ref string, n int) {
	m.mu.Lock()
	m.playErr[ref] = n
	m.mu.Unlock()
}

func (m *fakeMedia) Plays() []play {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]play(nil), m.plays...)
}

// PlayedRefs lists the refs of plays that finished.
func (m *fakeMedia) PlayedRefs() []string {
	var refs []string
	for _, p := range m.Plays() {
		if p.err == nil && !p.end.IsZero() {
			refs = append(refs, p.ref)
		}
	}
	return refs
}

func (m *fakeMedia) Playing() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *fakeMedia) Preloaders() []*fakePreloader {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*fakePreloader(nil), m.preloaders...)
}

type heldAsset struct {
	asset *fakeAsset
	refs  int
}

type fakePreloader struct {
	media *fakeMedia

	mu       sync.Mutex
	held     map[string]*heldAsset
	adhoc    map[*fakeAsset]bool
	preloads []string
	loads    []string
	closed   bool
}

func (p *fakePreloader) Preload(ctx context.Context, ref string) (Asset, error) {
	p.mu.Lock()
	p.preloads = append(p.preloads, ref)
	if p.closed {
		p.mu.Unlock()
		return nil, audio.ErrReleased
	}
	if h, ok := p.held[ref]; ok {
		h.refs++
		p.mu.Unlock()
		return h.asset, nil
	}
	p.mu.Unlock()

	p.media.mu.Lock()
	delay, err := p.media.preloadDelay, p.media.preloadErr[ref]
	p.media.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, audio.ErrReleased
	}
	if h, ok := p.held[ref]; ok {
		h.refs++
		return h.asset, nil
	}
	a := newFakeAsset(ref)
	p.held[ref] = &heldAsset{asset: a, refs: 1}
	return a, nil
}

func (p *fakePreloader) Load(ctx context.Context, ref string) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.media.mu.Lock()
	err := p.media.loadErr[ref]
	p.media.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads = append(p.loads, ref)
	if err != nil {
		return nil, err
	}
	if p.closed {
		return nil, audio.ErrReleased
	}
	a := newFakeAsset(ref)
	p.adhoc[a] = true
	return a, nil
}

func (p *fakePreloader) Release(asset Asset) {
	a, ok := asset.(*fakeAsset)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.adhoc[a] {
		delete(p.adhoc, a)
		a.release()
		return
	}
	h, ok := p.held[a.ref]
	if !ok || h.asset != a {
		return
	}
	h.refs--
	if h.refs <= 0 {
		delete(p.held, a.ref)
		a.release()
	}
}

func (p *fakePreloader) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for ref, h := range p.held {
		h.asset.release()
		delete(p.held, ref)
	}
	for a := range p.adhoc {
		a.release()
		delete(p.adhoc, a)
	}
}

// HeldRefs returns the refs currently held, sorted.
func (p *fakePreloader) HeldRefs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	refs := make([]string, 0, len(p.held))
	for ref := range p.held {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

func (p *fakePreloader) Held() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.held) + len(p.adhoc)
}

func (p *fakePreloader) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePreloader) Loads() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.loads...)
}

type fakePlayer struct {
	media *fakeMedia

	mu   sync.Mutex
	stop chan struct{}
	live bool
}

func (p *fakePlayer) PlayToEnd(ctx context.Context, a Asset) error {
	if a == nil || !a.Ready() {
		return audio.ErrNotReady
	}

	p.mu.Lock()
	if p.stop != nil {
		p.mu.Unlock()
		return audio.ErrBusy
	}
	stop := make(chan struct{})
	p.stop, p.live = stop, true
	p.mu.Unlock()

	m := p.media
	m.mu.Lock()
	idx := len(m.plays)
	m.plays = append(m.plays, play{ref: a.Ref(), start: time.Now()})
	m.playing++
	d := m.playTime
	failing := m.playErr[a.Ref()] > 0
	if failing {
		m.playErr[a.Ref()]--
	}
	m.mu.Unlock()

	var err error
	if failing {
		err = fmt.Errorf("%w: %s: device lost", audio.ErrPlayback, a.Ref())
	} else {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			err = audio.ErrCancelled
		case <-stop:
			err = audio.ErrCancelled
		}
		t.Stop()
	}

	p.mu.Lock()
	if p.live {
		m.mu.Lock()
		m.playing--
		m.mu.Unlock()
	}
	p.stop, p.live = nil, false
	p.mu.Unlock()

	m.mu.Lock()
	m.plays[idx].end = time.Now()
	m.plays[idx].err = err
	m.mu.Unlock()
	return err
}

// Cancel silences the current play before returning, like a paused voice.
func (p *fakePlayer) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil || !p.live {
		return
	}
	close(p.stop)
	p.live = false
	p.media.mu.Lock()
	p.media.playing--
	p.media.mu.Unlock()
}

type speech struct {
	text, locale string
}

type fakeSpeaker struct {
	mu    sync.Mutex
	calls []speech
	err   error
	took  time.Duration
}

func (s *fakeSpeaker) Speak(ctx context.Context, text, locale string) error {
	s.mu.Lock()
	s.calls = append(s.calls, speech{text, locale})
	err, took := s.err, s.took
	s.mu.Unlock()

	if took > 0 {
		t := time.NewTimer(took)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *fakeSpeaker) Calls() []speech {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]speech(nil), s.calls...)
}

type phaseEvent struct {
	phase Phase
	at    time.Time
}

// recorder collects everything the engine reports.
type recorder struct {
	mu      sync.Mutex
	phases  []phaseEvent
	lessons []lesson.Lesson
	errs    []error
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnPhaseChange: func(p Phase) {
			r.mu.Lock()
			r.phases = append(r.phases, phaseEvent{p, time.Now()})
			r.mu.Unlock()
		},
		OnLesson: func(l lesson.Lesson) {
			r.mu.Lock()
			r.lessons = append(r.lessons, l)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) Phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Phase, len(r.phases))
	for i, e := range r.phases {
		out[i] = e.phase
	}
	return out
}

func (r *recorder) Events() []phaseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]phaseEvent(nil), r.phases...)
}

func (r *recorder) Count(p Phase) int {
	n := 0
	for _, q := range r.Phases() {
		if q == p {
			n++
		}
	}
	return n
}

func (r *recorder) Lessons() []lesson.Lesson {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]lesson.Lesson(nil), r.lessons...)
}

func (r *recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

type harness struct {
	engine  *Engine
	media   *fakeMedia
	source  *fakeSource
	rec     *recorder
	speaker *fakeSpeaker
}

// newHarness builds an engine over fakes; adjust modifies the config first.
func newHarness(t *testing.T, src *fakeSource, adjust func(*Config)) *harness {
	t.Helper()
	h := &harness{media: newFakeMedia(), source: src, rec: &recorder{}, speaker: &fakeSpeaker{}}
	cfg := Config{
		Source:        src,
		Media:         h.media,
		Speaker:       h.speaker,
		FillerRef:     "filler.mp3",
		FallbackDelay: 10 * time.Millisecond,
		Timings:       testTimings(),
		Hooks:         h.rec.hooks(),
		Logger:        quietLogger(),
	}
	if adjust != nil {
		adjust(&cfg)
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.engine = e
	t.Cleanup(func() {
		e.Stop()
		e.Wait()
	})
	return h
}
