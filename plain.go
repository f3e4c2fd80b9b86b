package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dgnsrekt/echodrill/internal/config"
	"github.com/dgnsrekt/echodrill/internal/drill"
	"github.com/dgnsrekt/echodrill/internal/lesson"
)

// plainPrinter writes drill events as lines. It remembers the failure that
// ended the session.
type plainPrinter struct {
	w   io.Writer
	now func() time.Time

	mu  sync.Mutex
	err error
}

func (p *plainPrinter) hooks() drill.Hooks {
	return drill.Hooks{
		OnPhaseChange: func(ph drill.Phase) {
			if ph == drill.Idle {
				return
			}
			p.printf("%s\n", plainCaption(ph.Caption()))
		},
		OnLesson: func(l lesson.Lesson) {
			line := fmt.Sprintf("%s → %s", l.NativeText, l.TargetText)
			if l.Category != "" {
				line += " (" + l.Category + ")"
			}
			p.printf("%s\n", line)
		},
		OnError: func(err error) {
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
			p.printf("%s\n", plainError(err.Error()))
		},
	}
}

func (p *plainPrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.w, "%s "+format, append([]any{plainTime(p.now().Format(time.TimeOnly))}, args...)...)
}

func (p *plainPrinter) failure() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// runPlain drills until ctx is cancelled or the session fails.
func runPlain(ctx context.Context, cfg config.Config, pcfg processConfig) error {
	printer := &plainPrinter{w: os.Stdout, now: time.Now}

	d, err := newDrill(cfg, pcfg, printer.hooks())
	if err != nil {
		return err
	}
	defer d.Close() //nolint:errcheck

	return drillUntilDone(ctx, d.engine, printer)
}

type runner interface {
	Start(ctx context.Context)
	Stop()
	Wait()
}

func drillUntilDone(ctx context.Context, eng runner, printer *plainPrinter) error {
	eng.Start(ctx)

	done := make(chan struct{})
	go func() {
		eng.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		eng.Stop()
		<-done
		return nil
	case <-done:
		return printer.failure()
	}
}
