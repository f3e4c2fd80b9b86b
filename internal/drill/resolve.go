package drill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// strategy is one way of getting a clip heard.
type strategy struct {
	name string
	try  func(ctx context.Context, ref string) error
}

// firstSuccess runs strategies in order until one succeeds. Cancellation
// stops the chain immediately and is returned as is; otherwise the joined
// failures of every strategy are returned.
func firstSuccess(ctx context.Context, logger *log.Logger, ref string, strategies ...strategy) error {
	var errs []error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.try(ctx, ref)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || IsCancelled(err) {
			return err
		}
		logger.Debug("Clip strategy failed", "strategy", s.name, "ref", ref, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
	}
	if len(errs) == 0 {
		return fmt.Errorf("no strategy for %q", ref)
	}
	return errors.Join(errs...)
}

// playPreloaded plays a when it is ready.
func playPreloaded(p Player, a Asset) strategy {
	return strategy{
		name: "preloaded",
		try: func(ctx context.Context, _ string) error {
			if a == nil || !a.Ready() {
				return errors.New("no preloaded asset")
			}
			return p.PlayToEnd(ctx, a)
		},
	}
}

// playAdHoc loads ref directly once and plays it.
func playAdHoc(pl Preloader, p Player) strategy {
	return strategy{
		name: "ad-hoc",
		try: func(ctx context.Context, ref string) error {
			if ref == "" {
				return errors.New("no clip reference")
			}
			a, err := pl.Load(ctx, ref)
			if err != nil {
				return err
			}
			defer pl.Release(a)
			return p.PlayToEnd(ctx, a)
		},
	}
}

// speak says text with sp.
func speak(sp Speaker, text, locale string) strategy {
	return strategy{
		name: "speech",
		try: func(ctx context.Context, _ string) error {
			if sp == nil {
				return errors.New("no speaker")
			}
			return sp.Speak(ctx, text, locale)
		},
	}
}

// wait stands in for a clip with silence.
func wait(sleep func(time.Duration) error, d time.Duration) strategy {
	return strategy{
		name: "delay",
		try: func(context.Context, string) error {
			return sleep(d)
		},
	}
}
