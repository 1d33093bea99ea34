package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/expand"
)

// Watch starts an fsnotify watcher on the inbox and triggers a pipeline run
// whenever new archives land, until ctx is cancelled. Arrivals are debounced
// so a burst of downloads produces one run; a run already in flight is
// simply skipped (the next trigger will pick up whatever it left behind).
func (p *Pipeline) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(p.cfg.Inbox); err != nil {
		return err
	}

	p.logger.Info("watcher: started", slog.String("inbox", p.cfg.Inbox))

	var runTimer *time.Timer
	var runCh <-chan time.Time

	scheduleRun := func() {
		if runTimer == nil {
			runTimer = time.NewTimer(debounce)
			runCh = runTimer.C
		} else {
			runTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if runTimer != nil {
				runTimer.Stop()
			}
			p.logger.Info("watcher: stopped")
			return nil

		case <-runCh:
			if _, err := p.Run(ctx); err != nil {
				if errors.Is(err, apperr.ErrRunBusy) {
					p.logger.Debug("watcher: run already in flight, rescheduling")
					scheduleRun()
					continue
				}
				if errors.Is(err, context.Canceled) {
					continue
				}
				p.logger.Error("watcher: harvest run failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, expand.Extension) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			p.logger.Debug("watcher: archive arrived", slog.String("path", ev.Name))
			scheduleRun()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("watcher: error", slog.String("error", err.Error()))
		}
	}
}
