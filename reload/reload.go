// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package reload provides strategies for triggering configuration
// refreshes over the lifetime of a process.
package reload

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloadable is anything which can re-fetch and republish its
// configuration on demand.
type Reloadable interface {
	Reload(context.Context) error
}

// ReloadableFunc is a func variant of the [Reloadable] interface.
type ReloadableFunc func(context.Context) error

// Reload implements the [Reloadable] interface.
func (f ReloadableFunc) Reload(ctx context.Context) error {
	return f(ctx)
}

// Strategy decides when a [Reloadable] is reloaded. Init arms the
// strategy and Shutdown disarms it; neither invalidates configuration
// that was already published. Shutdown of a strategy that was never
// armed is a no-op, and a strategy can be armed again after Shutdown.
type Strategy interface {
	Init(context.Context, Reloadable) error
	Shutdown() error
}

// ErrAlreadyArmed is returned by a Strategy's Init while the strategy
// is armed. Shutdown disarms it and makes Init valid again.
var ErrAlreadyArmed = errors.New("reload: strategy is already armed")

type commonOptions struct {
	logHandler slog.Handler
}

// Option configures a Strategy.
type Option interface {
	apply(*commonOptions)
}

type optionFunc func(*commonOptions)

func (f optionFunc) apply(co *commonOptions) {
	f(co)
}

// LogHandler sets the slog.Handler background reload failures are
// logged to.
func LogHandler(h slog.Handler) Option {
	return optionFunc(func(co *commonOptions) {
		co.logHandler = h
	})
}

type noopLogHandler struct{}

func (noopLogHandler) Enabled(_ context.Context, _ slog.Level) bool  { return false }
func (noopLogHandler) Handle(_ context.Context, _ slog.Record) error { return nil }
func (h noopLogHandler) WithAttrs(_ []slog.Attr) slog.Handler        { return h }
func (h noopLogHandler) WithGroup(_ string) slog.Handler             { return h }

func newLogger(opts []Option) *slog.Logger {
	co := &commonOptions{
		logHandler: noopLogHandler{},
	}
	for _, opt := range opts {
		opt.apply(co)
	}
	return slog.New(co.logHandler)
}

type periodical struct {
	every time.Duration
	log   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Periodical returns a Strategy which reloads on a fixed interval
// until it is shut down. A reload still in flight when the next tick
// fires is not stacked; the triggers coalesce.
func Periodical(every time.Duration, opts ...Option) Strategy {
	return &periodical{
		every: every,
		log:   newLogger(opts),
	}
}

func (s *periodical) Init(ctx context.Context, r Reloadable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyArmed
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(s.every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			err := r.Reload(ctx)
			if err != nil {
				s.log.ErrorContext(ctx, "failed to reload configuration", slog.Any("error", err))
			}
		}
	}()
	return nil
}

func (s *periodical) Shutdown() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

type onFileChange struct {
	paths []string
	log   *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// OnFileChange returns a Strategy which reloads whenever one of the
// given files or directories changes on disk.
func OnFileChange(paths []string, opts ...Option) Strategy {
	return &onFileChange{
		paths: paths,
		log:   newLogger(opts),
	}
}

func (s *onFileChange) Init(ctx context.Context, r Reloadable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyArmed
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, p := range s.paths {
		err = watcher.Add(p)
		if err != nil {
			watcher.Close()
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.watcher = watcher
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
					continue
				}

				err := r.Reload(ctx)
				if err != nil {
					s.log.ErrorContext(ctx, "failed to reload configuration",
						slog.String("file", event.Name),
						slog.Any("error", err),
					)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.ErrorContext(ctx, "file watcher failed", slog.Any("error", err))
			}
		}
	}()
	return nil
}

func (s *onFileChange) Shutdown() error {
	s.mu.Lock()
	watcher, cancel, done := s.watcher, s.cancel, s.done
	s.watcher, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	watcher.Close()
	<-done
	return nil
}
