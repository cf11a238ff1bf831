// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package source

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/z5labs/strata/snapshot"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
)

type adapterOptions struct {
	env        Environment
	logHandler slog.Handler
	observers  []func(error)
	breaker    gobreaker.Settings
}

// AdapterOption configures an Adapter.
type AdapterOption interface {
	applyAdapter(*adapterOptions)
}

type adapterOptionFunc func(*adapterOptions)

func (f adapterOptionFunc) applyAdapter(ao *adapterOptions) {
	f(ao)
}

// ForEnvironment sets the environment the Adapter fetches. The default
// is the source root.
func ForEnvironment(env Environment) AdapterOption {
	return adapterOptionFunc(func(ao *adapterOptions) {
		ao.env = env
	})
}

// LogHandler sets the slog.Handler refresh failures are logged to.
func LogHandler(h slog.Handler) AdapterOption {
	return adapterOptionFunc(func(ao *adapterOptions) {
		ao.logHandler = h
	})
}

// OnRefreshFailure registers f to be called with the error of every
// failed background refresh. Observers must not block.
func OnRefreshFailure(f func(error)) AdapterOption {
	return adapterOptionFunc(func(ao *adapterOptions) {
		ao.observers = append(ao.observers, f)
	})
}

// BreakerSettings overrides the circuit breaker settings guarding
// background refreshes against a flapping backend.
func BreakerSettings(st gobreaker.Settings) AdapterOption {
	return adapterOptionFunc(func(ao *adapterOptions) {
		ao.breaker = st
	})
}

type noopLogHandler struct{}

func (noopLogHandler) Enabled(_ context.Context, _ slog.Level) bool  { return false }
func (noopLogHandler) Handle(_ context.Context, _ slog.Record) error { return nil }
func (h noopLogHandler) WithAttrs(_ []slog.Attr) slog.Handler        { return h }
func (h noopLogHandler) WithGroup(_ string) slog.Handler             { return h }

// Adapter wraps a Source with a cached last good snapshot. Fetch stays
// fail-fast while Refresh swallows failures so transient outages never
// interrupt consumers bound to the last good configuration.
type Adapter struct {
	src       Source
	env       Environment
	log       *slog.Logger
	observers []func(error)
	breaker   *gobreaker.CircuitBreaker

	refreshMu sync.Mutex
	current   atomic.Pointer[snapshot.Snapshot]
}

// NewAdapter wraps src.
func NewAdapter(src Source, opts ...AdapterOption) *Adapter {
	ao := &adapterOptions{
		logHandler: noopLogHandler{},
		breaker: gobreaker.Settings{
			Name: "strata.source",
		},
	}
	for _, opt := range opts {
		opt.applyAdapter(ao)
	}

	return &Adapter{
		src:       src,
		env:       ao.env,
		log:       slog.New(ao.logHandler),
		observers: ao.observers,
		breaker:   gobreaker.NewCircuitBreaker(ao.breaker),
	}
}

// Environment returns the environment this Adapter fetches.
func (a *Adapter) Environment() Environment {
	return a.env
}

// Fetch performs an on-demand, uncached read of the underlying source.
// It never touches the cached snapshot and never swallows errors.
func (a *Adapter) Fetch(ctx context.Context) (*snapshot.Snapshot, error) {
	return a.src.Fetch(ctx, a.env)
}

// Init performs the initial mandatory fetch. Unlike Refresh it
// propagates the failure so callers can fail fast on startup, and
// unlike Fetch it installs the snapshot on success.
func (a *Adapter) Init(ctx context.Context) error {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	snap, err := a.src.Fetch(ctx, a.env)
	if err != nil {
		return err
	}
	a.current.Store(snap)
	return nil
}

// Refresh re-fetches the source and atomically replaces the cached
// snapshot on success. On failure the cached snapshot is left untouched
// and the error is reported to the registered observers instead of the
// caller. Concurrent Refresh calls on the same Adapter are serialized.
func (a *Adapter) Refresh(ctx context.Context) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	spanCtx, span := otel.Tracer("source").Start(ctx, "Adapter.Refresh")
	defer span.End()

	snap, err := a.breaker.Execute(func() (any, error) {
		return a.src.Fetch(spanCtx, a.env)
	})
	if err != nil {
		a.log.ErrorContext(spanCtx, "failed to refresh configuration source", slog.Any("error", err))
		for _, observe := range a.observers {
			observe(err)
		}
		return
	}
	a.current.Store(snap.(*snapshot.Snapshot))
}

// Snapshot returns the last good snapshot. It is empty until the first
// successful Init or Refresh and possibly stale afterwards.
func (a *Adapter) Snapshot() *snapshot.Snapshot {
	snap := a.current.Load()
	if snap == nil {
		return snapshot.Empty()
	}
	return snap
}
