// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package strata reads layered configuration from heterogeneous
// sources and exposes it as flat key value lookups, typed values and
// live bound capability objects.
package strata

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/z5labs/strata/reload"
	"github.com/z5labs/strata/snapshot"
	"github.com/z5labs/strata/source"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

const (
	stateUninitialized int32 = iota
	stateReady
	stateRefreshing
	stateShutdown
)

type options struct {
	adapters   []*source.Adapter
	strategies []reload.Strategy
	logHandler slog.Handler
}

// Option configures a Provider.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

// WithSource adds a source to the Provider. Sources contribute to the
// merged configuration in the order they are declared, with later
// sources overriding earlier ones key by key.
func WithSource(src source.Source, opts ...source.AdapterOption) Option {
	return optionFunc(func(o *options) {
		o.adapters = append(o.adapters, source.NewAdapter(src, opts...))
	})
}

// WithAdapter adds an already constructed adapter to the Provider.
func WithAdapter(a *source.Adapter) Option {
	return optionFunc(func(o *options) {
		o.adapters = append(o.adapters, a)
	})
}

// WithStrategy arms a reload strategy when the Provider is initialized.
func WithStrategy(s reload.Strategy) Option {
	return optionFunc(func(o *options) {
		o.strategies = append(o.strategies, s)
	})
}

// LogHandler sets the slog.Handler the Provider logs to.
func LogHandler(h slog.Handler) Option {
	return optionFunc(func(o *options) {
		o.logHandler = h
	})
}

type noopLogHandler struct{}

func (noopLogHandler) Enabled(_ context.Context, _ slog.Level) bool  { return false }
func (noopLogHandler) Handle(_ context.Context, _ slog.Record) error { return nil }
func (h noopLogHandler) WithAttrs(_ []slog.Attr) slog.Handler        { return h }
func (h noopLogHandler) WithGroup(_ string) slog.Handler             { return h }

// Provider merges the snapshots of its sources into one configuration
// and serves lookups against it. The merged snapshot is replaced as a
// whole on every reload, so a lookup in progress always completes
// against one consistent snapshot.
type Provider struct {
	adapters   []*source.Adapter
	strategies []reload.Strategy
	log        *slog.Logger

	state  atomic.Int32
	merged atomic.Pointer[snapshot.Snapshot]
}

// New returns an uninitialized Provider. Init must be called before
// the first lookup returns anything.
func New(opts ...Option) *Provider {
	o := &options{
		logHandler: noopLogHandler{},
	}
	for _, opt := range opts {
		opt.apply(o)
	}

	return &Provider{
		adapters:   o.adapters,
		strategies: o.strategies,
		log:        slog.New(o.logHandler),
	}
}

// ErrAlreadyInitialized is returned by Init when the Provider has
// already left its uninitialized state.
var ErrAlreadyInitialized = errors.New("strata: provider is already initialized")

// ErrShutdown is returned by Reload once Shutdown has been called.
var ErrShutdown = errors.New("strata: provider is shut down")

// ErrNotInitialized is returned by Reload before Init has completed.
var ErrNotInitialized = errors.New("strata: provider is not initialized")

// Init performs the initial mandatory fetch of every source and then
// arms the configured reload strategies. Unlike background reloads the
// initial fetch is fail-fast: any source failing leaves the Provider
// uninitialized and the error is returned.
func (p *Provider) Init(ctx context.Context) error {
	if !p.state.CompareAndSwap(stateUninitialized, stateRefreshing) {
		if p.state.Load() == stateShutdown {
			return ErrShutdown
		}
		return ErrAlreadyInitialized
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range p.adapters {
		g.Go(func() error {
			return a.Init(gctx)
		})
	}

	err := g.Wait()
	if err != nil {
		p.state.Store(stateUninitialized)
		return err
	}
	p.publish()

	for i, s := range p.strategies {
		err = s.Init(ctx, reload.ReloadableFunc(p.Reload))
		if err != nil {
			for _, armed := range p.strategies[:i] {
				armed.Shutdown()
			}
			p.state.Store(stateUninitialized)
			return err
		}
	}

	p.state.CompareAndSwap(stateRefreshing, stateReady)
	return nil
}

// Reload implements the [reload.Reloadable] interface. Every source is
// refreshed concurrently; sources which fail keep their last good
// snapshot and do not block the merge of the others. Overlapping
// reloads coalesce into one.
func (p *Provider) Reload(ctx context.Context) error {
	switch {
	case p.state.Load() == stateShutdown:
		return ErrShutdown
	case p.state.Load() == stateUninitialized:
		return ErrNotInitialized
	case !p.state.CompareAndSwap(stateReady, stateRefreshing):
		// a reload is already in flight
		return nil
	}

	spanCtx, span := otel.Tracer("strata").Start(ctx, "Provider.Reload")
	defer span.End()

	var g errgroup.Group
	for _, a := range p.adapters {
		g.Go(func() error {
			a.Refresh(spanCtx)
			return nil
		})
	}
	g.Wait()

	p.publish()
	p.state.CompareAndSwap(stateRefreshing, stateReady)
	return nil
}

// publish folds the sources' current snapshots, in declared order,
// into the externally visible merged snapshot with a single atomic
// pointer swap.
func (p *Provider) publish() {
	snaps := make([]*snapshot.Snapshot, len(p.adapters))
	for i, a := range p.adapters {
		snaps[i] = a.Snapshot()
	}
	p.merged.Store(snapshot.Merge(snaps...))
}

// Shutdown stops all reload strategies. Already merged configuration
// and already bound capability objects remain usable with whatever was
// last successfully fetched.
func (p *Provider) Shutdown() error {
	prev := p.state.Swap(stateShutdown)
	if prev == stateShutdown {
		return nil
	}

	var errs []error
	for _, s := range p.strategies {
		err := s.Shutdown()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Snapshot returns the current merged snapshot. It is empty before the
// first successful Init.
func (p *Provider) Snapshot() *snapshot.Snapshot {
	snap := p.merged.Load()
	if snap == nil {
		return snapshot.Empty()
	}
	return snap
}

// Keys returns all keys of the current merged snapshot in insertion
// order.
func (p *Provider) Keys() []string {
	return p.Snapshot().Keys()
}

// All returns the full merged configuration as a plain map.
func (p *Provider) All() map[string]any {
	snap := p.Snapshot()
	m := make(map[string]any, snap.Len())
	snap.Range(func(k string, v any) bool {
		m[k] = v
		return true
	})
	return m
}

// Get resolves key against the current merged snapshot and coerces the
// stored value to the given shape. It fails with [NoSuchKeyError] when
// neither an exact key nor an array group matches and with
// [CoercionError] when the stored value cannot be represented in the
// requested shape.
func (p *Provider) Get(key string, s Shape) (any, error) {
	return lookup(p.Snapshot(), key, s)
}

// MustGet is like Get but panics on failure.
func (p *Provider) MustGet(key string, s Shape) any {
	v, err := p.Get(key, s)
	if err != nil {
		panic(err)
	}
	return v
}

// Has reports whether key resolves to any value at all. It never
// fails; a missing key is simply false.
func (p *Provider) Has(key string) bool {
	_, err := p.Get(key, Any())
	return err == nil
}

// Is reports whether key resolves to a value representable in the
// given shape.
func (p *Provider) Is(key string, s Shape) bool {
	_, err := p.Get(key, s)
	return err == nil
}

// IsArray reports whether key resolves to an array group.
func (p *Provider) IsArray(key string) bool {
	return p.Is(key, ArrayOf(Any()))
}

// IsArrayOf reports whether key resolves to an array group whose every
// element is representable in the given shape.
func (p *Provider) IsArrayOf(key string, elem Shape) bool {
	return p.Is(key, ArrayOf(elem))
}

// IsCollection reports whether key resolves to an ordered sequence.
func (p *Provider) IsCollection(key string) bool {
	return p.Is(key, ListOf(Any()))
}

// IsCollectionOf reports whether key resolves to an ordered sequence
// whose every element is representable in the given shape.
func (p *Provider) IsCollectionOf(key string, elem Shape) bool {
	return p.Is(key, ListOf(elem))
}

// GetString returns the value of key as a string.
func (p *Provider) GetString(key string) (string, error) {
	v, err := p.Get(key, String())
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetBool returns the value of key as a bool. Only the case-insensitive
// literals "true" and "false" coerce.
func (p *Provider) GetBool(key string) (bool, error) {
	v, err := p.Get(key, Bool())
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// GetInt returns the value of key as an int.
func (p *Provider) GetInt(key string) (int, error) {
	v, err := p.Get(key, Int())
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// GetInt64 returns the value of key as an int64.
func (p *Provider) GetInt64(key string) (int64, error) {
	v, err := p.Get(key, Int64())
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// GetFloat64 returns the value of key as a float64.
func (p *Provider) GetFloat64(key string) (float64, error) {
	v, err := p.Get(key, Float64())
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// GetBigInt returns the value of key as a *big.Int.
func (p *Provider) GetBigInt(key string) (*big.Int, error) {
	v, err := p.Get(key, BigInt())
	if err != nil {
		return nil, err
	}
	return v.(*big.Int), nil
}

// GetBigFloat returns the value of key as a *big.Float.
func (p *Provider) GetBigFloat(key string) (*big.Float, error) {
	v, err := p.Get(key, BigFloat())
	if err != nil {
		return nil, err
	}
	return v.(*big.Float), nil
}

// GetDuration returns the value of key as a time.Duration.
func (p *Provider) GetDuration(key string) (time.Duration, error) {
	v, err := p.Get(key, Duration())
	if err != nil {
		return 0, err
	}
	return v.(time.Duration), nil
}

// GetURL returns the value of key as a *url.URL.
func (p *Provider) GetURL(key string) (*url.URL, error) {
	v, err := p.Get(key, URL())
	if err != nil {
		return nil, err
	}
	return v.(*url.URL), nil
}

// GetPath returns the value of key as a file system path.
func (p *Provider) GetPath(key string) (string, error) {
	v, err := p.Get(key, Path())
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetStringSlice returns the value of key as a []string.
func (p *Provider) GetStringSlice(key string) ([]string, error) {
	v, err := p.Get(key, ArrayOf(String()))
	if err != nil {
		return nil, err
	}

	elems := v.([]any)
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = e.(string)
	}
	return out, nil
}
