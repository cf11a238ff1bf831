// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package envvars provides a configuration source backed by the
// environment variables of the current process.
package envvars

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/z5labs/strata/snapshot"
	"github.com/z5labs/strata/source"
)

type options struct {
	prefix  string
	environ func() []string
}

// Option configures a Source.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

// Prefix restricts the Source to variables starting with prefix when
// the root environment is fetched. The prefix is stripped from the
// resulting keys.
func Prefix(prefix string) Option {
	return optionFunc(func(o *options) {
		o.prefix = prefix
	})
}

func environ(f func() []string) Option {
	return optionFunc(func(o *options) {
		o.environ = f
	})
}

// Source reads the process environment. Variable names are lowercased
// and underscores become dots, so MYAPP_SERVER_PORT surfaces as
// server.port under the MYAPP_ prefix. A non-root environment acts as
// the variable prefix for that fetch, overriding the configured one.
type Source struct {
	prefix  string
	environ func() []string
}

// New returns a Source reading the current process environment.
func New(opts ...Option) *Source {
	o := &options{}
	for _, opt := range opts {
		opt.apply(o)
	}

	return &Source{
		prefix:  o.prefix,
		environ: o.environ,
	}
}

// Fetch implements the [source.Source] interface.
func (s *Source) Fetch(ctx context.Context, env source.Environment) (*snapshot.Snapshot, error) {
	prefix := s.prefix
	if env != source.Default {
		prefix = string(env)
		if !strings.HasSuffix(prefix, "_") {
			prefix += "_"
		}
	}

	environFn := s.environ
	if environFn == nil {
		environFn = osEnviron
	}

	vars := environFn()
	sort.Strings(vars)

	var b snapshot.Builder
	for _, pair := range vars {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if prefix != "" {
			if !strings.HasPrefix(k, prefix) {
				continue
			}
			k = strings.TrimPrefix(k, prefix)
		}
		if k == "" {
			continue
		}
		b.Set(strings.ToLower(strings.ReplaceAll(k, "_", ".")), v)
	}
	return b.Snapshot(), nil
}

func osEnviron() []string {
	return os.Environ()
}
