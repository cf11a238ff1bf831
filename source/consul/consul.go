// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package consul provides a configuration source backed by a Consul KV
// store.
package consul

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/z5labs/strata/snapshot"
	"github.com/z5labs/strata/source"

	"github.com/hashicorp/consul/api"
	"github.com/hashicorp/go-retryablehttp"
)

type options struct {
	address string
	prefix  string
}

// Option configures a Source.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

// Address sets the address of the Consul agent. The default comes from
// the usual Consul environment variables.
func Address(addr string) Option {
	return optionFunc(func(o *options) {
		o.address = addr
	})
}

// Prefix sets the KV path all environments are resolved under.
func Prefix(prefix string) Option {
	return optionFunc(func(o *options) {
		o.prefix = prefix
	})
}

// Source reads every key under a KV prefix. The environment is joined
// onto the configured prefix, so environments are sibling subtrees of
// the same KV namespace. Key segments map to dotted config paths,
// e.g. us-west/app/db/port becomes db.port for environment us-west/app.
type Source struct {
	kv     *api.KV
	prefix string
}

// New returns a Source talking to a Consul agent. Requests are retried
// with exponential backoff before a fetch is reported as failed.
func New(opts ...Option) (*Source, error) {
	o := &options{}
	for _, opt := range opts {
		opt.apply(o)
	}

	retry := retryablehttp.NewClient()
	retry.Logger = nil

	cfg := api.DefaultConfig()
	cfg.HttpClient = retry.StandardClient()
	if o.address != "" {
		cfg.Address = o.address
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return &Source{
		kv:     client.KV(),
		prefix: o.prefix,
	}, nil
}

var errMissingEnvironment = errors.New("no keys under prefix")

// Fetch implements the [source.Source] interface. An environment with
// no keys underneath it is reported as unavailable, not as empty
// configuration.
func (s *Source) Fetch(ctx context.Context, env source.Environment) (*snapshot.Snapshot, error) {
	root := path.Join(s.prefix, string(env))

	pairs, _, err := s.kv.List(root, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, source.UnavailableError{Source: "consul:" + root, Cause: err}
	}
	if len(pairs) == 0 {
		return nil, source.UnavailableError{Source: "consul:" + root, Cause: errMissingEnvironment}
	}

	var b snapshot.Builder
	for _, pair := range pairs {
		key := strings.TrimPrefix(pair.Key, root)
		key = strings.Trim(key, "/")
		if key == "" {
			continue
		}
		b.Set(strings.ReplaceAll(key, "/", "."), string(pair.Value))
	}
	return b.Snapshot(), nil
}
