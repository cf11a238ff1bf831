// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package git provides a configuration source backed by files in a git
// repository, with one branch per environment.
package git

import (
	"context"
	"errors"
	"sync"

	"github.com/z5labs/strata/format"
	"github.com/z5labs/strata/snapshot"
	"github.com/z5labs/strata/source"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"
)

type options struct {
	auth transport.AuthMethod
}

// Option configures a Source.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

// Auth sets the transport credentials used to clone and fetch.
func Auth(auth transport.AuthMethod) Option {
	return optionFunc(func(o *options) {
		o.auth = auth
	})
}

// Source reads a declared set of configuration files from a git
// repository. The repository is cloned in-memory on first use and
// fetched again on every read, so no checkout ever touches disk. The
// environment names the branch to read; the root environment reads
// whatever HEAD pointed at when the repository was cloned.
type Source struct {
	url   string
	paths []string
	auth  transport.AuthMethod

	mu   sync.Mutex
	repo *gogit.Repository
}

// New returns a Source reading the given files from the repository at
// url. Later files override earlier ones key by key.
func New(url string, paths []string, opts ...Option) *Source {
	o := &options{}
	for _, opt := range opts {
		opt.apply(o)
	}

	return &Source{
		url:   url,
		paths: paths,
		auth:  o.auth,
	}
}

// Fetch implements the [source.Source] interface.
func (s *Source) Fetch(ctx context.Context, env source.Environment) (*snapshot.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.sync(ctx)
	if err != nil {
		return nil, source.UnavailableError{Source: s.url, Cause: err}
	}

	hash, err := s.resolve(env)
	if err != nil {
		return nil, source.UnavailableError{Source: s.url, Cause: err}
	}

	commit, err := s.repo.CommitObject(*hash)
	if err != nil {
		return nil, source.UnavailableError{Source: s.url, Cause: err}
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, source.UnavailableError{Source: s.url, Cause: err}
	}

	snaps := make([]*snapshot.Snapshot, 0, len(s.paths))
	for _, p := range s.paths {
		f, err := tree.File(p)
		if err != nil {
			return nil, source.UnavailableError{Source: s.url + "/" + p, Cause: err}
		}

		r, err := f.Reader()
		if err != nil {
			return nil, source.UnavailableError{Source: s.url + "/" + p, Cause: err}
		}

		snap, err := format.Select(p).Parse(p, r)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snapshot.Merge(snaps...), nil
}

// resolve maps an environment to a commit. Fetching only advances the
// remote tracking refs, so those are tried before the plain revision,
// which still covers tags and raw hashes. The root environment follows
// the branch HEAD pointed at when the repository was cloned.
func (s *Source) resolve(env source.Environment) (*plumbing.Hash, error) {
	name := string(env)
	if env == source.Default {
		head, err := s.repo.Reference(plumbing.HEAD, false)
		if err != nil {
			return nil, err
		}
		if head.Type() == plumbing.HashReference {
			h := head.Hash()
			return &h, nil
		}
		name = head.Target().Short()
	}

	remoteRef := plumbing.NewRemoteReferenceName(gogit.DefaultRemoteName, name)
	hash, err := s.repo.ResolveRevision(plumbing.Revision(remoteRef))
	if err == nil {
		return hash, nil
	}
	return s.repo.ResolveRevision(plumbing.Revision(name))
}

// sync clones the repository on first use and fast-forwards local refs
// on every subsequent call.
func (s *Source) sync(ctx context.Context) error {
	if s.repo == nil {
		repo, err := gogit.CloneContext(ctx, memory.NewStorage(), nil, &gogit.CloneOptions{
			URL:  s.url,
			Auth: s.auth,
		})
		if err != nil {
			return err
		}
		s.repo = repo
		return nil
	}

	err := s.repo.FetchContext(ctx, &gogit.FetchOptions{
		Auth:  s.auth,
		Force: true,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}
