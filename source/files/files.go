// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package files provides a configuration source backed by a set of
// files in a filesystem.
package files

import (
	"context"
	"path/filepath"

	"github.com/z5labs/strata/format"
	"github.com/z5labs/strata/snapshot"
	"github.com/z5labs/strata/source"

	"github.com/spf13/afero"
)

// Source reads a declared set of configuration files from an
// [afero.Fs]. The environment selects the directory the relative file
// paths are resolved against, so per-environment views live in
// sibling directories of the same tree.
type Source struct {
	fs    afero.Fs
	paths []string
}

// New returns a Source reading the given files from fsys. Later files
// override earlier ones key by key.
func New(fsys afero.Fs, paths ...string) *Source {
	return &Source{
		fs:    fsys,
		paths: paths,
	}
}

// Fetch implements the [source.Source] interface. Every declared file
// must be present and parsable; a missing file fails the whole fetch
// with a [source.UnavailableError].
func (s *Source) Fetch(ctx context.Context, env source.Environment) (*snapshot.Snapshot, error) {
	snaps := make([]*snapshot.Snapshot, 0, len(s.paths))
	for _, p := range s.paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		name := p
		if env != source.Default {
			name = filepath.Join(string(env), p)
		}

		f, err := s.fs.Open(name)
		if err != nil {
			return nil, source.UnavailableError{Source: name, Cause: err}
		}

		snap, err := format.Select(name).Parse(name, f)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snapshot.Merge(snaps...), nil
}
