// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package source defines where configuration is fetched from and the
// adapter which keeps a last good snapshot across refreshes.
package source

import (
	"context"
	"fmt"

	"github.com/z5labs/strata/format"
	"github.com/z5labs/strata/snapshot"
)

// Environment selects which sub-location of a source is fetched, for
// example a sub-directory of a file tree or a branch of a git
// repository. The zero value addresses the source root.
type Environment string

// Default is the root environment.
const Default Environment = ""

// Source fetches the flat configuration for an environment. Fetch is
// uncached and fail-fast; callers needing last good semantics wrap a
// Source in an Adapter.
type Source interface {
	Fetch(ctx context.Context, env Environment) (*snapshot.Snapshot, error)
}

// UnavailableError occurs when a backing store cannot be reached or a
// required location within it is missing.
type UnavailableError struct {
	// Source identifies the unreachable backend.
	Source string

	Cause error
}

// Error implements the [builtin.error] interface.
func (e UnavailableError) Error() string {
	return fmt.Sprintf("configuration source %s is unavailable: %s", e.Source, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e UnavailableError) Unwrap() error {
	return e.Cause
}

// Map is an in-memory Source backed by a nested value tree. It is
// useful for declaring defaults underneath sources that can fail.
type Map map[string]any

// Fetch implements the Source interface. The environment is ignored.
func (m Map) Fetch(ctx context.Context, env Environment) (*snapshot.Snapshot, error) {
	return format.Flatten(map[string]any(m)), nil
}
