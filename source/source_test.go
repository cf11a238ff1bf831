// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package source

import (
	"context"
	"errors"
	"testing"

	"github.com/z5labs/strata/snapshot"

	"github.com/stretchr/testify/require"
)

type sourceFunc func(context.Context, Environment) (*snapshot.Snapshot, error)

func (f sourceFunc) Fetch(ctx context.Context, env Environment) (*snapshot.Snapshot, error) {
	return f(ctx, env)
}

func snapshotOf(kvs map[string]any) *snapshot.Snapshot {
	var b snapshot.Builder
	for k, v := range kvs {
		b.Set(k, v)
	}
	return b.Snapshot()
}

func TestMap_Fetch(t *testing.T) {
	t.Run("will flatten the nested tree", func(t *testing.T) {
		src := Map{
			"server": map[string]any{
				"host": "localhost",
				"port": 8080,
			},
		}

		snap, err := src.Fetch(context.Background(), Default)
		require.NoError(t, err)

		v, ok := snap.Lookup("server.host")
		require.True(t, ok)
		require.Equal(t, "localhost", v)
	})
}

func TestAdapter_Fetch(t *testing.T) {
	t.Run("will propagate fetch failures", func(t *testing.T) {
		fetchErr := UnavailableError{Source: "test", Cause: errors.New("unreachable")}
		a := NewAdapter(sourceFunc(func(ctx context.Context, env Environment) (*snapshot.Snapshot, error) {
			return nil, fetchErr
		}))

		_, err := a.Fetch(context.Background())

		var uerr UnavailableError
		require.ErrorAs(t, err, &uerr)
		require.Equal(t, "test", uerr.Source)
	})

	t.Run("will fetch the configured environment", func(t *testing.T) {
		var fetched Environment
		a := NewAdapter(
			sourceFunc(func(ctx context.Context, env Environment) (*snapshot.Snapshot, error) {
				fetched = env
				return snapshot.Empty(), nil
			}),
			ForEnvironment("testEnvBranch"),
		)

		_, err := a.Fetch(context.Background())
		require.NoError(t, err)
		require.Equal(t, Environment("testEnvBranch"), fetched)
	})

	t.Run("will not install a snapshot", func(t *testing.T) {
		a := NewAdapter(sourceFunc(func(ctx context.Context, env Environment) (*snapshot.Snapshot, error) {
			return snapshotOf(map[string]any{"a": "1"}), nil
		}))

		_, err := a.Fetch(context.Background())
		require.NoError(t, err)
		require.Equal(t, 0, a.Snapshot().Len())
	})
}

func TestAdapter_Init(t *testing.T) {
	t.Run("will install the snapshot on success", func(t *testing.T) {
		a := NewAdapter(sourceFunc(func(ctx context.Context, env Environment) (*snapshot.Snapshot, error) {
			return snapshotOf(map[string]any{"a": "1"}), nil
		}))

		err := a.Init(context.Background())
		require.NoError(t, err)

		v, ok := a.Snapshot().Lookup("a")
		require.True(t, ok)
		require.Equal(t, "1", v)
	})

	t.Run("will propagate the initial fetch failure", func(t *testing.T) {
		a := NewAdapter(sourceFunc(func(ctx context.Context, env Environment) (*snapshot.Snapshot, error) {
			return nil, UnavailableError{Source: "test", Cause: errors.New("unreachable")}
		}))

		err := a.Init(context.Background())

		var uerr UnavailableError
		require.ErrorAs(t, err, &uerr)
	})
}

func TestAdapter_Refresh(t *testing.T) {
	t.Run("will replace the cached snapshot on success", func(t *testing.T) {
		snaps := []*snapshot.Snapshot{
			snapshotOf(map[string]any{"msg": "hi"}),
			snapshotOf(map[string]any{"msg": "bye"}),
		}

		var calls int
		a := NewAdapter(sourceFunc(func(ctx context.Context, env Environment) (*snapshot.Snapshot, error) {
			snap := snaps[calls]
			calls++
			return snap, nil
		}))

		require.NoError(t, a.Init(context.Background()))

		v, _ := a.Snapshot().Lookup("msg")
		require.Equal(t, "hi", v)

		a.Refresh(context.Background())

		v, _ = a.Snapshot().Lookup("msg")
		require.Equal(t, "bye", v)
	})

	t.Run("will keep the last good snapshot on failure", func(t *testing.T) {
		var fail bool
		a := NewAdapter(sourceFunc(func(ctx context.Context, env Environment) (*snapshot.Snapshot, error) {
			if fail {
				return nil, UnavailableError{Source: "test", Cause: errors.New("unreachable")}
			}
			return snapshotOf(map[string]any{"a": "1"}), nil
		}))

		require.NoError(t, a.Init(context.Background()))

		fail = true
		a.Refresh(context.Background())

		v, ok := a.Snapshot().Lookup("a")
		require.True(t, ok)
		require.Equal(t, "1", v)
	})

	t.Run("will report the failure to registered observers", func(t *testing.T) {
		fetchErr := errors.New("unreachable")

		var observed error
		a := NewAdapter(
			sourceFunc(func(ctx context.Context, env Environment) (*snapshot.Snapshot, error) {
				return nil, fetchErr
			}),
			OnRefreshFailure(func(err error) {
				observed = err
			}),
		)

		a.Refresh(context.Background())
		require.ErrorIs(t, observed, fetchErr)
	})
}
