// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package reload

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPeriodical(t *testing.T) {
	t.Run("will reload on the configured interval", func(t *testing.T) {
		var reloads atomic.Int64
		reloaded := make(chan struct{})

		s := Periodical(time.Millisecond)
		err := s.Init(context.Background(), ReloadableFunc(func(ctx context.Context) error {
			if reloads.Add(1) == 2 {
				close(reloaded)
			}
			return nil
		}))
		require.NoError(t, err)
		defer s.Shutdown()

		select {
		case <-reloaded:
		case <-time.After(5 * time.Second):
			t.Fatal("expected at least two reloads")
		}
	})

	t.Run("will stop reloading after shutdown", func(t *testing.T) {
		var reloads atomic.Int64

		s := Periodical(time.Millisecond)
		err := s.Init(context.Background(), ReloadableFunc(func(ctx context.Context) error {
			reloads.Add(1)
			return nil
		}))
		require.NoError(t, err)
		require.NoError(t, s.Shutdown())

		before := reloads.Load()
		time.Sleep(20 * time.Millisecond)
		require.Equal(t, before, reloads.Load())
	})

	t.Run("will allow shutdown to be called twice", func(t *testing.T) {
		s := Periodical(time.Millisecond)
		err := s.Init(context.Background(), ReloadableFunc(func(ctx context.Context) error {
			return nil
		}))
		require.NoError(t, err)
		require.NoError(t, s.Shutdown())
		require.NoError(t, s.Shutdown())
	})

	t.Run("will allow shutdown before init", func(t *testing.T) {
		s := Periodical(time.Millisecond)
		require.NoError(t, s.Shutdown())
	})

	t.Run("will fail to init while armed", func(t *testing.T) {
		s := Periodical(time.Millisecond)
		r := ReloadableFunc(func(ctx context.Context) error {
			return nil
		})

		require.NoError(t, s.Init(context.Background(), r))
		defer s.Shutdown()

		err := s.Init(context.Background(), r)
		require.ErrorIs(t, err, ErrAlreadyArmed)
	})

	t.Run("will arm again after shutdown", func(t *testing.T) {
		var reloads atomic.Int64
		reloaded := make(chan struct{}, 1)

		s := Periodical(time.Millisecond)
		r := ReloadableFunc(func(ctx context.Context) error {
			reloads.Add(1)
			select {
			case reloaded <- struct{}{}:
			default:
			}
			return nil
		})

		require.NoError(t, s.Init(context.Background(), r))
		require.NoError(t, s.Shutdown())

		require.NoError(t, s.Init(context.Background(), r))
		select {
		case <-reloaded:
		case <-time.After(5 * time.Second):
			t.Fatal("expected a reload from the re-armed strategy")
		}

		require.NoError(t, s.Shutdown())

		before := reloads.Load()
		time.Sleep(20 * time.Millisecond)
		require.Equal(t, before, reloads.Load())
	})
}

func TestOnFileChange(t *testing.T) {
	t.Run("will reload when a watched file changes", func(t *testing.T) {
		dir := t.TempDir()
		name := filepath.Join(dir, "application.properties")
		require.NoError(t, os.WriteFile(name, []byte("a=1"), 0o600))

		reloaded := make(chan struct{}, 1)

		s := OnFileChange([]string{dir})
		err := s.Init(context.Background(), ReloadableFunc(func(ctx context.Context) error {
			select {
			case reloaded <- struct{}{}:
			default:
			}
			return nil
		}))
		require.NoError(t, err)
		defer s.Shutdown()

		require.NoError(t, os.WriteFile(name, []byte("a=2"), 0o600))

		select {
		case <-reloaded:
		case <-time.After(5 * time.Second):
			t.Fatal("expected a reload after the file changed")
		}
	})

	t.Run("will fail to init on a missing path", func(t *testing.T) {
		s := OnFileChange([]string{filepath.Join(t.TempDir(), "does-not-exist")})
		err := s.Init(context.Background(), ReloadableFunc(func(ctx context.Context) error {
			return nil
		}))
		require.Error(t, err)
	})

	t.Run("will allow shutdown before init", func(t *testing.T) {
		s := OnFileChange([]string{t.TempDir()})
		require.NoError(t, s.Shutdown())
	})

	t.Run("will allow shutdown before init after a failed init", func(t *testing.T) {
		s := OnFileChange([]string{filepath.Join(t.TempDir(), "does-not-exist")})
		err := s.Init(context.Background(), ReloadableFunc(func(ctx context.Context) error {
			return nil
		}))
		require.Error(t, err)
		require.NoError(t, s.Shutdown())
	})

	t.Run("will arm again after shutdown", func(t *testing.T) {
		dir := t.TempDir()
		name := filepath.Join(dir, "application.properties")
		require.NoError(t, os.WriteFile(name, []byte("a=1"), 0o600))

		reloaded := make(chan struct{}, 1)

		s := OnFileChange([]string{dir})
		r := ReloadableFunc(func(ctx context.Context) error {
			select {
			case reloaded <- struct{}{}:
			default:
			}
			return nil
		})

		require.NoError(t, s.Init(context.Background(), r))
		require.NoError(t, s.Shutdown())

		require.NoError(t, s.Init(context.Background(), r))
		defer s.Shutdown()

		require.NoError(t, os.WriteFile(name, []byte("a=2"), 0o600))

		select {
		case <-reloaded:
		case <-time.After(5 * time.Second):
			t.Fatal("expected a reload from the re-armed strategy")
		}
	})
}
