// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package files

import (
	"context"
	"testing"

	"github.com/z5labs/strata/source"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, fsys afero.Fs, name, content string) {
	t.Helper()

	err := afero.WriteFile(fsys, name, []byte(content), 0o644)
	require.NoError(t, err)
}

func TestSource_Fetch(t *testing.T) {
	t.Run("will merge files in declared order", func(t *testing.T) {
		t.Run("if multiple files share keys", func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			writeFile(t, fsys, "base.yaml", "port: 8080\nhost: localhost\n")
			writeFile(t, fsys, "override.yaml", "port: 9090\n")

			src := New(fsys, "base.yaml", "override.yaml")

			snap, err := src.Fetch(context.Background(), source.Default)
			require.NoError(t, err)

			v, ok := snap.Lookup("port")
			require.True(t, ok)
			require.Equal(t, 9090, v)

			v, ok = snap.Lookup("host")
			require.True(t, ok)
			require.Equal(t, "localhost", v)
		})
	})

	t.Run("will select the parser by file suffix", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		writeFile(t, fsys, "app.json", `{"name": "strata"}`)
		writeFile(t, fsys, "app.properties", "greeting=hello\n")

		src := New(fsys, "app.json", "app.properties")

		snap, err := src.Fetch(context.Background(), source.Default)
		require.NoError(t, err)

		v, ok := snap.Lookup("name")
		require.True(t, ok)
		require.Equal(t, "strata", v)

		v, ok = snap.Lookup("greeting")
		require.True(t, ok)
		require.Equal(t, "hello", v)
	})

	t.Run("will resolve paths against the environment directory", func(t *testing.T) {
		t.Run("if a non default environment is given", func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			writeFile(t, fsys, "app.yaml", "stage: default\n")
			writeFile(t, fsys, "prod/app.yaml", "stage: prod\n")

			src := New(fsys, "app.yaml")

			snap, err := src.Fetch(context.Background(), source.Environment("prod"))
			require.NoError(t, err)

			v, ok := snap.Lookup("stage")
			require.True(t, ok)
			require.Equal(t, "prod", v)
		})
	})

	t.Run("will fail", func(t *testing.T) {
		t.Run("if a declared file is missing", func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			writeFile(t, fsys, "app.yaml", "a: 1\n")

			src := New(fsys, "app.yaml", "missing.yaml")

			_, err := src.Fetch(context.Background(), source.Default)

			var ue source.UnavailableError
			require.ErrorAs(t, err, &ue)
			require.Equal(t, "missing.yaml", ue.Source)
		})

		t.Run("if a file is malformed", func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			writeFile(t, fsys, "app.json", "{ not json")

			src := New(fsys, "app.json")

			_, err := src.Fetch(context.Background(), source.Default)
			require.Error(t, err)
		})

		t.Run("if the context is already canceled", func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			writeFile(t, fsys, "app.yaml", "a: 1\n")

			src := New(fsys, "app.yaml")

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := src.Fetch(ctx, source.Default)
			require.ErrorIs(t, err, context.Canceled)
		})
	})
}
