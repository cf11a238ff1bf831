// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package strata

import (
	"math/big"
	"testing"
	"time"

	"github.com/z5labs/strata/format"
	"github.com/z5labs/strata/snapshot"

	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	t.Run("will return NoSuchKeyError", func(t *testing.T) {
		t.Run("if the key is not present", func(t *testing.T) {
			snap := format.Flatten(map[string]any{"a": 1})

			_, err := lookup(snap, "b", Int())

			var nske NoSuchKeyError
			require.ErrorAs(t, err, &nske)
			require.Equal(t, "b", nske.Key)
		})

		t.Run("if only a nested key shares the prefix and a scalar is requested", func(t *testing.T) {
			snap := format.Flatten(map[string]any{
				"server": map[string]any{"host": "localhost"},
			})

			_, err := lookup(snap, "server", String())

			var nske NoSuchKeyError
			require.ErrorAs(t, err, &nske)
		})
	})

	t.Run("will coerce scalars", func(t *testing.T) {
		snap := format.Flatten(map[string]any{
			"enabled":  "TRUE",
			"disabled": false,
			"port":     8080,
			"tiny":     "127",
			"huge":     "123456789012345678901234567890",
			"ratio":    "0.25",
			"grade":    "B",
			"timeout":  "1m30s",
			"endpoint": "https://example.com/v1",
			"home":     "/var/lib/app",
		})

		t.Run("bool from a case insensitive literal", func(t *testing.T) {
			v, err := lookup(snap, "enabled", Bool())
			require.NoError(t, err)
			require.Equal(t, true, v)

			v, err = lookup(snap, "disabled", Bool())
			require.NoError(t, err)
			require.Equal(t, false, v)
		})

		t.Run("int from a numeric leaf", func(t *testing.T) {
			v, err := lookup(snap, "port", Int())
			require.NoError(t, err)
			require.Equal(t, 8080, v)
		})

		t.Run("exact width integers", func(t *testing.T) {
			v, err := lookup(snap, "tiny", Int8())
			require.NoError(t, err)
			require.Equal(t, int8(127), v)

			v, err = lookup(snap, "port", Uint16())
			require.NoError(t, err)
			require.Equal(t, uint16(8080), v)
		})

		t.Run("big integers past int64", func(t *testing.T) {
			v, err := lookup(snap, "huge", BigInt())
			require.NoError(t, err)

			want, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
			require.Zero(t, want.Cmp(v.(*big.Int)))
		})

		t.Run("floats", func(t *testing.T) {
			v, err := lookup(snap, "ratio", Float64())
			require.NoError(t, err)
			require.Equal(t, 0.25, v)
		})

		t.Run("single character", func(t *testing.T) {
			v, err := lookup(snap, "grade", Char())
			require.NoError(t, err)
			require.Equal(t, 'B', v)
		})

		t.Run("duration", func(t *testing.T) {
			v, err := lookup(snap, "timeout", Duration())
			require.NoError(t, err)
			require.Equal(t, 90*time.Second, v)
		})

		t.Run("url", func(t *testing.T) {
			v, err := lookup(snap, "endpoint", URL())
			require.NoError(t, err)
			require.Equal(t, "example.com", v.(interface{ Hostname() string }).Hostname())
		})

		t.Run("path verbatim", func(t *testing.T) {
			v, err := lookup(snap, "home", Path())
			require.NoError(t, err)
			require.Equal(t, "/var/lib/app", v)
		})

		t.Run("string from any leaf", func(t *testing.T) {
			v, err := lookup(snap, "port", String())
			require.NoError(t, err)
			require.Equal(t, "8080", v)
		})
	})

	t.Run("will return CoercionError", func(t *testing.T) {
		snap := format.Flatten(map[string]any{
			"flag":  "1",
			"word":  "hello",
			"port":  "8080",
			"small": "128",
			"neg":   "-1",
			"hosts": []any{"a", "b"},
		})

		cases := []struct {
			name  string
			key   string
			shape Shape
		}{
			{name: "bool never coerces from a numeric", key: "flag", shape: Bool()},
			{name: "int from a word", key: "word", shape: Int()},
			{name: "int8 overflows", key: "small", shape: Int8()},
			{name: "uint rejects negatives", key: "neg", shape: Uint()},
			{name: "char needs exactly one rune", key: "word", shape: Char()},
			{name: "scalar from an array group", key: "hosts", shape: String()},
			{name: "array from a scalar", key: "port", shape: ArrayOf(String())},
			{name: "map from a scalar", key: "port", shape: MapOf(String(), String())},
		}
		for _, c := range cases {
			t.Run(c.name, func(t *testing.T) {
				_, err := lookup(snap, c.key, c.shape)

				var ce CoercionError
				require.ErrorAs(t, err, &ce)
				require.Equal(t, c.key, ce.Key)
			})
		}
	})

	t.Run("will resolve sequences", func(t *testing.T) {
		snap := format.Flatten(map[string]any{
			"hosts": []any{"b", "a", "b", "c"},
			"ports": []any{9, 10, 2},
			"servers": []any{
				map[string]any{"host": "a", "port": 1},
				map[string]any{"host": "b", "port": 2},
			},
			"grid": []any{
				[]any{1, 2},
				[]any{3},
			},
		})

		t.Run("array preserves order and duplicates", func(t *testing.T) {
			v, err := lookup(snap, "hosts", ArrayOf(String()))
			require.NoError(t, err)
			require.Equal(t, []any{"b", "a", "b", "c"}, v)
		})

		t.Run("set keeps first occurrences in order", func(t *testing.T) {
			v, err := lookup(snap, "hosts", SetOf(String()))
			require.NoError(t, err)
			require.Equal(t, []any{"b", "a", "c"}, v)
		})

		t.Run("sorted set orders numerics numerically", func(t *testing.T) {
			v, err := lookup(snap, "ports", SortedSetOf(Int()))
			require.NoError(t, err)
			require.Equal(t, []any{2, 9, 10}, v)
		})

		t.Run("list of maps", func(t *testing.T) {
			v, err := lookup(snap, "servers", ListOf(MapOf(String(), String())))
			require.NoError(t, err)
			require.Equal(t, []any{
				map[any]any{"host": "a", "port": "1"},
				map[any]any{"host": "b", "port": "2"},
			}, v)
		})

		t.Run("nested lists", func(t *testing.T) {
			v, err := lookup(snap, "grid", ArrayOf(ArrayOf(Int())))
			require.NoError(t, err)
			require.Equal(t, []any{[]any{1, 2}, []any{3}}, v)
		})

		t.Run("element coercion failures surface", func(t *testing.T) {
			_, err := lookup(snap, "hosts", ArrayOf(Int()))

			var ce CoercionError
			require.ErrorAs(t, err, &ce)
		})
	})

	t.Run("will resolve maps", func(t *testing.T) {
		snap := format.Flatten(map[string]any{
			"limits": map[string]any{
				"10": 100,
				"2":  20,
				"9":  90,
			},
			"server": map[string]any{
				"host": "localhost",
				"tls":  map[string]any{"enabled": true},
			},
		})

		t.Run("map of coerced keys and values", func(t *testing.T) {
			v, err := lookup(snap, "limits", MapOf(Int(), Int()))
			require.NoError(t, err)
			require.Equal(t, map[any]any{10: 100, 2: 20, 9: 90}, v)
		})

		t.Run("sorted map orders entries by key", func(t *testing.T) {
			v, err := lookup(snap, "limits", SortedMapOf(Int(), Int()))
			require.NoError(t, err)
			require.Equal(t, []Entry{
				{Key: 2, Value: 20},
				{Key: 9, Value: 90},
				{Key: 10, Value: 100},
			}, v)
		})

		t.Run("nested values resolve recursively", func(t *testing.T) {
			v, err := lookup(snap, "server", MapOf(String(), Any()))
			require.NoError(t, err)

			m := v.(map[any]any)
			require.Equal(t, "localhost", m["host"])
		})
	})

	t.Run("will resolve Any", func(t *testing.T) {
		snap := format.Flatten(map[string]any{
			"port":  8080,
			"hosts": []any{"a", "b"},
		})

		t.Run("to the stored value for an exact key", func(t *testing.T) {
			v, err := lookup(snap, "port", Any())
			require.NoError(t, err)
			require.Equal(t, 8080, v)
		})

		t.Run("to a sequence for an array group", func(t *testing.T) {
			v, err := lookup(snap, "hosts", Any())
			require.NoError(t, err)
			require.Equal(t, []any{"a", "b"}, v)
		})
	})
}

func TestGroupLen(t *testing.T) {
	t.Run("will only count contiguous groups from index zero", func(t *testing.T) {
		var b snapshot.Builder
		b.Set("xs"+snapshot.ArrayDelimiter+"0", "a")
		b.Set("xs"+snapshot.ArrayDelimiter+"2", "c")
		snap := b.Snapshot()

		require.Equal(t, 1, groupLen(snap, "xs"))
	})
}
