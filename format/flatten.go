// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package format

import (
	"sort"
	"strconv"

	"github.com/z5labs/strata/snapshot"
)

// member is a single entry of an object. Parsers build member slices
// instead of maps so document order survives flattening.
type member struct {
	key   string
	value any
}

// object is an ordered document node. Lists are plain []any and
// everything else is treated as a scalar leaf.
type object []member

// contentKey is the key a document with a bare scalar root flattens to.
const contentKey = "content"

// Flatten converts a nested value tree of maps, slices and scalars into
// a flat snapshot. Map entries become parentKey.childKey paths and list
// elements flatten positionally. Plain map trees carry no document
// order, so their keys are walked in sorted order for determinism.
func Flatten(root any) *snapshot.Snapshot {
	return flattenDocument(sortTree(root))
}

// flattenDocument converts a parsed document tree into a flat snapshot.
// Map entries become parentKey.childKey paths. List elements flatten
// positionally under key + ArrayDelimiter + index. A bare scalar root
// flattens to the single key "content".
func flattenDocument(root any) *snapshot.Snapshot {
	var b snapshot.Builder
	switch x := root.(type) {
	case object:
		for _, m := range x {
			walk(&b, m.key, m.value)
		}
	case nil:
	default:
		walk(&b, contentKey, x)
	}
	return b.Snapshot()
}

func walk(b *snapshot.Builder, prefix string, v any) {
	switch x := v.(type) {
	case object:
		for _, m := range x {
			walk(b, prefix+"."+m.key, m.value)
		}
	case []any:
		for i, elem := range x {
			walk(b, prefix+snapshot.ArrayDelimiter+strconv.Itoa(i), elem)
		}
	default:
		b.Set(prefix, v)
	}
}

// sortTree rewrites plain map nodes into ordered objects with their
// keys sorted lexically. Ordered objects pass through untouched.
func sortTree(v any) any {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		obj := make(object, 0, len(keys))
		for _, k := range keys {
			obj = append(obj, member{key: k, value: sortTree(x[k])})
		}
		return obj
	case []any:
		elems := make([]any, len(x))
		for i, elem := range x {
			elems[i] = sortTree(elem)
		}
		return elems
	default:
		return v
	}
}
