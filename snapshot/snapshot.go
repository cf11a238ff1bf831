// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package snapshot provides the flat key value representation all
// configuration sources normalize into.
package snapshot

// ArrayDelimiter separates a key from the positional index of an array
// element. It is deliberately improbable so plain values containing
// commas or dots are never mistaken for arrays. It is an internal
// encoding detail and never part of the public key syntax.
const ArrayDelimiter = "%ARRAY_SEP%"

// Snapshot is an immutable, insertion ordered mapping from dotted path
// keys to leaf values. Leaf values are scalars only; nested structure
// has already been flattened away by the time a Snapshot exists.
type Snapshot struct {
	keys   []string
	values map[string]any
}

// Empty returns a Snapshot with no entries.
func Empty() *Snapshot {
	return &Snapshot{values: make(map[string]any)}
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.keys)
}

// Lookup returns the leaf value stored under the exact key.
func (s *Snapshot) Lookup(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns all keys in insertion order. The returned slice is a copy.
func (s *Snapshot) Keys() []string {
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// Range calls f for every entry in insertion order until f returns false.
func (s *Snapshot) Range(f func(key string, value any) bool) {
	for _, k := range s.keys {
		if !f(k, s.values[k]) {
			return
		}
	}
}

// Merge folds the given snapshots into one. Later snapshots override
// earlier ones key by key; key order is first seen order. The inputs
// are not modified.
func Merge(snaps ...*Snapshot) *Snapshot {
	var b Builder
	for _, snap := range snaps {
		if snap == nil {
			continue
		}
		snap.Range(func(key string, value any) bool {
			b.Set(key, value)
			return true
		})
	}
	return b.Snapshot()
}

// Builder accumulates entries for a Snapshot. The zero value is ready
// to use. Setting an existing key overwrites its value but keeps its
// original position.
type Builder struct {
	keys   []string
	values map[string]any
}

// Set records the leaf value under key.
func (b *Builder) Set(key string, value any) {
	if b.values == nil {
		b.values = make(map[string]any)
	}
	if _, ok := b.values[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[key] = value
}

// Snapshot returns the accumulated entries as an immutable Snapshot.
// The Builder must not be reused afterwards.
func (b *Builder) Snapshot() *Snapshot {
	if b.values == nil {
		return Empty()
	}
	return &Snapshot{
		keys:   b.keys,
		values: b.values,
	}
}
