// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package strata

import (
	"fmt"
	"math/big"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/z5labs/strata/snapshot"

	"github.com/spf13/cast"
)

// NoSuchKeyError occurs when a lookup matches neither an exact key nor
// an array group.
type NoSuchKeyError struct {
	Key string
}

// Error implements the [builtin.error] interface.
func (e NoSuchKeyError) Error() string {
	return fmt.Sprintf("no value found for key: %s", e.Key)
}

// CoercionError occurs when a stored value cannot be converted to the
// requested shape.
type CoercionError struct {
	Key   string
	Shape Shape
	Cause error
}

// Error implements the [builtin.error] interface.
func (e CoercionError) Error() string {
	return fmt.Sprintf("unable to coerce value of key %s to %s: %s", e.Key, e.Shape, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e CoercionError) Unwrap() error {
	return e.Cause
}

// lookup resolves key against snap and coerces the result to s. It is
// pure with respect to snap; repeated calls are idempotent.
func lookup(snap *snapshot.Snapshot, key string, s Shape) (any, error) {
	switch s.kind {
	case kindAny:
		if v, ok := snap.Lookup(key); ok {
			return v, nil
		}
		if groupLen(snap, key) > 0 {
			return lookup(snap, key, ArrayOf(Any()))
		}
		if hasEntryAt(snap, key) {
			return lookup(snap, key, MapOf(String(), Any()))
		}
		return nil, NoSuchKeyError{Key: key}
	case kindArray, kindSet, kindSortedSet:
		return lookupSequence(snap, key, s)
	case kindMap, kindSortedMap:
		return lookupMap(snap, key, s)
	default:
		v, ok := snap.Lookup(key)
		if !ok {
			if groupLen(snap, key) > 0 {
				return nil, CoercionError{Key: key, Shape: s, Cause: errScalarFromArray}
			}
			return nil, NoSuchKeyError{Key: key}
		}
		return coerceScalar(key, v, s)
	}
}

var (
	errScalarFromArray = fmt.Errorf("value is an array")
	errArrayFromScalar = fmt.Errorf("value is a scalar, not an array")
	errMapFromScalar   = fmt.Errorf("value is a scalar, not a map")
	errNotBoolLiteral  = fmt.Errorf(`value is not the literal "true" or "false"`)
	errNotSingleChar   = fmt.Errorf("value is not a single character")
)

func elemPrefix(key string, i int) string {
	return key + snapshot.ArrayDelimiter + strconv.Itoa(i)
}

// hasEntryAt reports whether prefix names an entry: either an exact
// key, or the root of a nested map or array group.
func hasEntryAt(snap *snapshot.Snapshot, prefix string) bool {
	if _, ok := snap.Lookup(prefix); ok {
		return true
	}
	found := false
	snap.Range(func(k string, _ any) bool {
		if !strings.HasPrefix(k, prefix) {
			return true
		}
		rest := k[len(prefix):]
		if strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, snapshot.ArrayDelimiter) {
			found = true
			return false
		}
		return true
	})
	return found
}

// groupLen counts the contiguous positional element groups under key,
// starting at index zero.
func groupLen(snap *snapshot.Snapshot, key string) int {
	n := 0
	for hasEntryAt(snap, elemPrefix(key, n)) {
		n++
	}
	return n
}

func lookupSequence(snap *snapshot.Snapshot, key string, s Shape) (any, error) {
	n := groupLen(snap, key)
	if n == 0 {
		if _, ok := snap.Lookup(key); ok {
			return nil, CoercionError{Key: key, Shape: s, Cause: errArrayFromScalar}
		}
		return nil, NoSuchKeyError{Key: key}
	}

	elems := make([]any, 0, n)
	for i := range n {
		v, err := lookup(snap, elemPrefix(key, i), *s.elem)
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
	}

	switch s.kind {
	case kindSet:
		return dedupe(elems), nil
	case kindSortedSet:
		elems = dedupe(elems)
		less := lessOf(*s.elem)
		sort.SliceStable(elems, func(i, j int) bool {
			return less(elems[i], elems[j])
		})
		return elems, nil
	default:
		return elems, nil
	}
}

func dedupe(elems []any) []any {
	seen := make(map[string]struct{}, len(elems))
	out := elems[:0]
	for _, v := range elems {
		repr := fmt.Sprintf("%v", v)
		if _, ok := seen[repr]; ok {
			continue
		}
		seen[repr] = struct{}{}
		out = append(out, v)
	}
	return out
}

func lookupMap(snap *snapshot.Snapshot, key string, s Shape) (any, error) {
	prefix := key + "."

	var segs []string
	seen := make(map[string]struct{})
	snap.Range(func(k string, _ any) bool {
		if !strings.HasPrefix(k, prefix) {
			return true
		}
		seg := k[len(prefix):]
		if i := strings.Index(seg, "."); i >= 0 {
			seg = seg[:i]
		}
		if i := strings.Index(seg, snapshot.ArrayDelimiter); i >= 0 {
			seg = seg[:i]
		}
		if seg == "" {
			return true
		}
		if _, ok := seen[seg]; !ok {
			seen[seg] = struct{}{}
			segs = append(segs, seg)
		}
		return true
	})

	if len(segs) == 0 {
		if _, ok := snap.Lookup(key); ok {
			return nil, CoercionError{Key: key, Shape: s, Cause: errMapFromScalar}
		}
		if groupLen(snap, key) > 0 {
			return nil, CoercionError{Key: key, Shape: s, Cause: errScalarFromArray}
		}
		return nil, NoSuchKeyError{Key: key}
	}

	entries := make([]Entry, 0, len(segs))
	for _, seg := range segs {
		k, err := coerceScalar(key, seg, *s.key)
		if err != nil {
			return nil, err
		}
		v, err := lookup(snap, prefix+seg, *s.elem)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: k, Value: v})
	}

	if s.kind == kindSortedMap {
		less := lessOf(*s.key)
		sort.SliceStable(entries, func(i, j int) bool {
			return less(entries[i].Key, entries[j].Key)
		})
		return entries, nil
	}

	m := make(map[any]any, len(entries))
	for _, e := range entries {
		m[e.Key] = e.Value
	}
	return m, nil
}

// coerceScalar converts a stored leaf value to the requested scalar
// shape. The value is normalized to its textual representation first;
// each shape then owns its own parse so no format ever leaks truthy
// conversions, e.g. "1" is a valid int but never a valid bool.
func coerceScalar(key string, stored any, s Shape) (any, error) {
	if s.kind == kindAny {
		return stored, nil
	}

	str, err := cast.ToStringE(stored)
	if err != nil {
		return nil, CoercionError{Key: key, Shape: s, Cause: err}
	}

	fail := func(cause error) (any, error) {
		return nil, CoercionError{Key: key, Shape: s, Cause: cause}
	}

	switch s.kind {
	case kindBool:
		switch strings.ToLower(str) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return fail(errNotBoolLiteral)
		}
	case kindInt:
		n, err := strconv.ParseInt(str, 10, 0)
		if err != nil {
			return fail(err)
		}
		return int(n), nil
	case kindInt8:
		n, err := strconv.ParseInt(str, 10, 8)
		if err != nil {
			return fail(err)
		}
		return int8(n), nil
	case kindInt16:
		n, err := strconv.ParseInt(str, 10, 16)
		if err != nil {
			return fail(err)
		}
		return int16(n), nil
	case kindInt32:
		n, err := strconv.ParseInt(str, 10, 32)
		if err != nil {
			return fail(err)
		}
		return int32(n), nil
	case kindInt64:
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return fail(err)
		}
		return n, nil
	case kindUint:
		n, err := strconv.ParseUint(str, 10, 0)
		if err != nil {
			return fail(err)
		}
		return uint(n), nil
	case kindUint8:
		n, err := strconv.ParseUint(str, 10, 8)
		if err != nil {
			return fail(err)
		}
		return uint8(n), nil
	case kindUint16:
		n, err := strconv.ParseUint(str, 10, 16)
		if err != nil {
			return fail(err)
		}
		return uint16(n), nil
	case kindUint32:
		n, err := strconv.ParseUint(str, 10, 32)
		if err != nil {
			return fail(err)
		}
		return uint32(n), nil
	case kindUint64:
		n, err := strconv.ParseUint(str, 10, 64)
		if err != nil {
			return fail(err)
		}
		return n, nil
	case kindFloat32:
		f, err := strconv.ParseFloat(str, 32)
		if err != nil {
			return fail(err)
		}
		return float32(f), nil
	case kindFloat64:
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return fail(err)
		}
		return f, nil
	case kindBigInt:
		n, ok := new(big.Int).SetString(str, 10)
		if !ok {
			return fail(fmt.Errorf("%q is not a decimal integer", str))
		}
		return n, nil
	case kindBigFloat:
		f, _, err := big.ParseFloat(str, 10, bigFloatPrec, big.ToNearestEven)
		if err != nil {
			return fail(err)
		}
		return f, nil
	case kindChar:
		runes := []rune(str)
		if len(runes) != 1 {
			return fail(errNotSingleChar)
		}
		return runes[0], nil
	case kindString:
		return str, nil
	case kindDuration:
		d, err := cast.ToDurationE(str)
		if err != nil {
			return fail(err)
		}
		return d, nil
	case kindURL:
		u, err := url.Parse(str)
		if err != nil {
			return fail(err)
		}
		return u, nil
	case kindPath:
		return str, nil
	default:
		return fail(fmt.Errorf("%s is not a scalar shape", s))
	}
}

const bigFloatPrec = 256

// lessOf returns a comparator ordering values by the natural order of
// their shape: numerically for numeric shapes, textually otherwise.
func lessOf(s Shape) func(a, b any) bool {
	switch s.kind {
	case kindInt, kindInt8, kindInt16, kindInt32, kindInt64, kindChar, kindDuration:
		return func(a, b any) bool {
			return asInt64(a) < asInt64(b)
		}
	case kindUint, kindUint8, kindUint16, kindUint32, kindUint64:
		return func(a, b any) bool {
			return asUint64(a) < asUint64(b)
		}
	case kindFloat32, kindFloat64:
		return func(a, b any) bool {
			return asFloat64(a) < asFloat64(b)
		}
	case kindBigInt:
		return func(a, b any) bool {
			return a.(*big.Int).Cmp(b.(*big.Int)) < 0
		}
	case kindBigFloat:
		return func(a, b any) bool {
			return a.(*big.Float).Cmp(b.(*big.Float)) < 0
		}
	case kindBool:
		return func(a, b any) bool {
			return !a.(bool) && b.(bool)
		}
	default:
		return func(a, b any) bool {
			return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
		}
	}
}

func asInt64(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case time.Duration:
		return int64(x)
	default:
		return 0
	}
}

func asUint64(v any) uint64 {
	switch x := v.(type) {
	case uint:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	default:
		return 0
	}
}

func asFloat64(v any) float64 {
	switch x := v.(type) {
	case float32:
		return float64(x)
	case float64:
		return x
	default:
		return 0
	}
}
