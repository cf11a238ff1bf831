// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package strata

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/z5labs/strata/snapshot"

	"github.com/go-viper/mapstructure/v2"
)

// UnmarshalTypeError occurs when a configuration value can not be
// decoded into the corresponding field of the target struct.
type UnmarshalTypeError struct {
	From  reflect.Type
	To    reflect.Type
	Cause error
}

// Error implements the error interface.
func (e UnmarshalTypeError) Error() string {
	return fmt.Sprintf("strata: failed to unmarshal %s into %s: %s", e.From, e.To, e.Cause)
}

// Unwrap implements the implicit interface for usage with errors.Is and errors.As.
func (e UnmarshalTypeError) Unwrap() error {
	return e.Cause
}

// Unmarshal decodes the subtree of the merged configuration rooted at
// prefix into v, which must be a pointer to a struct. Struct fields
// map to child keys by their lowercased name, overridable with the
// "config" struct tag. Nested structs, slices and maps follow nested
// keys and array groups. An empty prefix decodes the whole
// configuration.
func (p *Provider) Unmarshal(prefix string, v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "config",
		Result:  v,
		DecodeHook: composeDecodeHooks(
			textUnmarshalerHookFunc(),
			timeDurationHookFunc(),
		),
		// properties sources store every leaf as a string
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(expand(p.Snapshot(), prefix))
}

// expand rebuilds the nested document structure under prefix from the
// flat snapshot keys.
func expand(snap *snapshot.Snapshot, prefix string) map[string]any {
	root := make(map[string]any)
	snap.Range(func(k string, v any) bool {
		rel, ok := childKey(k, prefix)
		if !ok {
			return true
		}
		insert(root, tokenize(rel), v)
		return true
	})
	return root
}

func childKey(key, prefix string) (string, bool) {
	if prefix == "" {
		return key, true
	}
	rel, ok := strings.CutPrefix(key, prefix+".")
	return rel, ok
}

type pathToken struct {
	name  string
	index int
	isIdx bool
}

// tokenize splits a flat key into its map segments and array indices,
// e.g. "servers%ARRAY_SEP%0.host" becomes [servers, 0, host].
func tokenize(key string) []pathToken {
	var toks []pathToken
	for seg := range strings.SplitSeq(key, ".") {
		parts := strings.Split(seg, snapshot.ArrayDelimiter)
		toks = append(toks, pathToken{name: parts[0]})
		for _, p := range parts[1:] {
			i, err := strconv.Atoi(p)
			if err != nil {
				continue
			}
			toks = append(toks, pathToken{index: i, isIdx: true})
		}
	}
	return toks
}

func insert(m map[string]any, toks []pathToken, v any) {
	m[toks[0].name] = insertInto(m[toks[0].name], toks[1:], v)
}

func insertInto(c any, toks []pathToken, v any) any {
	if len(toks) == 0 {
		return v
	}

	t := toks[0]
	if t.isIdx {
		s, _ := c.([]any)
		for len(s) <= t.index {
			s = append(s, nil)
		}
		s[t.index] = insertInto(s[t.index], toks[1:], v)
		return s
	}

	m, _ := c.(map[string]any)
	if m == nil {
		m = make(map[string]any)
	}
	m[t.name] = insertInto(m[t.name], toks[1:], v)
	return m
}

var errInvalidDecodeCondition = errors.New("strata: invalid decode condition")

func composeDecodeHooks(hs ...mapstructure.DecodeHookFunc) mapstructure.DecodeHookFuncValue {
	return func(f, t reflect.Value) (any, error) {
		for _, h := range hs {
			v, err := mapstructure.DecodeHookExec(h, f, t)
			if err == nil {
				return v, nil
			}
			if err == errInvalidDecodeCondition {
				continue
			}
			return nil, UnmarshalTypeError{
				From:  f.Type(),
				To:    t.Type(),
				Cause: err,
			}
		}
		return f.Interface(), nil
	}
}

func textUnmarshalerHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return nil, errInvalidDecodeCondition
		}
		result := reflect.New(t).Interface()
		u, ok := result.(encoding.TextUnmarshaler)
		if !ok {
			return nil, errInvalidDecodeCondition
		}
		err := u.UnmarshalText([]byte(data.(string)))
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

func timeDurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeOf(time.Duration(0)) {
			return nil, errInvalidDecodeCondition
		}

		// yaml leaves decode as int, toml as int64; both count nanoseconds
		switch f.Kind() {
		case reflect.String:
			return time.ParseDuration(data.(string))
		case reflect.Int, reflect.Int32, reflect.Int64:
			return time.Duration(reflect.ValueOf(data).Int()), nil
		case reflect.Float32, reflect.Float64:
			return time.Duration(reflect.ValueOf(data).Float()), nil
		default:
			return nil, errInvalidDecodeCondition
		}
	}
}
