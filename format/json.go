// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package format

import (
	"io"

	"github.com/z5labs/strata/snapshot"

	"github.com/hjson/hjson-go/v4"
)

// Json handles documents whose underlying format is JSON or HJSON.
// HJSON is a superset of JSON, so the document is parsed with the HJSON
// reader either way, tolerating comments, trailing commas and unquoted
// keys before the tree is flattened.
type Json struct{}

// Parse implements the Handler interface.
func (Json) Parse(source string, r io.Reader) (*snapshot.Snapshot, error) {
	b, err := readDocument(r)
	if err != nil {
		return nil, Error{Source: source, Format: "json", Cause: err}
	}
	if len(b) == 0 {
		return snapshot.Empty(), nil
	}

	var v any
	err = hjson.Unmarshal(b, &v)
	if err != nil {
		return nil, Error{Source: source, Format: "json", Cause: err}
	}
	return flattenDocument(jsonTree(v)), nil
}

// jsonTree rewrites the hjson value tree into the ordered document
// representation the flattener expects. hjson decodes objects as
// *hjson.OrderedMap which retains member order.
func jsonTree(v any) any {
	switch x := v.(type) {
	case *hjson.OrderedMap:
		obj := make(object, 0, len(x.Keys))
		for _, k := range x.Keys {
			obj = append(obj, member{key: k, value: jsonTree(x.Map[k])})
		}
		return obj
	case []any:
		elems := make([]any, len(x))
		for i, elem := range x {
			elems[i] = jsonTree(elem)
		}
		return elems
	default:
		return v
	}
}
