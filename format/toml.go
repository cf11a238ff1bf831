// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package format

import (
	"io"

	"github.com/z5labs/strata/snapshot"

	"github.com/pelletier/go-toml/v2"
)

// Toml handles documents whose underlying format is TOML.
type Toml struct{}

// Parse implements the Handler interface. go-toml does not expose
// document order, so keys are sorted lexically per table to keep the
// flattened snapshot deterministic.
func (Toml) Parse(source string, r io.Reader) (*snapshot.Snapshot, error) {
	b, err := readDocument(r)
	if err != nil {
		return nil, Error{Source: source, Format: "toml", Cause: err}
	}

	m := make(map[string]any)
	err = toml.Unmarshal(b, &m)
	if err != nil {
		return nil, Error{Source: source, Format: "toml", Cause: err}
	}
	return Flatten(m), nil
}
