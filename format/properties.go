// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package format

import (
	"io"

	"github.com/z5labs/strata/snapshot"

	"github.com/magiconair/properties"
)

// Properties handles flat key=value documents. It is the fallback for
// any source name whose suffix matches no other handler.
type Properties struct{}

// Parse implements the Handler interface. Values are kept verbatim;
// ${...} references are not expanded.
func (Properties) Parse(source string, r io.Reader) (*snapshot.Snapshot, error) {
	b, err := readDocument(r)
	if err != nil {
		return nil, Error{Source: source, Format: "properties", Cause: err}
	}

	loader := properties.Loader{
		Encoding:         properties.UTF8,
		DisableExpansion: true,
	}
	p, err := loader.LoadBytes(b)
	if err != nil {
		return nil, Error{Source: source, Format: "properties", Cause: err}
	}

	var sb snapshot.Builder
	for _, k := range p.Keys() {
		v, _ := p.Get(k)
		sb.Set(k, v)
	}
	return sb.Snapshot(), nil
}
