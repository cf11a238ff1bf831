// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package format normalizes configuration documents of different
// serialization formats into flat snapshots.
package format

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/z5labs/strata/internal/try"
	"github.com/z5labs/strata/snapshot"
)

// Handler parses a single configuration document into a flat snapshot.
// The source name identifies the document in errors, it is not used to
// locate any data.
type Handler interface {
	Parse(source string, r io.Reader) (*snapshot.Snapshot, error)
}

// Select returns the Handler for the given source name based on its
// suffix, matched case-insensitively. Unknown suffixes fall back to the
// properties Handler so Select never fails.
func Select(name string) Handler {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return Yaml{}
	case strings.HasSuffix(lower, ".json"), strings.HasSuffix(lower, ".hjson"):
		return Json{}
	case strings.HasSuffix(lower, ".toml"), strings.HasSuffix(lower, ".tml"):
		return Toml{}
	default:
		return Properties{}
	}
}

// Error occurs when a document cannot be parsed in its declared format.
type Error struct {
	// Source identifies the offending document.
	Source string

	// Format names the handler which rejected the document.
	Format string

	Cause error
}

// Error implements the [builtin.error] interface.
func (e Error) Error() string {
	return fmt.Sprintf("unable to parse %s as %s: %s", e.Source, e.Format, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e Error) Unwrap() error {
	return e.Cause
}

type invalidEncodingError struct{}

func (invalidEncodingError) Error() string {
	return "document is not valid UTF-8"
}

// readDocument drains r, closing it if it is an io.Closer, and rejects
// byte streams which are not valid UTF-8.
func readDocument(r io.Reader) (_ []byte, err error) {
	defer try.Close(&err, r)

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(b) {
		return nil, invalidEncodingError{}
	}
	return b, nil
}
