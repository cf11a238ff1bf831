// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package format

import (
	"errors"
	"io"

	"github.com/z5labs/strata/snapshot"

	"gopkg.in/yaml.v3"
)

// Yaml handles documents whose underlying format is YAML.
type Yaml struct{}

// Parse implements the Handler interface. Document order is preserved
// by walking the yaml node tree instead of decoding into a map.
func (Yaml) Parse(source string, r io.Reader) (*snapshot.Snapshot, error) {
	b, err := readDocument(r)
	if err != nil {
		return nil, Error{Source: source, Format: "yaml", Cause: err}
	}

	var root yaml.Node
	err = yaml.Unmarshal(b, &root)
	if err != nil {
		return nil, Error{Source: source, Format: "yaml", Cause: err}
	}

	tree, err := yamlTree(&root)
	if err != nil {
		return nil, Error{Source: source, Format: "yaml", Cause: err}
	}
	return flattenDocument(tree), nil
}

var errNonScalarKey = errors.New("mapping keys must be scalars")

func yamlTree(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		// empty document
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlTree(n.Content[0])
	case yaml.MappingNode:
		obj := make(object, 0, len(n.Content)/2)
		for i := 0; i < len(n.Content); i += 2 {
			keyNode := n.Content[i]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, errNonScalarKey
			}

			value, err := yamlTree(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj = append(obj, member{key: keyNode.Value, value: value})
		}
		return obj, nil
	case yaml.SequenceNode:
		elems := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			elem, err := yamlTree(c)
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
		}
		return elems, nil
	case yaml.AliasNode:
		return yamlTree(n.Alias)
	default:
		var v any
		err := n.Decode(&v)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}
