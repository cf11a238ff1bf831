// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package strata

import "fmt"

type shapeKind int

const (
	kindAny shapeKind = iota
	kindBool
	kindInt
	kindInt8
	kindInt16
	kindInt32
	kindInt64
	kindUint
	kindUint8
	kindUint16
	kindUint32
	kindUint64
	kindFloat32
	kindFloat64
	kindBigInt
	kindBigFloat
	kindChar
	kindString
	kindDuration
	kindURL
	kindPath
	kindArray
	kindSet
	kindSortedSet
	kindMap
	kindSortedMap
)

// Shape is a reified description of the target type a stored value
// should be coerced to. It exists because the element and key types of
// containers are long gone by the time a lookup runs; the caller
// rebuilds them explicitly, e.g. SetOf(Int()) or MapOf(String(), Bool()).
// Shapes are immutable values and cheap to construct per call site.
type Shape struct {
	kind shapeKind
	elem *Shape
	key  *Shape
}

// Any matches whatever is stored: the raw leaf value for scalar keys
// and a []any for array groups.
func Any() Shape { return Shape{kind: kindAny} }

// Bool accepts only the case-insensitive literals "true" and "false".
func Bool() Shape { return Shape{kind: kindBool} }

func Int() Shape   { return Shape{kind: kindInt} }
func Int8() Shape  { return Shape{kind: kindInt8} }
func Int16() Shape { return Shape{kind: kindInt16} }
func Int32() Shape { return Shape{kind: kindInt32} }
func Int64() Shape { return Shape{kind: kindInt64} }

func Uint() Shape   { return Shape{kind: kindUint} }
func Uint8() Shape  { return Shape{kind: kindUint8} }
func Uint16() Shape { return Shape{kind: kindUint16} }
func Uint32() Shape { return Shape{kind: kindUint32} }
func Uint64() Shape { return Shape{kind: kindUint64} }

func Float32() Shape { return Shape{kind: kindFloat32} }
func Float64() Shape { return Shape{kind: kindFloat64} }

// BigInt coerces to *big.Int for values outside the int64 range.
func BigInt() Shape { return Shape{kind: kindBigInt} }

// BigFloat coerces to *big.Float for values needing more precision
// than a float64 carries.
func BigFloat() Shape { return Shape{kind: kindBigFloat} }

// Char accepts only single rune values.
func Char() Shape { return Shape{kind: kindChar} }

func String() Shape { return Shape{kind: kindString} }

// Duration accepts time.ParseDuration syntax or a bare integer of
// nanoseconds.
func Duration() Shape { return Shape{kind: kindDuration} }

// URL coerces to *url.URL.
func URL() Shape { return Shape{kind: kindURL} }

// Path treats the value as a file system path.
func Path() Shape { return Shape{kind: kindPath} }

// ArrayOf coerces an array group to a []any of elem shaped values,
// preserving element order.
func ArrayOf(elem Shape) Shape {
	e := elem
	return Shape{kind: kindArray, elem: &e}
}

// ListOf is the ordered sequence container; it is interchangeable with
// ArrayOf.
func ListOf(elem Shape) Shape {
	return ArrayOf(elem)
}

// SetOf coerces an array group to a []any of elem shaped values with
// duplicates removed, keeping first occurrence order.
func SetOf(elem Shape) Shape {
	e := elem
	return Shape{kind: kindSet, elem: &e}
}

// SortedSetOf is SetOf with the elements sorted by their natural order.
func SortedSetOf(elem Shape) Shape {
	e := elem
	return Shape{kind: kindSortedSet, elem: &e}
}

// MapOf coerces the sub-tree below the key to a map[any]any whose keys
// and values are coerced to the given shapes.
func MapOf(key, value Shape) Shape {
	k, v := key, value
	return Shape{kind: kindMap, key: &k, elem: &v}
}

// SortedMapOf coerces the sub-tree below the key to a []Entry sorted by
// the natural order of the coerced keys.
func SortedMapOf(key, value Shape) Shape {
	k, v := key, value
	return Shape{kind: kindSortedMap, key: &k, elem: &v}
}

// Entry is a single key value pair of a sorted map coercion.
type Entry struct {
	Key   any
	Value any
}

// String implements the fmt.Stringer interface.
func (s Shape) String() string {
	switch s.kind {
	case kindAny:
		return "any"
	case kindBool:
		return "bool"
	case kindInt:
		return "int"
	case kindInt8:
		return "int8"
	case kindInt16:
		return "int16"
	case kindInt32:
		return "int32"
	case kindInt64:
		return "int64"
	case kindUint:
		return "uint"
	case kindUint8:
		return "uint8"
	case kindUint16:
		return "uint16"
	case kindUint32:
		return "uint32"
	case kindUint64:
		return "uint64"
	case kindFloat32:
		return "float32"
	case kindFloat64:
		return "float64"
	case kindBigInt:
		return "big.Int"
	case kindBigFloat:
		return "big.Float"
	case kindChar:
		return "char"
	case kindString:
		return "string"
	case kindDuration:
		return "duration"
	case kindURL:
		return "url"
	case kindPath:
		return "path"
	case kindArray:
		return fmt.Sprintf("[]%s", *s.elem)
	case kindSet:
		return fmt.Sprintf("set[%s]", *s.elem)
	case kindSortedSet:
		return fmt.Sprintf("sorted set[%s]", *s.elem)
	case kindMap:
		return fmt.Sprintf("map[%s]%s", *s.key, *s.elem)
	case kindSortedMap:
		return fmt.Sprintf("sorted map[%s]%s", *s.key, *s.elem)
	default:
		return "unknown"
	}
}
