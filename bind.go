// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package strata

import (
	"fmt"
	"math/big"
	"net/url"
	"reflect"
	"time"
	"unicode"
	"unicode/utf8"
)

// InvalidBindingShapeError occurs at bind time when a capability
// struct field can not be backed by configuration lookups.
type InvalidBindingShapeError struct {
	Field string
	Type  reflect.Type
}

// Error implements the error interface.
func (e InvalidBindingShapeError) Error() string {
	return fmt.Sprintf("strata: can not bind field %s of type %s", e.Field, e.Type)
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	bigIntType   = reflect.TypeOf((*big.Int)(nil))
	bigFloatType = reflect.TypeOf((*big.Float)(nil))
	urlType      = reflect.TypeOf((*url.URL)(nil))
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
)

// Bind populates the function fields of capability with live lookups
// against the Provider. capability must be a pointer to a struct whose
// exported fields are niladic functions returning either (T, error) or
// just T. Each call of a bound function resolves its key against the
// snapshot current at call time, so values observed through a bound
// capability follow reloads. Fields map to child keys of prefix by
// their name with the first rune lowered, overridable with the
// "config" struct tag. The T only variant panics when the lookup
// fails.
func (p *Provider) Bind(prefix string, capability any) error {
	rv := reflect.ValueOf(capability)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return InvalidBindingShapeError{Type: reflect.TypeOf(capability)}
	}

	sv := rv.Elem()
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Type.Kind() != reflect.Func {
			return InvalidBindingShapeError{Field: field.Name, Type: field.Type}
		}

		fn, err := p.bindFunc(bindKey(prefix, field), field)
		if err != nil {
			return err
		}
		sv.Field(i).Set(fn)
	}
	return nil
}

func bindKey(prefix string, field reflect.StructField) string {
	name := field.Tag.Get("config")
	if name == "" {
		name = lowerFirst(field.Name)
	}
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[n:]
}

func (p *Provider) bindFunc(key string, field reflect.StructField) (reflect.Value, error) {
	ft := field.Type
	if ft.NumIn() != 0 {
		return reflect.Value{}, InvalidBindingShapeError{Field: field.Name, Type: ft}
	}

	var valueType reflect.Type
	var returnsErr bool
	switch ft.NumOut() {
	case 1:
		valueType = ft.Out(0)
	case 2:
		if ft.Out(1) != errorType {
			return reflect.Value{}, InvalidBindingShapeError{Field: field.Name, Type: ft}
		}
		valueType = ft.Out(0)
		returnsErr = true
	default:
		return reflect.Value{}, InvalidBindingShapeError{Field: field.Name, Type: ft}
	}

	shape, ok := shapeOfType(valueType)
	if !ok {
		return reflect.Value{}, InvalidBindingShapeError{Field: field.Name, Type: ft}
	}

	fn := reflect.MakeFunc(ft, func(_ []reflect.Value) []reflect.Value {
		v, err := lookup(p.Snapshot(), key, shape)
		if err == nil {
			var rval reflect.Value
			rval, err = convertTo(v, valueType)
			if err == nil {
				if returnsErr {
					return []reflect.Value{rval, reflect.Zero(errorType)}
				}
				return []reflect.Value{rval}
			}
		}
		if !returnsErr {
			panic(err)
		}
		return []reflect.Value{reflect.Zero(valueType), reflect.ValueOf(err)}
	})
	return fn, nil
}

// shapeOfType maps a Go type to the shape its lookups are resolved
// with. Named types which are not one of the special cased kinds fall
// back to their underlying kind.
func shapeOfType(t reflect.Type) (Shape, bool) {
	switch t {
	case durationType:
		return Duration(), true
	case bigIntType:
		return BigInt(), true
	case bigFloatType:
		return BigFloat(), true
	case urlType:
		return URL(), true
	}

	switch t.Kind() {
	case reflect.Bool:
		return Bool(), true
	case reflect.String:
		return String(), true
	case reflect.Int:
		return Int(), true
	case reflect.Int8:
		return Int8(), true
	case reflect.Int16:
		return Int16(), true
	case reflect.Int32:
		return Int32(), true
	case reflect.Int64:
		return Int64(), true
	case reflect.Uint:
		return Uint(), true
	case reflect.Uint8:
		return Uint8(), true
	case reflect.Uint16:
		return Uint16(), true
	case reflect.Uint32:
		return Uint32(), true
	case reflect.Uint64:
		return Uint64(), true
	case reflect.Float32:
		return Float32(), true
	case reflect.Float64:
		return Float64(), true
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return Any(), true
		}
		return Shape{}, false
	case reflect.Slice:
		elem, ok := shapeOfType(t.Elem())
		if !ok {
			return Shape{}, false
		}
		return ArrayOf(elem), true
	case reflect.Map:
		key, ok := shapeOfType(t.Key())
		if !ok {
			return Shape{}, false
		}
		elem, ok := shapeOfType(t.Elem())
		if !ok {
			return Shape{}, false
		}
		return MapOf(key, elem), true
	default:
		return Shape{}, false
	}
}

// convertTo reshapes a looked up value into the bound function's
// return type. Sequences arrive as []any and maps as map[any]any, so
// both convert element-wise.
func convertTo(v any, t reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if v == nil {
		return reflect.Zero(t), nil
	}
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(t) && rv.Kind() != reflect.Slice && rv.Kind() != reflect.Map {
		return rv.Convert(t), nil
	}

	switch t.Kind() {
	case reflect.Slice:
		elems, ok := v.([]any)
		if !ok {
			return reflect.Value{}, fmt.Errorf("strata: expected sequence, got %T", v)
		}
		out := reflect.MakeSlice(t, len(elems), len(elems))
		for i, e := range elems {
			ev, err := convertTo(e, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}
		return out, nil
	case reflect.Map:
		entries, ok := v.(map[any]any)
		if !ok {
			return reflect.Value{}, fmt.Errorf("strata: expected map, got %T", v)
		}
		out := reflect.MakeMapWithSize(t, len(entries))
		for k, e := range entries {
			kv, err := convertTo(k, t.Key())
			if err != nil {
				return reflect.Value{}, err
			}
			ev, err := convertTo(e, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(kv, ev)
		}
		return out, nil
	default:
		return reflect.Value{}, fmt.Errorf("strata: can not represent %T as %s", v, t)
	}
}
