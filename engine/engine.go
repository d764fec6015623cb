// Package engine implements the lowering step (C7): interpreting a cached,
// validated decl.Declaration against a live reflect.Value to produce the
// read and write behavior a hand-written procedure would implement for
// that declaration, using package bitio for I/O and package codec for
// primitive and container encoding.
//
// Every exported entry point takes a reflect.Type/reflect.Value pair
// rather than a generic type parameter, because a nested field's concrete
// type is only known once its parent's Declaration has been inspected at
// runtime; the generic, type-safe FromBytes/ToBytes wrappers live in the
// root package and call into here.
package engine

import (
	"reflect"

	"github.com/mewkiz/bitweave/bitio"
	"github.com/mewkiz/bitweave/codec"
	"github.com/mewkiz/bitweave/ctx"
	"github.com/mewkiz/bitweave/decl"
	"github.com/mewkiz/bitweave/errs"
)

var uint128Type = reflect.TypeOf(codec.Uint128{})

// childCtx synthesizes the context passed to a field's own read/write
// (synthesis rules, §4.4): byte order falls back to the declaration's
// order; bit/byte width, when present, overrides the child's native width;
// ctx attribute values resolve sibling fields already in scope and are
// appended in order.
func childCtx(parent ctx.Ctx, declOrder ctx.ByteOrder, f *decl.Field, scope *decl.Scope) (ctx.Ctx, error) {
	c := parent
	if f.EndianSet {
		c = c.WithOrder(f.Endian)
	} else {
		c = c.WithOrder(declOrder)
	}
	switch {
	case f.HasBitWidth:
		c = c.WithBitWidth(f.BitWidth)
	case f.HasByteSize:
		c = c.WithBitWidth(f.ByteSize * 8)
	}
	if len(f.CtxFields) > 0 {
		values := make([]any, 0, len(f.CtxFields))
		for _, name := range f.CtxFields {
			v, ok := scope.Get(name)
			if !ok {
				return ctx.Ctx{}, errs.InvalidParamf("engine: field %s: ctx references unbound field %q", f.Name, name)
			}
			values = append(values, v)
		}
		c = c.WithExtra(values...)
	}
	return c, nil
}

// resolveRef evaluates a decl.Ref (a literal integer or a sibling field
// name) against scope.
func resolveRef(ref decl.Ref, scope *decl.Scope) (int, error) {
	if ref.IsLiteral {
		return ref.Literal, nil
	}
	v, ok := scope.Int64(ref.Field)
	if !ok {
		return 0, errs.InvalidParamf("engine: reference to unbound or non-numeric field %q", ref.Field)
	}
	return int(v), nil
}

// resolveCond evaluates a decl.Ref used as a cond/boolean check: a
// registered hook if the name matches one, else a sibling field's
// truthiness.
func resolveCond(ref decl.Ref, scope *decl.Scope, hooks *decl.Hooks) (bool, error) {
	if ref.IsLiteral {
		return ref.Literal != 0, nil
	}
	if fn, ok := hooks.ResolveCond(ref.Field); ok {
		return fn(scope)
	}
	v, ok := scope.Int64(ref.Field)
	if !ok {
		return false, errs.InvalidParamf("engine: cond: %q is neither a registered hook nor a bound sibling field", ref.Field)
	}
	return v != 0, nil
}

// ReadValue reads one value of rt — a primitive, a nested product struct,
// a registered sum interface, codec.Uint128, or a fixed-length Go array of
// any of those — under c. It is the recursive core that field-level
// container logic (sequences, optionals, maps) calls per element.
func ReadValue(rt reflect.Type, r *bitio.Reader, c ctx.Ctx, hooks *decl.Hooks) (reflect.Value, error) {
	switch {
	case rt == uint128Type:
		v, err := codec.ReadUint128(r, c)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(v), nil
	case rt.Kind() == reflect.Ptr:
		elem, err := ReadValue(rt.Elem(), r, c, hooks)
		if err != nil {
			return reflect.Value{}, err
		}
		pv := reflect.New(rt.Elem())
		pv.Elem().Set(elem)
		return pv, nil
	case rt.Kind() == reflect.Interface:
		sd, err := decl.SumForType(rt)
		if err != nil {
			return reflect.Value{}, err
		}
		return ReadSum(sd, r, c, hooks)
	case rt.Kind() == reflect.Struct:
		d, err := decl.ForType(rt)
		if err != nil {
			return reflect.Value{}, err
		}
		return ReadProduct(d, r, c, hooks)
	case rt.Kind() == reflect.Array:
		out := reflect.New(rt).Elem()
		elemType := rt.Elem()
		for i := 0; i < rt.Len(); i++ {
			ev, err := ReadValue(elemType, r, c, hooks)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}
		return out, nil
	case codec.IsIntegerOrBoolOrFloatKind(rt.Kind()):
		out := reflect.New(rt).Elem()
		if err := codec.ReadIntoField(r, c, out); err != nil {
			return reflect.Value{}, err
		}
		return out, nil
	default:
		return reflect.Value{}, errs.InvalidParamf("engine: ReadValue: unsupported type %s", rt)
	}
}

// WriteValue is the write-side counterpart to ReadValue.
func WriteValue(v reflect.Value, w *bitio.Writer, c ctx.Ctx, hooks *decl.Hooks) error {
	rt := v.Type()
	switch {
	case rt == uint128Type:
		return codec.WriteUint128(v.Interface().(codec.Uint128), w, c)
	case rt.Kind() == reflect.Ptr:
		if v.IsNil() {
			return errs.InvalidParamf("engine: WriteValue: nil pointer for type %s", rt)
		}
		return WriteValue(v.Elem(), w, c, hooks)
	case rt.Kind() == reflect.Interface:
		sd, err := decl.SumForType(rt)
		if err != nil {
			return err
		}
		return WriteSum(sd, v, w, c, hooks)
	case rt.Kind() == reflect.Struct:
		d, err := decl.ForType(rt)
		if err != nil {
			return err
		}
		return WriteProduct(d, v, w, c, hooks)
	case rt.Kind() == reflect.Array:
		for i := 0; i < rt.Len(); i++ {
			if err := WriteValue(v.Index(i), w, c, hooks); err != nil {
				return err
			}
		}
		return nil
	case codec.IsIntegerOrBoolOrFloatKind(rt.Kind()):
		return codec.WriteFromField(w, c, v)
	default:
		return errs.InvalidParamf("engine: WriteValue: unsupported type %s", rt)
	}
}
