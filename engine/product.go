package engine

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/mewkiz/bitweave/bitio"
	"github.com/mewkiz/bitweave/codec"
	"github.com/mewkiz/bitweave/ctx"
	"github.com/mewkiz/bitweave/decl"
	"github.com/mewkiz/bitweave/errs"
	"github.com/mewkiz/pkg/dbg"
)

// ReadProduct runs the read procedure of §4.5 for a product Declaration,
// field by field, in declared order.
func ReadProduct(d *decl.Declaration, r *bitio.Reader, parentCtx ctx.Ctx, hooks *decl.Hooks) (reflect.Value, error) {
	return ReadProductSeeded(d, r, parentCtx, hooks, nil)
}

// ReadProductSeeded is ReadProduct with a pre-bound scope, used by
// ReadSum to hand a catch-all variant's discriminator-storage field (see
// decl.Field.IsDiscriminator) the already-decoded discriminator value
// without re-reading it from the stream.
func ReadProductSeeded(d *decl.Declaration, r *bitio.Reader, parentCtx ctx.Ctx, hooks *decl.Hooks, seed map[string]any) (reflect.Value, error) {
	out := reflect.New(d.Type).Elem()
	scope := decl.NewScope(parentCtx)
	for k, v := range seed {
		scope.Set(k, v)
	}

	if d.HasMagic {
		if err := codec.ReadMagic(r, d.Magic); err != nil {
			return reflect.Value{}, err
		}
	}

	for i := range d.Fields {
		f := &d.Fields[i]
		fv := out.Field(f.Index)

		if f.IsDiscriminator {
			bound, ok := scope.Get(discriminatorScopeKey)
			if !ok {
				return reflect.Value{}, errs.InvalidParamf("engine: field %s: marked discriminator but no discriminator is in scope", f.Name)
			}
			fv.Set(reflect.ValueOf(bound).Convert(fv.Type()))
			scope.Set(f.Name, fv.Interface())
			dbg.Println("read: field", f.Name, "bound from discriminator:", bound)
			continue
		}

		if f.HasMagic {
			if err := codec.ReadMagic(r, f.Magic); err != nil {
				dbg.Println("read: field", f.Name, "magic mismatch:", err)
				return reflect.Value{}, err
			}
		}
		if f.PadBitsBefore > 0 {
			if err := r.SkipBits(f.PadBitsBefore); err != nil {
				return reflect.Value{}, err
			}
		}
		if f.PadBytesBefore > 0 {
			if err := r.SkipBytes(f.PadBytesBefore); err != nil {
				return reflect.Value{}, err
			}
		}

		present := true
		if f.HasCond {
			ok, err := resolveCond(f.Cond, scope, hooks)
			if err != nil {
				return reflect.Value{}, err
			}
			present = ok
		}
		if f.Skip {
			present = false
		}
		if f.HasCond || f.Skip {
			dbg.Println("read: field", f.Name, "present:", present)
		}

		var val reflect.Value
		if !present {
			dv, err := defaultValue(f, fv.Type())
			if err != nil {
				return reflect.Value{}, err
			}
			val = dv
		} else {
			cc, err := childCtx(parentCtx, d.Endian, f, scope)
			if err != nil {
				return reflect.Value{}, err
			}
			dbg.Println("read: field", f.Name, "at order", cc.Order)
			v, err := readField(f, fv.Type(), r, cc, hooks, scope)
			if err != nil {
				return reflect.Value{}, err
			}
			val = v

			if f.HasMap {
				fn, ok := hooks.ResolveMap(f.MapHook)
				if !ok {
					return reflect.Value{}, errs.InvalidParamf("engine: field %s: map hook %q is not registered", f.Name, f.MapHook)
				}
				mapped, err := fn(val.Interface(), scope)
				if err != nil {
					return reflect.Value{}, err
				}
				val = reflect.ValueOf(mapped)
			}
			if f.HasAssert {
				fn, ok := hooks.ResolveAssert(f.AssertHook)
				if !ok {
					return reflect.Value{}, errs.InvalidParamf("engine: field %s: assert hook %q is not registered", f.Name, f.AssertHook)
				}
				if err := fn(val.Interface(), scope); err != nil {
					dbg.Println("read: field", f.Name, "assert failed:", err)
					return reflect.Value{}, errs.NewAssertion(f.Name, err.Error())
				}
			}
			if f.HasAssertEq {
				if err := checkAssertEq(f, val, scope); err != nil {
					return reflect.Value{}, err
				}
			}
		}

		if !f.Temp {
			fv.Set(val)
		}
		scope.Set(f.Name, val.Interface())

		if present {
			if f.PadBitsAfter > 0 {
				if err := r.SkipBits(f.PadBitsAfter); err != nil {
					return reflect.Value{}, err
				}
			}
			if f.PadBytesAfter > 0 {
				if err := r.SkipBytes(f.PadBytesAfter); err != nil {
					return reflect.Value{}, err
				}
			}
		}
	}
	return out, nil
}

// WriteProduct runs the write procedure of §4.5.
func WriteProduct(d *decl.Declaration, v reflect.Value, w *bitio.Writer, parentCtx ctx.Ctx, hooks *decl.Hooks) error {
	scope := decl.NewScope(parentCtx)

	if d.HasMagic {
		if err := codec.WriteMagic(w, d.Magic); err != nil {
			return err
		}
	}

	for i := range d.Fields {
		f := &d.Fields[i]
		fieldType := d.Type.Field(f.Index).Type

		if f.IsDiscriminator {
			fv := v.Field(f.Index)
			scope.Set(f.Name, fv.Interface())
			continue
		}

		var fv reflect.Value
		if f.Temp {
			rv, err := rematerialize(f, fieldType, scope, hooks)
			if err != nil {
				return err
			}
			fv = rv
		} else {
			fv = v.Field(f.Index)
		}
		if f.HasUpdate {
			fn, ok := hooks.ResolveUpdate(f.UpdateHook)
			if !ok {
				return errs.InvalidParamf("engine: field %s: update hook %q is not registered", f.Name, f.UpdateHook)
			}
			uv, err := fn(scope)
			if err != nil {
				return err
			}
			fv = reflect.ValueOf(uv)
		}

		present := true
		if f.HasCond {
			ok, err := resolveCond(f.Cond, scope, hooks)
			if err != nil {
				return err
			}
			present = ok
		}
		if f.Skip {
			present = false
		}
		scope.Set(f.Name, fv.Interface())

		// Magic and leading padding are written whether or not the field
		// is present, mirroring ReadProductSeeded, which consumes them
		// before evaluating cond/skip.
		if f.HasMagic {
			if err := codec.WriteMagic(w, f.Magic); err != nil {
				return err
			}
		}
		if f.PadBitsBefore > 0 {
			if err := w.WriteBits(0, f.PadBitsBefore); err != nil {
				return err
			}
		}
		if f.PadBytesBefore > 0 {
			if err := w.WriteBytesAligned(make([]byte, f.PadBytesBefore)); err != nil {
				return err
			}
		}
		if !present {
			continue
		}

		cc, err := childCtx(parentCtx, d.Endian, f, scope)
		if err != nil {
			return err
		}
		dbg.Println("write: field", f.Name, "at order", cc.Order)
		if err := writeField(f, fv, w, cc, hooks); err != nil {
			return err
		}

		if f.PadBitsAfter > 0 {
			if err := w.WriteBits(0, f.PadBitsAfter); err != nil {
				return err
			}
		}
		if f.PadBytesAfter > 0 {
			if err := w.WriteBytesAligned(make([]byte, f.PadBytesAfter)); err != nil {
				return err
			}
		}
	}
	return nil
}

func rematerialize(f *decl.Field, fieldType reflect.Type, scope *decl.Scope, hooks *decl.Hooks) (reflect.Value, error) {
	if f.HasMap {
		if fn, ok := hooks.ResolveMap(f.MapHook); ok {
			mapped, err := fn(reflect.Zero(fieldType).Interface(), scope)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(mapped), nil
		}
	}
	return defaultValue(f, fieldType)
}

func checkAssertEq(f *decl.Field, val reflect.Value, scope *decl.Scope) error {
	want, err := resolveRef(f.AssertEq, scope)
	if err != nil {
		return err
	}
	got, ok := toInt64Value(val)
	if !ok {
		return errs.InvalidParamf("engine: field %s: assert_eq on non-integer field", f.Name)
	}
	if got != int64(want) {
		return errs.NewAssertion(f.Name, fmt.Sprintf("expected %d, got %d", want, got))
	}
	return nil
}

func toInt64Value(v reflect.Value) (int64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint()), true
	case reflect.Bool:
		if v.Bool() {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// defaultValue parses f.Default (a decimal/bool/string literal) into
// fieldType, or returns fieldType's zero value when no default is given.
func defaultValue(f *decl.Field, fieldType reflect.Type) (reflect.Value, error) {
	if !f.HasDefault {
		return reflect.Zero(fieldType), nil
	}
	out := reflect.New(fieldType).Elem()
	switch out.Kind() {
	case reflect.Bool:
		b, err := strconv.ParseBool(f.Default)
		if err != nil {
			return reflect.Value{}, errs.InvalidParamf("engine: field %s: invalid default %q for bool", f.Name, f.Default)
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(f.Default, 10, 64)
		if err != nil {
			return reflect.Value{}, errs.InvalidParamf("engine: field %s: invalid default %q for %s", f.Name, f.Default, out.Kind())
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(f.Default, 10, 64)
		if err != nil {
			return reflect.Value{}, errs.InvalidParamf("engine: field %s: invalid default %q for %s", f.Name, f.Default, out.Kind())
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		x, err := strconv.ParseFloat(f.Default, 64)
		if err != nil {
			return reflect.Value{}, errs.InvalidParamf("engine: field %s: invalid default %q for %s", f.Name, f.Default, out.Kind())
		}
		out.SetFloat(x)
	case reflect.String:
		out.SetString(f.Default)
	default:
		return reflect.Zero(fieldType), nil
	}
	return out, nil
}
