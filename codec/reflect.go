package codec

import (
	"math"
	"reflect"

	"github.com/mewkiz/bitweave/bitio"
	"github.com/mewkiz/bitweave/ctx"
	"github.com/mewkiz/bitweave/errs"
)

// kindNativeBits reports the native bit width and signedness of an integer
// reflect.Kind. int/uint are treated as 64-bit, matching their size on
// every platform this framework targets.
func kindNativeBits(k reflect.Kind) (nbits int, signed bool, ok bool) {
	switch k {
	case reflect.Int8:
		return 8, true, true
	case reflect.Int16:
		return 16, true, true
	case reflect.Int32:
		return 32, true, true
	case reflect.Int64, reflect.Int:
		return 64, true, true
	case reflect.Uint8:
		return 8, false, true
	case reflect.Uint16:
		return 16, false, true
	case reflect.Uint32:
		return 32, false, true
	case reflect.Uint64, reflect.Uint:
		return 64, false, true
	default:
		return 0, false, false
	}
}

// ReadIntoField reads a primitive value under c into fv, an addressable,
// settable reflect.Value of bool/int*/uint*/float32/float64 kind. It is the
// reflection-driven counterpart to ReadInt/ReadBool/ReadFloat32/ReadFloat64
// used by package engine, whose declared field types are not known until
// runtime.
func ReadIntoField(r *bitio.Reader, c ctx.Ctx, fv reflect.Value) error {
	switch fv.Kind() {
	case reflect.Bool:
		v, err := ReadBool(r, c)
		if err != nil {
			return err
		}
		fv.SetBool(v)
		return nil
	case reflect.Float32:
		v, err := ReadFloat32(r, c)
		if err != nil {
			return err
		}
		fv.SetFloat(float64(v))
		return nil
	case reflect.Float64:
		v, err := ReadFloat64(r, c)
		if err != nil {
			return err
		}
		fv.SetFloat(v)
		return nil
	default:
		nbits, signed, ok := kindNativeBits(fv.Kind())
		if !ok {
			return errs.InvalidParamf("codec: ReadIntoField: unsupported field kind %s", fv.Kind())
		}
		w := c.Width(nbits)
		if w <= 0 {
			return errs.InvalidParamf("codec: ReadIntoField: bit width must be > 0, got %d", w)
		}
		if w > nbits {
			return errs.InvalidParamf("codec: ReadIntoField: bit width %d exceeds native width %d", w, nbits)
		}
		raw, err := readRaw(r, w, c.Order)
		if err != nil {
			return err
		}
		if signed {
			fv.SetInt(signExtend64(raw, w))
		} else {
			fv.SetUint(raw)
		}
		return nil
	}
}

// WriteFromField is the write-side counterpart to ReadIntoField.
func WriteFromField(w *bitio.Writer, c ctx.Ctx, fv reflect.Value) error {
	switch fv.Kind() {
	case reflect.Bool:
		return WriteBool(fv.Bool(), w, c)
	case reflect.Float32:
		return WriteFloat32(float32(fv.Float()), w, c)
	case reflect.Float64:
		return WriteFloat64(fv.Float(), w, c)
	default:
		nbits, signed, ok := kindNativeBits(fv.Kind())
		if !ok {
			return errs.InvalidParamf("codec: WriteFromField: unsupported field kind %s", fv.Kind())
		}
		width := c.Width(nbits)
		if width <= 0 {
			return errs.InvalidParamf("codec: WriteFromField: bit width must be > 0, got %d", width)
		}
		if width > nbits {
			return errs.InvalidParamf("codec: WriteFromField: bit width %d exceeds native width %d", width, nbits)
		}
		var raw uint64
		if signed {
			sv := fv.Int()
			lo := -(int64(1) << uint(width-1))
			hi := (int64(1) << uint(width-1)) - 1
			if width >= 64 {
				lo, hi = math.MinInt64, math.MaxInt64
			}
			if sv < lo || sv > hi {
				return errs.InvalidParamf("codec: WriteFromField: value %d does not fit in %d signed bits", sv, width)
			}
			raw = uint64(sv) & mask(width)
		} else {
			uv := fv.Uint()
			if width < 64 && uv > mask(width) {
				return errs.InvalidParamf("codec: WriteFromField: value %d does not fit in %d unsigned bits", uv, width)
			}
			raw = uv & mask(width)
		}
		return writeRaw(w, raw, width, c.Order)
	}
}

// IsIntegerOrBoolOrFloatKind reports whether k is a kind ReadIntoField /
// WriteFromField can handle directly, as opposed to a container or
// aggregate kind package engine must recurse into itself.
func IsIntegerOrBoolOrFloatKind(k reflect.Kind) bool {
	if k == reflect.Bool || k == reflect.Float32 || k == reflect.Float64 {
		return true
	}
	_, _, ok := kindNativeBits(k)
	return ok
}
