package engine

import (
	"reflect"

	"github.com/mewkiz/bitweave/bitio"
	"github.com/mewkiz/bitweave/codec"
	"github.com/mewkiz/bitweave/ctx"
	"github.com/mewkiz/bitweave/decl"
	"github.com/mewkiz/bitweave/errs"
)

var emptyStructType = reflect.TypeOf(struct{}{})

// readField dispatches a single field's container shape: a byte slice, a
// general sequence, a map/set, or (the default) a scalar/nested/array
// value delegated to ReadValue.
func readField(f *decl.Field, fieldType reflect.Type, r *bitio.Reader, c ctx.Ctx, hooks *decl.Hooks, scope *decl.Scope) (reflect.Value, error) {
	switch {
	case f.Unary:
		return readUnaryField(fieldType, r)
	case f.ZigZag:
		return readZigZagField(fieldType, r, c)
	}
	switch fieldType.Kind() {
	case reflect.Slice:
		return readSequence(f, fieldType, r, c, hooks, scope)
	case reflect.Map:
		return readMapOrSet(f, fieldType, r, c, hooks, scope)
	default:
		return ReadValue(fieldType, r, c, hooks)
	}
}

func writeField(f *decl.Field, fv reflect.Value, w *bitio.Writer, c ctx.Ctx, hooks *decl.Hooks) error {
	switch {
	case f.Unary:
		return codec.WriteUnary(w, fv.Uint())
	case f.ZigZag:
		width := fv.Type().Bits()
		return codec.WriteUintWidth(w, c.Order, width, codec.ZigZagEncode(fv.Int()))
	}
	switch fv.Type().Kind() {
	case reflect.Slice:
		return writeSequence(fv, w, c, hooks)
	case reflect.Map:
		return writeMapOrSet(fv, w, c, hooks)
	default:
		return WriteValue(fv, w, c, hooks)
	}
}

// readUnaryField decodes a self-delimiting unary-coded integer into fieldType.
func readUnaryField(fieldType reflect.Type, r *bitio.Reader) (reflect.Value, error) {
	x, err := codec.ReadUnary(r)
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(fieldType).Elem()
	out.SetUint(x)
	return out, nil
}

// readZigZagField decodes a ZigZag-encoded signed integer at fieldType's
// native bit width.
func readZigZagField(fieldType reflect.Type, r *bitio.Reader, c ctx.Ctx) (reflect.Value, error) {
	u, err := codec.ReadUintWidth(r, c.Order, fieldType.Bits())
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(fieldType).Elem()
	out.SetInt(codec.ZigZagDecode(u))
	return out, nil
}

// readSequence reads a slice field under the termination policy it names, per
// invariant 4 (count/until/bytes_read/bits_read/read_all are mutually
// exclusive — enforced earlier by decl.Validate).
func readSequence(f *decl.Field, fieldType reflect.Type, r *bitio.Reader, c ctx.Ctx, hooks *decl.Hooks, scope *decl.Scope) (reflect.Value, error) {
	elemType := fieldType.Elem()

	if elemType.Kind() == reflect.Uint8 {
		switch {
		case f.HasCount:
			n, err := resolveRef(f.Count, scope)
			if err != nil {
				return reflect.Value{}, err
			}
			return readByteSlice(r, n)
		case f.HasByteSize:
			return readByteSlice(r, f.ByteSize)
		case f.HasBytesRead:
			n, err := resolveRef(f.BytesRead, scope)
			if err != nil {
				return reflect.Value{}, err
			}
			return readByteSlice(r, n)
		}
	}

	out := reflect.MakeSlice(reflect.SliceOf(elemType), 0, 0)
	switch {
	case f.HasCount:
		n, err := resolveRef(f.Count, scope)
		if err != nil {
			return reflect.Value{}, err
		}
		for i := 0; i < n; i++ {
			ev, err := ReadValue(elemType, r, c, hooks)
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, ev)
		}
		return out, nil
	case f.HasBytesRead:
		n, err := resolveRef(f.BytesRead, scope)
		if err != nil {
			return reflect.Value{}, err
		}
		startByte, _ := r.Position()
		for {
			bytePos, _ := r.Position()
			if int(bytePos-startByte) >= n {
				return out, nil
			}
			ev, err := ReadValue(elemType, r, c, hooks)
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, ev)
		}
	case f.HasBitsRead:
		n, err := resolveRef(f.BitsRead, scope)
		if err != nil {
			return reflect.Value{}, err
		}
		startByte, startLeftover := r.Position()
		startBits := startByte*8 + int64(startLeftover)
		for {
			bytePos, leftover := r.Position()
			if int(bytePos*8+int64(leftover)-startBits) >= n {
				return out, nil
			}
			ev, err := ReadValue(elemType, r, c, hooks)
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, ev)
		}
	case f.ReadAll:
		for !r.End() {
			ev, err := ReadValue(elemType, r, c, hooks)
			if err != nil {
				if errs.Is(err, errs.NotEnoughData) && r.LeftoverBits() != 0 {
					return reflect.Value{}, errs.NewIncomplete(r.LeftoverBits())
				}
				return reflect.Value{}, err
			}
			out = reflect.Append(out, ev)
		}
		return out, nil
	case f.HasUntil:
		fn, ok := hooks.ResolveUntil(f.UntilHook)
		if !ok {
			return reflect.Value{}, errs.InvalidParamf("engine: field %s: until hook %q is not registered", f.Name, f.UntilHook)
		}
		elems := make([]any, 0)
		for {
			ev, err := ReadValue(elemType, r, c, hooks)
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, ev)
			elems = append(elems, ev.Interface())
			stop, err := fn(elems, scope)
			if err != nil {
				return reflect.Value{}, err
			}
			if stop {
				return out, nil
			}
		}
	default:
		return reflect.Value{}, errs.InvalidParamf("engine: field %s: sequence has no termination attribute (count/until/bytes_read/bits_read/read_all)", f.Name)
	}
}

func readByteSlice(r *bitio.Reader, n int) (reflect.Value, error) {
	if n < 0 {
		return reflect.Value{}, errs.InvalidParamf("engine: negative byte count %d", n)
	}
	buf, err := r.ReadBytesAligned(n)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(buf), nil
}

func writeSequence(fv reflect.Value, w *bitio.Writer, c ctx.Ctx, hooks *decl.Hooks) error {
	if fv.Type().Elem().Kind() == reflect.Uint8 {
		return w.WriteBytesAligned(fv.Bytes())
	}
	for i := 0; i < fv.Len(); i++ {
		if err := WriteValue(fv.Index(i), w, c, hooks); err != nil {
			return err
		}
	}
	return nil
}

// readMapOrSet treats a Go map[T]struct{} as the set container and any
// other map[K]V as the map container; both require a count attribute since
// neither has a Go-native length-independent termination rule.
func readMapOrSet(f *decl.Field, fieldType reflect.Type, r *bitio.Reader, c ctx.Ctx, hooks *decl.Hooks, scope *decl.Scope) (reflect.Value, error) {
	if !f.HasCount {
		return reflect.Value{}, errs.InvalidParamf("engine: field %s: map/set fields require a count attribute", f.Name)
	}
	n, err := resolveRef(f.Count, scope)
	if err != nil {
		return reflect.Value{}, err
	}
	keyType, valType := fieldType.Key(), fieldType.Elem()
	out := reflect.MakeMapWithSize(fieldType, n)
	isSet := valType == emptyStructType
	for i := 0; i < n; i++ {
		k, err := ReadValue(keyType, r, c, hooks)
		if err != nil {
			return reflect.Value{}, err
		}
		if isSet {
			out.SetMapIndex(k, reflect.ValueOf(struct{}{}))
			continue
		}
		v, err := ReadValue(valType, r, c, hooks)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetMapIndex(k, v)
	}
	return out, nil
}

func writeMapOrSet(fv reflect.Value, w *bitio.Writer, c ctx.Ctx, hooks *decl.Hooks) error {
	isSet := fv.Type().Elem() == emptyStructType
	iter := fv.MapRange()
	for iter.Next() {
		if err := WriteValue(iter.Key(), w, c, hooks); err != nil {
			return err
		}
		if !isSet {
			if err := WriteValue(iter.Value(), w, c, hooks); err != nil {
				return err
			}
		}
	}
	return nil
}
