// Package bitweave declares binary wire formats as plain Go structs and
// interfaces annotated with `bw:"..."` struct tags, then reads and writes
// them field by field in declared order: bit-packed integers, sequences
// terminated by a count or a byte/bit budget, optional and conditional
// fields, nested aggregates, and tagged unions selected by a leading
// discriminator.
//
// A declaration is parsed from its tags once per Go type (package decl) and
// cached; FromBytes/FromReader/ToBytes/ToWriter interpret that cached
// declaration against a live value (package engine) using a shared bit
// reader/writer (package bitio) and primitive/container codecs (package
// codec).
package bitweave

import (
	"bytes"
	"io"
	"reflect"

	"github.com/pkg/errors"

	"github.com/mewkiz/bitweave/bitio"
	"github.com/mewkiz/bitweave/ctx"
	"github.com/mewkiz/bitweave/decl"
	"github.com/mewkiz/bitweave/engine"
)

// typeOf returns T's reflect.Type, including an interface T's static type
// (reflect.TypeOf on a bare nil interface value loses that information).
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// addressableValueOf returns a reflect.Value whose static Type is exactly
// T — an interface Value for an interface T, not v's boxed concrete type —
// by taking it through an addressable local, the same trick typeOf uses.
func addressableValueOf[T any](v T) reflect.Value {
	return reflect.ValueOf(&v).Elem()
}

// FromBytes decodes a T starting at startBitOffset bits into data, and
// returns the unconsumed remainder as rest plus how many of its leading
// bits (0-7) were already consumed (bitOffsetRemaining) — the same
// resumable-cursor contract a caller reading back-to-back records off one
// buffer needs.
func FromBytes[T any](data []byte, startBitOffset int) (v T, rest []byte, bitOffsetRemaining int, err error) {
	if startBitOffset < 0 {
		return v, nil, 0, errors.WithStack(errInvalidParam("bitweave: FromBytes: negative startBitOffset %d", startBitOffset))
	}
	r := bitio.NewReader(bytes.NewReader(data))
	if startBitOffset > 0 {
		if err := r.SkipBits(startBitOffset); err != nil {
			return v, nil, 0, errors.WithStack(err)
		}
	}
	rv, err := decodeInto[T](r)
	if err != nil {
		return v, nil, 0, errors.WithStack(err)
	}
	bytePos, leftover := r.Position()
	if bytePos > int64(len(data)) {
		bytePos = int64(len(data))
	}
	return rv, data[bytePos:], leftover, nil
}

// FromReader decodes a T from r, which need not be seekable; bits
// before startBitOffset are discarded rather than skipped, since an
// io.Reader cannot be told to begin mid-stream.
func FromReader[T any](r io.Reader, startBitOffset int) (v T, err error) {
	if startBitOffset < 0 {
		return v, errors.WithStack(errInvalidParam("bitweave: FromReader: negative startBitOffset %d", startBitOffset))
	}
	br := bitio.NewReader(r)
	if startBitOffset > 0 {
		if err := br.SkipBits(startBitOffset); err != nil {
			return v, errors.WithStack(err)
		}
	}
	rv, err := decodeInto[T](br)
	if err != nil {
		return v, errors.WithStack(err)
	}
	return rv, nil
}

func decodeInto[T any](r *bitio.Reader) (T, error) {
	var zero T
	rt := typeOf[T]()
	hooks := decl.HooksForType(rt)
	rv, err := engine.ReadValue(rt, r, ctx.Default, hooks)
	if err != nil {
		return zero, err
	}
	out, ok := rv.Interface().(T)
	if !ok {
		return zero, errInvalidParam("bitweave: decoded value of type %s does not satisfy %T", rv.Type(), zero)
	}
	return out, nil
}

// ToBytes encodes v and returns the written bytes.
func ToBytes[T any](v T) ([]byte, error) {
	var buf bytes.Buffer
	if err := ToWriter(v, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToWriter encodes v to w, finalizing (flushing any trailing partial byte,
// zero-padded) the underlying bitio.Writer before returning, matching the
// teacher's convention of closing a buffered bit writer before handing its
// bytes onward.
func ToWriter[T any](v T, w io.Writer) error {
	bw := bitio.NewWriter(w)
	rv := addressableValueOf(v)
	hooks := decl.HooksForType(rv.Type())
	if err := engine.WriteValue(rv, bw, ctx.Default, hooks); err != nil {
		return errors.WithStack(err)
	}
	if err := bw.Finalize(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Discriminator returns the wire discriminator value selecting v's dynamic
// variant, if T is registered as a sum type via decl.RegisterSum; ok is
// false for a product type or an unregistered interface.
func Discriminator[T any](v T) (value uint64, ok bool, err error) {
	rv := reflect.ValueOf(v)
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if rt.Kind() != reflect.Interface {
		return 0, false, nil
	}
	sd, serr := decl.SumForType(rt)
	if serr != nil {
		return 0, false, nil
	}
	concrete := rv
	if concrete.Kind() == reflect.Interface {
		concrete = concrete.Elem()
	}
	for i := range sd.Variants {
		vs := &sd.Variants[i]
		sample := vs.New()
		st := reflect.TypeOf(sample)
		ct := concrete.Type()
		if st.Kind() == reflect.Ptr {
			st = st.Elem()
		}
		if ct.Kind() == reflect.Ptr {
			ct = ct.Elem()
		}
		if st != ct {
			continue
		}
		if !vs.CatchAll {
			return vs.ID, true, nil
		}
		d, derr := decl.ForType(ct)
		if derr != nil {
			return 0, false, errors.WithStack(derr)
		}
		body := concrete
		if body.Kind() == reflect.Ptr {
			body = body.Elem()
		}
		for _, f := range d.Fields {
			if f.IsDiscriminator {
				fv := body.Field(f.Index)
				n, nok := intValue(fv)
				if !nok {
					return 0, false, errors.WithStack(errInvalidParam("bitweave: Discriminator: catch-all field %s is not an integer", f.Name))
				}
				return n, true, nil
			}
		}
		return 0, false, errors.WithStack(errInvalidParam("bitweave: Discriminator: catch-all variant has no discriminator-storage field"))
	}
	return 0, false, errors.WithStack(errInvalidParam("bitweave: Discriminator: %s matches no registered variant", concrete.Type()))
}

func intValue(v reflect.Value) (uint64, bool) {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(v.Int()), true
	default:
		return 0, false
	}
}
