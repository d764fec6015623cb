package decl

import (
	"reflect"

	"github.com/mewkiz/bitweave/errs"
)

// reservedPrefix marks attribute values that would collide with names the
// framework reserves for its own bookkeeping (e.g. a hook or sibling field
// named "__bw_discriminator").
const reservedPrefix = "__bw_"

// Validate rejects an ill-formed product Declaration with a precise
// diagnostic (C6). It runs once, automatically, the first time For[T] or
// ForType builds a Declaration; callers never invoke it directly.
// RegisterSum checks a sum's variant table separately and does not call it.
func Validate(d *Declaration) error {
	seen := make(map[string]bool, len(d.Fields))
	declared := make(map[string]bool, len(d.Fields))
	for i := range d.Fields {
		declared[d.Fields[i].Name] = true
	}
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.IsDiscriminator && (f.EndianSet || f.HasBitWidth || f.HasByteSize || f.HasCount || f.HasUntil ||
			f.HasBytesRead || f.HasBitsRead || f.ReadAll || f.HasCond || f.HasDefault || f.HasMap ||
			f.HasUpdate || f.HasAssert || f.HasAssertEq || len(f.CtxFields) > 0 || f.PadBitsBefore != 0 ||
			f.PadBytesBefore != 0 || f.PadBitsAfter != 0 || f.PadBytesAfter != 0 || f.HasPadValue ||
			f.Temp || f.Skip || f.ZigZag || f.Unary || f.HasMagic) {
			return errs.InvalidParamf("decl: field %s: a discriminator storage field cannot carry other attributes", f.Name)
		}
		if f.HasBitWidth && f.HasByteSize {
			return errs.InvalidParamf("decl: field %s: bits and bytes are mutually exclusive", f.Name)
		}
		if f.ZigZag && f.Unary {
			return errs.InvalidParamf("decl: field %s: zigzag and unary are mutually exclusive", f.Name)
		}
		if f.Unary && (f.HasBitWidth || f.HasByteSize) {
			return errs.InvalidParamf("decl: field %s: unary is self-delimiting and cannot combine with bits or bytes", f.Name)
		}
		if f.ZigZag && f.GoType.Kind() != reflect.Int8 && f.GoType.Kind() != reflect.Int16 &&
			f.GoType.Kind() != reflect.Int32 && f.GoType.Kind() != reflect.Int64 && f.GoType.Kind() != reflect.Int {
			return errs.InvalidParamf("decl: field %s: zigzag requires a signed integer field, got %s", f.Name, f.GoType)
		}
		if f.Unary && f.GoType.Kind() != reflect.Uint8 && f.GoType.Kind() != reflect.Uint16 &&
			f.GoType.Kind() != reflect.Uint32 && f.GoType.Kind() != reflect.Uint64 && f.GoType.Kind() != reflect.Uint {
			return errs.InvalidParamf("decl: field %s: unary requires an unsigned integer field, got %s", f.Name, f.GoType)
		}
		term := 0
		for _, has := range []bool{f.HasCount, f.HasUntil, f.HasBytesRead, f.HasBitsRead, f.ReadAll} {
			if has {
				term++
			}
		}
		if term > 1 {
			return errs.InvalidParamf("decl: field %s: count, until, bytes_read, bits_read, and read_all are mutually exclusive", f.Name)
		}
		if err := checkReserved(f.Name, f.UntilHook, f.MapHook, f.UpdateHook, f.AssertHook); err != nil {
			return err
		}
		if f.HasCond && !f.Cond.IsLiteral {
			if err := checkReservedName(f.Name, f.Cond.Field); err != nil {
				return err
			}
		}
		if f.HasAssertEq && !f.AssertEq.IsLiteral {
			if err := checkReservedName(f.Name, f.AssertEq.Field); err != nil {
				return err
			}
		}
		for _, ref := range f.CtxFields {
			if err := checkReservedName(f.Name, ref); err != nil {
				return err
			}
			if !seen[ref] {
				return errs.InvalidParamf("decl: field %s: ctx references undeclared or later field %q", f.Name, ref)
			}
		}
		// A cond name that is not a field of this declaration may be a
		// registered cond hook, so only a reference to a later field is
		// rejected here.
		if f.HasCond && !f.Cond.IsLiteral && declared[f.Cond.Field] && !seen[f.Cond.Field] {
			return errs.InvalidParamf("decl: field %s: cond references later field %q", f.Name, f.Cond.Field)
		}
		if f.HasCount && !f.Count.IsLiteral && !seen[f.Count.Field] {
			return errs.InvalidParamf("decl: field %s: count references undeclared or later field %q", f.Name, f.Count.Field)
		}
		seen[f.Name] = true
	}
	return nil
}

func checkReserved(fieldName string, names ...string) error {
	for _, n := range names {
		if err := checkReservedName(fieldName, n); err != nil {
			return err
		}
	}
	return nil
}

func checkReservedName(fieldName, name string) error {
	if name == "" {
		return nil
	}
	if hasReservedPrefix(name) {
		return errs.InvalidParamf("decl: field %s: %q uses the reserved prefix %q", fieldName, name, reservedPrefix)
	}
	return nil
}

func hasReservedPrefix(s string) bool {
	if len(s) < len(reservedPrefix) {
		return false
	}
	return s[:len(reservedPrefix)] == reservedPrefix
}
