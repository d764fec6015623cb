package engine

import (
	"reflect"

	"github.com/mewkiz/bitweave/bitio"
	"github.com/mewkiz/bitweave/codec"
	"github.com/mewkiz/bitweave/ctx"
	"github.com/mewkiz/bitweave/decl"
	"github.com/mewkiz/bitweave/errs"
)

// discriminatorScopeKey is the reserved scope name under which ReadSum
// binds the decoded discriminator for a catch-all variant's storage field
// (decl.Field.IsDiscriminator) to pick up without re-reading the stream.
const discriminatorScopeKey = "__bw_discriminator"

// discriminatorWidth defaults an id_type declaration with no explicit bit
// width to a single byte, the common case for a leading tag byte.
func discriminatorWidth(policy decl.DiscriminatorPolicy) int {
	if policy.HasBitWidth {
		return policy.BitWidth
	}
	return 8
}

// readDiscriminator obtains the wire value selecting a variant, either by
// reading a leading primitive (id_type) or by pulling it from the parent's
// ctx (an id = E policy; see open question in §9 — this implementation
// requires the caller to have placed the value in ctx.Extra0).
func readDiscriminator(r *bitio.Reader, parentCtx ctx.Ctx, policy decl.DiscriminatorPolicy) (uint64, error) {
	switch policy.Kind {
	case decl.IDType:
		return codec.ReadUintWidth(r, policy.Endian, discriminatorWidth(policy))
	case decl.IDExpr:
		v, ok := ctx.Extra0(parentCtx)
		if !ok {
			return 0, errs.InvalidParamf("engine: sum uses an id expression policy but the caller's ctx carries no discriminator")
		}
		n, ok := toInt64(v)
		if !ok {
			return 0, errs.InvalidParamf("engine: sum's ctx-supplied discriminator %v is not an integer", v)
		}
		return uint64(n), nil
	default:
		return 0, errs.InvalidParamf("engine: unknown discriminator policy kind %d", policy.Kind)
	}
}

func toInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	default:
		return 0, false
	}
}

func selectVariant(sd *decl.SumDeclaration, value uint64) (*decl.VariantSpec, bool) {
	var catchAll *decl.VariantSpec
	for i := range sd.Variants {
		vs := &sd.Variants[i]
		if vs.CatchAll {
			catchAll = vs
			continue
		}
		if vs.HasID && vs.ID == value {
			return vs, true
		}
	}
	if catchAll != nil {
		return catchAll, true
	}
	return nil, false
}

// ReadSum runs the §4.5 sum read procedure: obtain the discriminator,
// select a variant, and dispatch to that variant's product read.
func ReadSum(sd *decl.SumDeclaration, r *bitio.Reader, parentCtx ctx.Ctx, hooks *decl.Hooks) (reflect.Value, error) {
	value, err := readDiscriminator(r, parentCtx, sd.Discriminator)
	if err != nil {
		return reflect.Value{}, err
	}
	variant, ok := selectVariant(sd, value)
	if !ok {
		return reflect.Value{}, errs.NewNoMatchingVariant(value)
	}
	payload := variant.New()
	pv := reflect.ValueOf(payload)
	rt := pv.Type()
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	d, err := decl.ForType(rt)
	if err != nil {
		return reflect.Value{}, err
	}
	seed := map[string]any{discriminatorScopeKey: value}
	var body reflect.Value
	if pv.Kind() == reflect.Ptr {
		body, err = ReadProductSeeded(d, r, parentCtx, hooks, seed)
		if err != nil {
			return reflect.Value{}, err
		}
		pv.Elem().Set(body)
		return pv, nil
	}
	body, err = ReadProductSeeded(d, r, parentCtx, hooks, seed)
	if err != nil {
		return reflect.Value{}, err
	}
	return body, nil
}

// WriteSum recovers the discriminator from v (the variant's own id, or its
// IsDiscriminator storage field for a catch-all variant), writes it under
// the id_type policy, then dispatches to the variant's product write.
func WriteSum(sd *decl.SumDeclaration, v reflect.Value, w *bitio.Writer, parentCtx ctx.Ctx, hooks *decl.Hooks) error {
	concrete := v
	if concrete.Kind() == reflect.Interface {
		concrete = concrete.Elem()
	}
	rt := concrete.Type()
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
		if concrete.IsNil() {
			return errs.InvalidParamf("engine: WriteSum: nil variant value")
		}
		concrete = concrete.Elem()
	}

	variant, value, err := matchingVariant(sd, rt, concrete)
	if err != nil {
		return err
	}

	if sd.Discriminator.Kind == decl.IDType {
		if err := codec.WriteUintWidth(w, sd.Discriminator.Endian, discriminatorWidth(sd.Discriminator), value); err != nil {
			return err
		}
	}

	d, err := decl.ForType(rt)
	if err != nil {
		return err
	}
	_ = variant
	return WriteProduct(d, concrete, w, parentCtx, hooks)
}

// matchingVariant finds which VariantSpec corresponds to concrete's runtime
// type and, for a catch-all variant, recovers the stored discriminator
// value from its IsDiscriminator field.
func matchingVariant(sd *decl.SumDeclaration, rt reflect.Type, concrete reflect.Value) (*decl.VariantSpec, uint64, error) {
	for i := range sd.Variants {
		vs := &sd.Variants[i]
		sample := vs.New()
		st := reflect.TypeOf(sample)
		if st.Kind() == reflect.Ptr {
			st = st.Elem()
		}
		if st != rt {
			continue
		}
		if vs.CatchAll {
			d, err := decl.ForType(rt)
			if err != nil {
				return nil, 0, err
			}
			for _, f := range d.Fields {
				if f.IsDiscriminator {
					n, ok := toInt64Value(concrete.Field(f.Index))
					if !ok {
						return nil, 0, errs.InvalidParamf("engine: catch-all discriminator field %s is not an integer", f.Name)
					}
					return vs, uint64(n), nil
				}
			}
			return nil, 0, errs.InvalidParamf("engine: catch-all variant %s has no discriminator-storage field", vs.Name)
		}
		return vs, vs.ID, nil
	}
	return nil, 0, errs.InvalidParamf("engine: WriteSum: %s matches no registered variant", rt)
}
