package decl

import (
	"reflect"
	"sync"

	"github.com/mewkiz/bitweave/ctx"
	"github.com/mewkiz/bitweave/errs"
)

// DiscriminatorKind selects how a sum Declaration's discriminator is
// obtained.
type DiscriminatorKind int

const (
	// IDType reads a leading primitive off the stream as the discriminator.
	IDType DiscriminatorKind = iota
	// IDExpr takes the discriminator from the caller's outer context
	// (ctx.Extra0) instead of reading it from the stream.
	IDExpr
)

// DiscriminatorPolicy is the top-level sum attribute telling the engine how
// to obtain a variant's selector.
type DiscriminatorPolicy struct {
	Kind DiscriminatorKind

	// IDType fields.
	Endian      ctx.ByteOrder
	HasBitWidth bool
	BitWidth    int
}

// VariantSpec describes one arm of a sum: either a literal-id match, or the
// catch-all arm that absorbs any discriminator no literal variant claimed.
type VariantSpec struct {
	Name string

	HasID bool
	ID    uint64

	// CatchAll marks the id_pat = _ arm: at most one per sum, and it may
	// not also set HasID.
	CatchAll bool

	// New constructs a fresh, zero-valued instance of this variant's
	// concrete payload type (normally a pointer to a product struct whose
	// Declaration is obtained independently via For[T]).
	New func() any
}

// SumSpec is the input to RegisterSum: the whole of a sum Declaration as
// the caller's package describes it, since Go cannot enumerate an
// interface's implementations by reflection the way it enumerates a
// struct's fields.
type SumSpec struct {
	Discriminator DiscriminatorPolicy
	Variants      []VariantSpec
}

// SumDeclaration is the validated, resolved form of a SumSpec, cached by
// the sum's Go interface type.
type SumDeclaration struct {
	InterfaceType reflect.Type
	Discriminator DiscriminatorPolicy
	Variants      []VariantSpec
}

var sumCache sync.Map // reflect.Type -> *SumDeclaration

// RegisterSum declares S (an interface type) as a sum aggregate with the
// given discriminator policy and variants. It must be called once,
// typically from an init function, before any FromBytes/FromReader call
// targets S; repeated registration for the same S replaces the prior
// registration.
func RegisterSum[S any](spec SumSpec) (*SumDeclaration, error) {
	it := reflect.TypeOf((*S)(nil)).Elem()
	if it.Kind() != reflect.Interface {
		return nil, errs.InvalidParamf("decl: RegisterSum: %s is not an interface type", it)
	}
	if err := validateSum(spec); err != nil {
		return nil, err
	}
	sd := &SumDeclaration{InterfaceType: it, Discriminator: spec.Discriminator, Variants: spec.Variants}
	sumCache.Store(it, sd)
	return sd, nil
}

// SumFor returns the SumDeclaration previously registered for S via
// RegisterSum.
func SumFor[S any]() (*SumDeclaration, error) {
	it := reflect.TypeOf((*S)(nil)).Elem()
	return SumForType(it)
}

// SumForType is the type-erased counterpart to SumFor, used by package
// engine when an interface type is only known via reflection (e.g. a
// product field whose Go type is an interface).
func SumForType(it reflect.Type) (*SumDeclaration, error) {
	v, ok := sumCache.Load(it)
	if !ok {
		return nil, errs.InvalidParamf("decl: no sum registered for %s; call decl.RegisterSum first", it)
	}
	return v.(*SumDeclaration), nil
}

func validateSum(spec SumSpec) error {
	if spec.Discriminator.Kind == IDExpr && spec.Discriminator.HasBitWidth {
		return errs.InvalidParamf("decl: RegisterSum: bits/bytes may only be combined with id_type, never with an id expression")
	}
	catchAlls := 0
	seenIDs := make(map[uint64]string)
	for _, v := range spec.Variants {
		if v.New == nil {
			return errs.InvalidParamf("decl: RegisterSum: variant %s has no constructor", v.Name)
		}
		if v.CatchAll && v.HasID {
			return errs.InvalidParamf("decl: RegisterSum: variant %s specifies both id and a catch-all pattern", v.Name)
		}
		if v.CatchAll {
			catchAlls++
			continue
		}
		if !v.HasID {
			return errs.InvalidParamf("decl: RegisterSum: non-catch-all variant %s lacks a discriminator id", v.Name)
		}
		if owner, dup := seenIDs[v.ID]; dup {
			return errs.InvalidParamf("decl: RegisterSum: variants %s and %s share discriminator id %d", owner, v.Name, v.ID)
		}
		seenIDs[v.ID] = v.Name
	}
	if catchAlls > 1 {
		return errs.InvalidParamf("decl: RegisterSum: at most one catch-all variant is allowed, got %d", catchAlls)
	}
	return nil
}
