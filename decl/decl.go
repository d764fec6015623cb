// Package decl implements the declaration model (C5): the in-memory,
// validated representation of a user-declared aggregate, built once per Go
// type from its struct tags and cached for the lifetime of the process.
//
// A Declaration is never mutated after construction — matching the
// specification's "compile-time only" lifecycle for declarations, even
// though in Go it is actually assembled the first time a type is used
// rather than at a true compile step.
package decl

import (
	"reflect"
	"sync"

	"github.com/mewkiz/bitweave/ctx"
	"github.com/mewkiz/bitweave/errs"
)

// Kind names the shape of a Declaration. Product (an ordered list of
// Fields) is its only value: sum aggregates are described by a separate
// type, SumDeclaration (see sum.go and RegisterSum).
type Kind int

const (
	Product Kind = iota
)

// Ref names a value that is either a literal integer or the name of an
// earlier sibling field, the two forms the struct-tag surface can express
// without a registered hook (see Hooks for the expression cases a tag
// cannot spell out: cond, map, update, assert, until).
type Ref struct {
	IsLiteral bool
	Literal   int
	Field     string
}

func parseRef(s string) Ref {
	var n int
	if err := parseIntStrict(s, &n); err == nil {
		return Ref{IsLiteral: true, Literal: n}
	}
	return Ref{Field: s}
}

func parseIntStrict(s string, out *int) error {
	n := 0
	neg := false
	if len(s) == 0 {
		return errs.Parsef("decl: empty literal")
	}
	i := 0
	if s[0] == '-' {
		neg = true
		i = 1
	}
	if i == len(s) {
		return errs.Parsef("decl: not an integer: %q", s)
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return errs.Parsef("decl: not an integer: %q", s)
		}
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		n = -n
	}
	*out = n
	return nil
}

// Field is one product member with every attribute from its struct tag
// resolved and type-checked.
type Field struct {
	Name    string
	Index   int
	GoType  reflect.Type
	Anchors string // struct field name, for error messages and hook lookup

	EndianSet bool
	Endian    ctx.ByteOrder

	HasBitWidth bool
	BitWidth    int
	HasByteSize bool
	ByteSize    int

	HasCount     bool
	Count        Ref
	HasUntil     bool
	UntilHook    string
	HasBytesRead bool
	BytesRead    Ref
	HasBitsRead  bool
	BitsRead     Ref
	ReadAll      bool

	HasCond bool
	Cond    Ref

	HasDefault bool
	Default    string

	HasMap    bool
	MapHook   string
	HasUpdate bool
	UpdateHook string

	HasAssert   bool
	AssertHook  string
	HasAssertEq bool
	AssertEq    Ref

	CtxFields []string

	PadBitsBefore  int
	PadBytesBefore int
	PadBitsAfter   int
	PadBytesAfter  int
	HasPadValue    bool
	PadValue       byte

	Temp bool
	Skip bool

	// ZigZag and Unary select an alternate wire encoding for an integer
	// scalar field in place of its plain fixed-width representation.
	ZigZag bool
	Unary  bool

	// IsDiscriminator marks a catch-all variant's storage field (invariant
	// 2): its value is bound from the sum's already-decoded discriminator
	// rather than read from the stream, and on write it is not
	// re-serialized (the discriminator is written once, by the sum
	// procedure, ahead of the variant's own fields).
	IsDiscriminator bool

	HasMagic bool
	Magic    []byte
}

// Declaration is the fully resolved, immutable shape of a product
// aggregate.
type Declaration struct {
	Type   reflect.Type
	Kind   Kind
	Endian ctx.ByteOrder

	HasMagic bool
	Magic    []byte

	Fields []Field
}

var cache sync.Map // reflect.Type -> *Declaration

// For returns the cached Declaration for T, building and validating it on
// first use. T must be a struct type; subsequent calls for the same T are
// an O(1) map lookup rather than a re-parse of its tags.
func For[T any]() (*Declaration, error) {
	var zero T
	rt := reflect.TypeOf(zero)
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil, errs.InvalidParamf("decl: %T is not a struct type", zero)
	}
	return ForType(rt)
}

// ForType is the type-erased counterpart to For, used by package engine to
// recurse into a nested struct field whose concrete type is only known at
// runtime via reflection.
func ForType(rt reflect.Type) (*Declaration, error) {
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil, errs.InvalidParamf("decl: %s is not a struct type", rt)
	}
	if v, ok := cache.Load(rt); ok {
		return v.(*Declaration), nil
	}
	d, err := build(rt)
	if err != nil {
		return nil, err
	}
	if err := Validate(d); err != nil {
		return nil, err
	}
	actual, _ := cache.LoadOrStore(rt, d)
	return actual.(*Declaration), nil
}

func build(rt reflect.Type) (*Declaration, error) {
	d := &Declaration{Type: rt, Kind: Product, Endian: ctx.LittleEndian}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		tagStr, hasTag := sf.Tag.Lookup(tagKey)
		if sf.Name == "_" {
			if !hasTag {
				continue
			}
			attrs, err := parseTag(tagStr)
			if err != nil {
				return nil, err
			}
			if err := applyTopLevel(d, attrs); err != nil {
				return nil, err
			}
			continue
		}
		if sf.PkgPath != "" {
			// unexported, non-sentinel field: not part of the wire shape.
			continue
		}
		attrs, err := parseTag(tagStr)
		if err != nil {
			return nil, err
		}
		f, err := buildField(sf, i, attrs)
		if err != nil {
			return nil, err
		}
		d.Fields = append(d.Fields, f)
	}
	return d, nil
}

func applyTopLevel(d *Declaration, attrs rawAttrs) error {
	if order, ok, err := attrs.endian("endian"); err != nil {
		return err
	} else if ok {
		d.Endian = order
	}
	if magic, ok, err := attrs.hexBytes("magic"); err != nil {
		return err
	} else if ok {
		d.HasMagic, d.Magic = true, magic
	}
	return nil
}

func buildField(sf reflect.StructField, index int, attrs rawAttrs) (Field, error) {
	f := Field{Name: sf.Name, Index: index, GoType: sf.Type, Anchors: sf.Name}

	if order, ok, err := attrs.endian("endian"); err != nil {
		return f, err
	} else if ok {
		f.EndianSet, f.Endian = true, order
	}
	if n, ok, err := attrs.int("bits"); err != nil {
		return f, err
	} else if ok {
		f.HasBitWidth, f.BitWidth = true, n
	}
	if n, ok, err := attrs.int("bytes"); err != nil {
		return f, err
	} else if ok {
		f.HasByteSize, f.ByteSize = true, n
	}
	if v, ok := attrs.str("count"); ok {
		f.HasCount, f.Count = true, parseRef(v)
	}
	if v, ok := attrs.str("until"); ok {
		f.HasUntil, f.UntilHook = true, v
	}
	if v, ok := attrs.str("bytes_read"); ok {
		f.HasBytesRead, f.BytesRead = true, parseRef(v)
	}
	if v, ok := attrs.str("bits_read"); ok {
		f.HasBitsRead, f.BitsRead = true, parseRef(v)
	}
	if attrs.has("read_all") {
		f.ReadAll = true
	}
	if v, ok := attrs.str("cond"); ok {
		f.HasCond, f.Cond = true, parseRef(v)
	}
	if v, ok := attrs.str("default"); ok {
		f.HasDefault, f.Default = true, v
	}
	if v, ok := attrs.str("map"); ok {
		f.HasMap, f.MapHook = true, v
	}
	if v, ok := attrs.str("update"); ok {
		f.HasUpdate, f.UpdateHook = true, v
	}
	if v, ok := attrs.str("assert"); ok {
		f.HasAssert, f.AssertHook = true, v
	}
	if v, ok := attrs.str("assert_eq"); ok {
		f.HasAssertEq, f.AssertEq = true, parseRef(v)
	}
	if v, ok := attrs.str("ctx"); ok {
		f.CtxFields = splitNonEmpty(v, ';')
	}
	if n, ok, err := attrs.int("pad_bits_before"); err != nil {
		return f, err
	} else if ok {
		f.PadBitsBefore = n
	}
	if n, ok, err := attrs.int("pad_bytes_before"); err != nil {
		return f, err
	} else if ok {
		f.PadBytesBefore = n
	}
	if n, ok, err := attrs.int("pad_bits_after"); err != nil {
		return f, err
	} else if ok {
		f.PadBitsAfter = n
	}
	if n, ok, err := attrs.int("pad_bytes_after"); err != nil {
		return f, err
	} else if ok {
		f.PadBytesAfter = n
	}
	if v, ok, err := attrs.byte("pad_value"); err != nil {
		return f, err
	} else if ok {
		f.HasPadValue, f.PadValue = true, v
	}
	if attrs.has("temp") {
		f.Temp = true
	}
	if attrs.has("skip") {
		f.Skip = true
	}
	if attrs.has("discriminator") {
		f.IsDiscriminator = true
	}
	if attrs.has("zigzag") {
		f.ZigZag = true
	}
	if attrs.has("unary") {
		f.Unary = true
	}
	if magic, ok, err := attrs.hexBytes("magic"); err != nil {
		return f, err
	} else if ok {
		f.HasMagic, f.Magic = true, magic
	}
	return f, nil
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
