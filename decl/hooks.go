package decl

import (
	"reflect"

	"github.com/mewkiz/bitweave/ctx"
)

// Scope exposes the sibling fields read so far to a hook, implementing the
// context-model rule that "fields declared before this one are in scope by
// name" (synthesis rule 4). The engine creates one Scope per product read or
// write (a nested struct gets its own) and threads it field by field.
type Scope struct {
	values map[string]any
	Ctx    ctx.Ctx
}

// NewScope creates an empty Scope under the given top-level context.
func NewScope(c ctx.Ctx) *Scope {
	return &Scope{values: make(map[string]any), Ctx: c}
}

// Get returns the bound value of the named sibling field, if any.
func (s *Scope) Get(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Set binds name to v, making it visible to later fields' hooks.
func (s *Scope) Set(name string, v any) {
	s.values[name] = v
}

// Int64 returns the named field's value widened to int64, for attributes
// that treat a sibling field as a count, bit width, or truthiness check. It
// reports ok=false if the field is absent or not an integer/bool kind.
func (s *Scope) Int64(name string) (int64, bool) {
	v, ok := s.values[name]
	if !ok {
		return 0, false
	}
	return toInt64(v)
}

func toInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	case reflect.Bool:
		if rv.Bool() {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// CondFunc decides whether an optional field is present.
type CondFunc func(s *Scope) (bool, error)

// MapFunc transforms a field's just-read value before it is stored. On
// write it is not applied to a stored field's value; for a temp field it is
// called with the field type's zero value to rebuild the value to write.
type MapFunc func(v any, s *Scope) (any, error)

// UpdateFunc computes a field's write-time value from its siblings,
// overriding whatever the caller set on the aggregate.
type UpdateFunc func(s *Scope) (any, error)

// AssertFunc validates a field's value, returning a non-nil error (wrapped
// by the engine into errs.Assertion) when the check fails.
type AssertFunc func(v any, s *Scope) error

// UntilFunc decides whether a sequence should stop after the most recently
// read element (the last element of elems).
type UntilFunc func(elems []any, s *Scope) (bool, error)

// Hooks is the set of named closures a Declaration's tags refer to for the
// attributes a struct tag cannot itself express as a literal or sibling
// field name: cond, map, update, assert, and until. Hooks are supplied by
// the caller alongside the aggregate type and looked up by the name given
// in the corresponding tag attribute.
type Hooks struct {
	Cond   map[string]CondFunc
	Map    map[string]MapFunc
	Update map[string]UpdateFunc
	Assert map[string]AssertFunc
	Until  map[string]UntilFunc
}

// ResolveCond looks up a registered cond hook by name.
func (h *Hooks) ResolveCond(name string) (CondFunc, bool) {
	if h == nil || h.Cond == nil {
		return nil, false
	}
	f, ok := h.Cond[name]
	return f, ok
}

// ResolveMap looks up a registered map hook by name.
func (h *Hooks) ResolveMap(name string) (MapFunc, bool) {
	if h == nil || h.Map == nil {
		return nil, false
	}
	f, ok := h.Map[name]
	return f, ok
}

// ResolveUpdate looks up a registered update hook by name.
func (h *Hooks) ResolveUpdate(name string) (UpdateFunc, bool) {
	if h == nil || h.Update == nil {
		return nil, false
	}
	f, ok := h.Update[name]
	return f, ok
}

// ResolveAssert looks up a registered assert hook by name.
func (h *Hooks) ResolveAssert(name string) (AssertFunc, bool) {
	if h == nil || h.Assert == nil {
		return nil, false
	}
	f, ok := h.Assert[name]
	return f, ok
}

// ResolveUntil looks up a registered until hook by name.
func (h *Hooks) ResolveUntil(name string) (UntilFunc, bool) {
	if h == nil || h.Until == nil {
		return nil, false
	}
	f, ok := h.Until[name]
	return f, ok
}
