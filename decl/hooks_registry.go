package decl

import (
	"reflect"
	"sync"
)

// hooksCache maps a top-level decoded/encoded Go type to the Hooks bundle
// its declaration tree refers to by name. A single Hooks value is threaded
// unchanged through every nested read/write in that tree (package engine),
// so it is registered once per root type rather than per nested struct —
// the same registry idiom RegisterSum uses for sum types, since the root
// entry points (FromBytes, ToWriter, ...) take no hooks parameter of their
// own.
var hooksCache sync.Map // reflect.Type -> *Hooks

// RegisterHooks associates h with T, so that a later FromBytes[T]/
// FromReader[T]/ToBytes[T]/ToWriter[T] call can resolve the cond/map/
// update/assert/until hook names T's declaration (and anything it embeds
// or references as a sum variant) names in its tags. Call once, typically
// from an init function; a nil h clears any prior registration.
func RegisterHooks[T any](h *Hooks) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if h == nil {
		hooksCache.Delete(rt)
		return
	}
	hooksCache.Store(rt, h)
}

// HooksForType returns the Hooks registered for rt via RegisterHooks, or
// nil if none were registered — a type whose declaration uses no named
// hook attribute need not register any.
func HooksForType(rt reflect.Type) *Hooks {
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	v, ok := hooksCache.Load(rt)
	if !ok {
		return nil
	}
	return v.(*Hooks)
}
