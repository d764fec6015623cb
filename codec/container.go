package codec

import (
	"bytes"

	"github.com/mewkiz/bitweave/bitio"
	"github.com/mewkiz/bitweave/ctx"
	"github.com/mewkiz/bitweave/errs"
)

// This file's generic ReadSequence/ReadMap/ReadSet/ReadPair/ReadOptional/
// ReadBox/ReadArray are a typed, non-reflective container API for callers
// who know their element type at compile time (a hand-written codec calling
// into this package directly). The struct-tag-driven read/write path in
// package engine (engine/container.go) targets arbitrary declared types
// through reflection instead and does not call these; the two are
// intentionally parallel implementations of the same container shapes, not
// a layering where one wraps the other.

// ElemReader reads one element of a container under c.
type ElemReader[T any] func(r *bitio.Reader, c ctx.Ctx) (T, error)

// ElemWriter writes one element of a container under c.
type ElemWriter[T any] func(v T, w *bitio.Writer, c ctx.Ctx) error

// TerminationKind selects how ReadSequence decides it has read enough
// elements.
type TerminationKind int

const (
	// Count stops after exactly N elements.
	Count TerminationKind = iota
	// BytesRead stops once N bytes have been consumed since the sequence
	// started (the sequence must start byte-aligned).
	BytesRead
	// BitsRead stops once N bits have been consumed since the sequence
	// started.
	BitsRead
	// ReadAll stops when the underlying stream is exhausted.
	ReadAll
	// Until stops once the Until predicate, evaluated against the elements
	// read so far (including the one just read), reports true.
	Until
)

// SeqPolicy configures ReadSequence's termination behavior. Exactly one of
// N or Until is meaningful, depending on Kind.
type SeqPolicy[T any] struct {
	Kind  TerminationKind
	N     int
	Until func(elems []T) (bool, error)
}

// ReadSequence reads elements with elem until policy says to stop.
func ReadSequence[T any](r *bitio.Reader, c ctx.Ctx, policy SeqPolicy[T], elem ElemReader[T]) ([]T, error) {
	var out []T
	startByte, startLeftover := r.Position()
	startBits := startByte*8 + int64(startLeftover)
	for {
		switch policy.Kind {
		case Count:
			if len(out) >= policy.N {
				return out, nil
			}
		case BytesRead:
			bytePos, _ := r.Position()
			if int(bytePos-startByte) >= policy.N {
				return out, nil
			}
		case BitsRead:
			bytePos, leftover := r.Position()
			consumed := bytePos*8 + int64(leftover) - startBits
			if int(consumed) >= policy.N {
				return out, nil
			}
		case ReadAll:
			if r.End() {
				return out, nil
			}
		}
		v, err := elem(r, c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if policy.Kind == Until {
			if policy.Until == nil {
				return nil, errs.InvalidParamf("codec: ReadSequence: Until policy requires a predicate")
			}
			stop, err := policy.Until(out)
			if err != nil {
				return nil, err
			}
			if stop {
				return out, nil
			}
		}
	}
}

// WriteSequence writes every element of vs with elem. The policy's
// termination rule is not re-validated on write: the caller is trusted to
// supply a slice whose length already satisfies it, since re-deriving a
// byte or bit budget from element count alone is not generally possible.
func WriteSequence[T any](vs []T, w *bitio.Writer, c ctx.Ctx, elem ElemWriter[T]) error {
	for _, v := range vs {
		if err := elem(v, w, c); err != nil {
			return err
		}
	}
	return nil
}

// ReadArray reads exactly n elements, equivalent to ReadSequence with a
// Count policy.
func ReadArray[T any](r *bitio.Reader, c ctx.Ctx, n int, elem ElemReader[T]) ([]T, error) {
	return ReadSequence(r, c, SeqPolicy[T]{Kind: Count, N: n}, elem)
}

// WriteArray writes every element of vs.
func WriteArray[T any](vs []T, w *bitio.Writer, c ctx.Ctx, elem ElemWriter[T]) error {
	return WriteSequence(vs, w, c, elem)
}

// ReadOptional reads one element of T when present is true, or returns a
// nil pointer when present is false. present is normally computed by the
// caller from a sibling field or a cond expression (see package decl).
func ReadOptional[T any](r *bitio.Reader, c ctx.Ctx, present bool, elem ElemReader[T]) (*T, error) {
	if !present {
		return nil, nil
	}
	v, err := elem(r, c)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// WriteOptional writes *v when v is non-nil; it writes nothing when v is
// nil, mirroring ReadOptional's present/absent split.
func WriteOptional[T any](v *T, w *bitio.Writer, c ctx.Ctx, elem ElemWriter[T]) error {
	if v == nil {
		return nil
	}
	return elem(*v, w, c)
}

// ReadBox reads one element and returns a pointer to it, the boxed-value
// equivalent of a language with an indirection-only recursive type.
func ReadBox[T any](r *bitio.Reader, c ctx.Ctx, elem ElemReader[T]) (*T, error) {
	v, err := elem(r, c)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// WriteBox writes the value v points to. Writing a nil box is an
// InvalidParam error: unlike Optional, Box carries no absent state.
func WriteBox[T any](v *T, w *bitio.Writer, c ctx.Ctx, elem ElemWriter[T]) error {
	if v == nil {
		return errs.InvalidParamf("codec: WriteBox: value is nil")
	}
	return elem(*v, w, c)
}

// ReadMap reads n (key, value) pairs in stream order into a map.
func ReadMap[K comparable, V any](r *bitio.Reader, c ctx.Ctx, n int, keyElem ElemReader[K], valElem ElemReader[V]) (map[K]V, error) {
	out := make(map[K]V, n)
	for i := 0; i < n; i++ {
		k, err := keyElem(r, c)
		if err != nil {
			return nil, err
		}
		v, err := valElem(r, c)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// WriteMap writes the pairs of m. Since Go map iteration order is
// unspecified, callers that need a deterministic wire encoding must supply
// an explicit key order upstream (e.g. by encoding a sorted []K/[]V pair
// instead of a map); WriteMap itself makes no ordering guarantee.
func WriteMap[K comparable, V any](m map[K]V, w *bitio.Writer, c ctx.Ctx, keyElem ElemWriter[K], valElem ElemWriter[V]) error {
	for k, v := range m {
		if err := keyElem(k, w, c); err != nil {
			return err
		}
		if err := valElem(v, w, c); err != nil {
			return err
		}
	}
	return nil
}

// ReadSet reads n elements into a set, keyed by equality.
func ReadSet[T comparable](r *bitio.Reader, c ctx.Ctx, n int, elem ElemReader[T]) (map[T]struct{}, error) {
	out := make(map[T]struct{}, n)
	for i := 0; i < n; i++ {
		v, err := elem(r, c)
		if err != nil {
			return nil, err
		}
		out[v] = struct{}{}
	}
	return out, nil
}

// WriteSet writes the elements of s. As with WriteMap, iteration order is
// unspecified; order-sensitive formats must encode a slice instead.
func WriteSet[T comparable](s map[T]struct{}, w *bitio.Writer, c ctx.Ctx, elem ElemWriter[T]) error {
	for v := range s {
		if err := elem(v, w, c); err != nil {
			return err
		}
	}
	return nil
}

// Pair is the two-element tuple container. Larger tuples are ordinarily
// better expressed as a declared product type (see package decl); Pair
// covers the common ad hoc case.
type Pair[A, B any] struct {
	First  A
	Second B
}

// ReadPair reads First with a then Second with b.
func ReadPair[A, B any](r *bitio.Reader, c ctx.Ctx, a ElemReader[A], b ElemReader[B]) (Pair[A, B], error) {
	first, err := a(r, c)
	if err != nil {
		return Pair[A, B]{}, err
	}
	second, err := b(r, c)
	if err != nil {
		return Pair[A, B]{}, err
	}
	return Pair[A, B]{First: first, Second: second}, nil
}

// WritePair writes p.First then p.Second.
func WritePair[A, B any](p Pair[A, B], w *bitio.Writer, c ctx.Ctx, a ElemWriter[A], b ElemWriter[B]) error {
	if err := a(p.First, w, c); err != nil {
		return err
	}
	return b(p.Second, w, c)
}

// ReadMagic reads len(expected) bytes and fails with a Magic error if they
// do not match exactly.
func ReadMagic(r *bitio.Reader, expected []byte) error {
	got, err := r.ReadBytesAligned(len(expected))
	if err != nil {
		return err
	}
	if !bytes.Equal(got, expected) {
		return errs.NewMagic(expected, got)
	}
	return nil
}

// WriteMagic writes the magic bytes verbatim.
func WriteMagic(w *bitio.Writer, expected []byte) error {
	return w.WriteBytesAligned(expected)
}
