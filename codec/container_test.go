package codec_test

import (
	"bytes"
	"testing"

	"github.com/mewkiz/bitweave/bitio"
	"github.com/mewkiz/bitweave/codec"
	"github.com/mewkiz/bitweave/ctx"
)

func readU8(r *bitio.Reader, c ctx.Ctx) (uint8, error) {
	return codec.ReadInt[uint8](r, c)
}

func writeU8(v uint8, w *bitio.Writer, c ctx.Ctx) error {
	return codec.WriteInt[uint8](v, w, c)
}

func TestReadArrayCount(t *testing.T) {
	r := bitio.NewReader(bytes.NewReader([]byte{1, 2, 3, 4}))
	got, err := codec.ReadArray[uint8](r, ctx.Default, 3, readU8)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint8{1, 2, 3}
	if !equalSlices(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestReadSequenceBytesRead(t *testing.T) {
	r := bitio.NewReader(bytes.NewReader([]byte{1, 2, 3, 4, 5}))
	policy := codec.SeqPolicy[uint8]{Kind: codec.BytesRead, N: 3}
	got, err := codec.ReadSequence(r, ctx.Default, policy, readU8)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint8{1, 2, 3}
	if !equalSlices(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestReadSequenceReadAll(t *testing.T) {
	r := bitio.NewReader(bytes.NewReader([]byte{9, 8, 7}))
	policy := codec.SeqPolicy[uint8]{Kind: codec.ReadAll}
	got, err := codec.ReadSequence(r, ctx.Default, policy, readU8)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint8{9, 8, 7}
	if !equalSlices(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestReadSequenceUntil(t *testing.T) {
	r := bitio.NewReader(bytes.NewReader([]byte{1, 2, 0, 9}))
	policy := codec.SeqPolicy[uint8]{
		Kind: codec.Until,
		Until: func(elems []uint8) (bool, error) {
			return elems[len(elems)-1] == 0, nil
		},
	}
	got, err := codec.ReadSequence(r, ctx.Default, policy, readU8)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint8{1, 2, 0}
	if !equalSlices(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	// the trailing 9 must still be unread.
	remaining, err := r.ReadBytesAligned(1)
	if err != nil {
		t.Fatal(err)
	}
	if remaining[0] != 9 {
		t.Fatalf("got %v, want trailing byte 9 untouched", remaining)
	}
}

func TestWriteSequenceRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	vs := []uint8{10, 20, 30}
	if err := codec.WriteSequence(vs, w, ctx.Default, writeU8); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{10, 20, 30}) {
		t.Fatalf("got % x", buf.Bytes())
	}
}

func TestOptionalPresentAndAbsent(t *testing.T) {
	r := bitio.NewReader(bytes.NewReader([]byte{42}))
	present, err := codec.ReadOptional[uint8](r, ctx.Default, true, readU8)
	if err != nil {
		t.Fatal(err)
	}
	if present == nil || *present != 42 {
		t.Fatalf("got %v, want pointer to 42", present)
	}
	absent, err := codec.ReadOptional[uint8](r, ctx.Default, false, readU8)
	if err != nil {
		t.Fatal(err)
	}
	if absent != nil {
		t.Fatalf("got %v, want nil", absent)
	}
}

func TestBoxRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	v := uint8(7)
	if err := codec.WriteBox(&v, w, ctx.Default, writeU8); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}
	r := bitio.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := codec.ReadBox[uint8](r, ctx.Default, readU8)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != 7 {
		t.Fatalf("got %v, want pointer to 7", got)
	}
}

func TestMagicMismatch(t *testing.T) {
	r := bitio.NewReader(bytes.NewReader([]byte("XXXX")))
	if err := codec.ReadMagic(r, []byte("fLaC")); err == nil {
		t.Fatal("expected magic mismatch error")
	}
}

func TestMagicMatch(t *testing.T) {
	r := bitio.NewReader(bytes.NewReader([]byte("fLaC")))
	if err := codec.ReadMagic(r, []byte("fLaC")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMapRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	m := map[uint8]uint8{1: 10}
	if err := codec.WriteMap(m, w, ctx.Default, writeU8, writeU8); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}
	r := bitio.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := codec.ReadMap[uint8, uint8](r, ctx.Default, 1, readU8, readU8)
	if err != nil {
		t.Fatal(err)
	}
	if got[1] != 10 {
		t.Fatalf("got %v, want map[1:10]", got)
	}
}

func TestPairRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	p := codec.Pair[uint8, uint8]{First: 1, Second: 2}
	if err := codec.WritePair(p, w, ctx.Default, writeU8, writeU8); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}
	r := bitio.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := codec.ReadPair[uint8, uint8](r, ctx.Default, readU8, readU8)
	if err != nil {
		t.Fatal(err)
	}
	if got != p {
		t.Fatalf("got %+v, want %+v", got, p)
	}
}

func equalSlices(a, b []uint8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
