package bitio_test

import (
	"bytes"
	"testing"

	"github.com/mewkiz/bitweave/bitio"
)

func TestReadBitsMSB0(t *testing.T) {
	// 0x69 = 0110 1001
	r := bitio.NewReader(bytes.NewReader([]byte{0x69, 0xBE, 0xEF}))
	a, err := r.ReadBits(4)
	if err != nil {
		t.Fatalf("ReadBits(4): %v", err)
	}
	b, err := r.ReadBits(4)
	if err != nil {
		t.Fatalf("ReadBits(4): %v", err)
	}
	if a != 6 || b != 9 {
		t.Fatalf("got a=%d b=%d, want a=6 b=9", a, b)
	}
	c, err := r.ReadBits(16)
	if err != nil {
		t.Fatalf("ReadBits(16): %v", err)
	}
	if c != 0xBEEF {
		t.Fatalf("got c=0x%X, want 0xBEEF", c)
	}
	if !r.End() {
		t.Fatalf("expected End() after consuming all input")
	}
}

func TestWriteBitsRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	if err := w.WriteBits(6, 4); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteBits(9, 4); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteBits(0xBEEF, 16); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x69, 0xBE, 0xEF}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
}

func TestFinalizePadsWithZero(t *testing.T) {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	if err := w.WriteBits(0b101, 3); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}
	// 101 followed by five zero pad bits => 1010_0000 = 0xA0
	if got := buf.Bytes(); len(got) != 1 || got[0] != 0xA0 {
		t.Fatalf("got % x, want [a0]", got)
	}
}

func TestFinalizePadsWithOnesWhenConfigured(t *testing.T) {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	w.SetPadValue(1)
	if err := w.WriteBits(0b101, 3); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}
	// 101 followed by five one pad bits => 1011_1111 = 0xBF
	if got := buf.Bytes(); len(got) != 1 || got[0] != 0xBF {
		t.Fatalf("got % x, want [bf]", got)
	}
}

func TestReadBytesAlignedFastPath(t *testing.T) {
	r := bitio.NewReader(bytes.NewReader([]byte{1, 2, 3, 4}))
	got, err := r.ReadBytesAligned(4)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("got % x", got)
	}
	bytePos, leftover := r.Position()
	if bytePos != 4 || leftover != 0 {
		t.Fatalf("got position (%d,%d), want (4,0)", bytePos, leftover)
	}
}

func TestNotEnoughData(t *testing.T) {
	r := bitio.NewReader(bytes.NewReader([]byte{0xFF}))
	if _, err := r.ReadBits(16); err == nil {
		t.Fatal("expected error reading past end of stream")
	}
}

func TestPeekRequiresAlignment(t *testing.T) {
	r := bitio.NewReader(bytes.NewReader([]byte{0xFF, 0x00}))
	if _, err := r.ReadBits(1); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Peek(1); err == nil {
		t.Fatal("expected Peek to fail when not byte-aligned")
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	r := bitio.NewReader(bytes.NewReader([]byte{0x01, 0x02, 0x03}))
	peeked, err := r.Peek(2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(peeked, []byte{0x01, 0x02}) {
		t.Fatalf("got % x", peeked)
	}
	v, err := r.ReadBits(8)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x01 {
		t.Fatalf("Peek must not consume bytes; got %d", v)
	}
}

func TestSkipBitsAndBytes(t *testing.T) {
	r := bitio.NewReader(bytes.NewReader([]byte{0xFF, 0xAA, 0x01}))
	if err := r.SkipBits(8); err != nil {
		t.Fatal(err)
	}
	if err := r.SkipBytes(1); err != nil {
		t.Fatal(err)
	}
	v, err := r.ReadBits(8)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x01 {
		t.Fatalf("got %x, want 01", v)
	}
}
