// Package bitio implements the streaming bit-level reader and writer that
// every primitive and container codec is built on: byte-oriented I/O
// augmented with sub-byte (bit) alignment state, position tracking,
// lookahead, and leftover-bit accounting, plus a specialized byte-aligned
// fast path.
//
// Within a multi-byte integer, whole bytes obey the byte order given by the
// caller's ctx.Ctx (see package ctx). Within a single byte, bits are always
// read and written most significant bit first (MSB0) — the ordering used by
// essentially every wire format drawn as a byte diagram. The underlying bit
// shuffling is delegated to github.com/icza/bitio, which implements
// exactly this MSB0 convention; Reader and Writer add position tracking,
// Peek, and End on top of it.
package bitio

import (
	"io"

	"github.com/icza/bitio"

	"github.com/mewkiz/bitweave/errs"
	"github.com/mewkiz/bitweave/internal/lookahead"
)

// Reader is a streaming bit-level reader over an io.Reader.
//
// A Reader is owned by exactly one read operation at a time; it is not
// safe for concurrent use.
type Reader struct {
	br     *bitio.Reader
	look   *lookahead.Buffer
	bitPos int64
}

// NewReader wraps r in a bit-level Reader.
func NewReader(r io.Reader) *Reader {
	buf := lookahead.New(r)
	return &Reader{br: bitio.NewReader(buf), look: buf}
}

// Position returns the current byte offset and the count of leftover bits
// (0-7) consumed past that byte offset.
func (r *Reader) Position() (bytePos int64, leftoverBits int) {
	return r.bitPos / 8, int(r.bitPos % 8)
}

// LeftoverBits reports how many bits (0-7) have been consumed past the last
// whole byte boundary.
func (r *Reader) LeftoverBits() int {
	return int(r.bitPos % 8)
}

// ReadBits reads an unsigned integer of n bits (1 <= n <= 64), MSB first,
// consuming leftover bits before whole bytes as needed.
func (r *Reader) ReadBits(n int) (uint64, error) {
	if n < 1 || n > 64 {
		return 0, errs.InvalidParamf("bitio: ReadBits: bit count %d out of range [1,64]", n)
	}
	v, err := r.br.ReadBits(uint8(n))
	if err != nil {
		return 0, wrapReadErr(err, n)
	}
	r.bitPos += int64(n)
	return v, nil
}

func wrapReadErr(err error, need int) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errs.NewNotEnoughData(need)
	}
	return err
}

// ReadBytesAligned reads k bytes. When the reader is currently byte-aligned
// (LeftoverBits() == 0) this takes a fast path that copies bytes directly
// without any bit shuffling; otherwise it falls back to bitwise extraction,
// 8 bits at a time.
func (r *Reader) ReadBytesAligned(k int) ([]byte, error) {
	buf := make([]byte, k)
	if r.LeftoverBits() == 0 {
		n, err := io.ReadFull(r.br, buf)
		if err != nil {
			return nil, wrapReadErr(err, 8*(k-n))
		}
		r.bitPos += int64(k) * 8
		return buf, nil
	}
	for i := 0; i < k; i++ {
		v, err := r.ReadBits(8)
		if err != nil {
			return nil, err
		}
		buf[i] = byte(v)
	}
	return buf, nil
}

// SkipBits discards n bits without returning their value.
func (r *Reader) SkipBits(n int) error {
	for n > 0 {
		chunk := n
		if chunk > 64 {
			chunk = 64
		}
		if _, err := r.ReadBits(chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// SkipBytes discards k bytes.
func (r *Reader) SkipBytes(k int) error {
	_, err := r.ReadBytesAligned(k)
	return err
}

// Peek returns up to n bytes without consuming them. Peek requires the
// reader to currently be byte-aligned (LeftoverBits() == 0); it backs
// `until` predicates that inspect upcoming bytes before deciding whether to
// continue a sequence.
func (r *Reader) Peek(n int) ([]byte, error) {
	if r.LeftoverBits() != 0 {
		return nil, errs.InvalidParamf("bitio: Peek: reader is not byte-aligned (%d leftover bits)", r.LeftoverBits())
	}
	buf, err := r.look.Peek(n)
	if err != nil && err != io.EOF {
		return buf, err
	}
	return buf, nil
}

// End reports whether the underlying stream is exhausted and there are no
// leftover bits, i.e. whether a read_all sequence should stop.
func (r *Reader) End() bool {
	if r.LeftoverBits() != 0 {
		return false
	}
	_, err := r.look.Peek(1)
	return err != nil
}
