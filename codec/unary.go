package codec

import "github.com/mewkiz/bitweave/bitio"

// ReadUnary decodes a unary coded integer: the number of leading zero bits
// before a one bit, adapted from the teacher's internal/bits.ReadUnary
// (rewritten against this package's own bitio.Reader).
//
//	1       => 0
//	01      => 1
//	001     => 2
//	0001    => 3
func ReadUnary(r *bitio.Reader) (uint64, error) {
	var x uint64
	for {
		bit, err := r.ReadBits(1)
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			return x, nil
		}
		x++
	}
}

// WriteUnary is the write-side counterpart to ReadUnary, adapted from the
// teacher's internal/bits.WriteUnary.
func WriteUnary(w *bitio.Writer, x uint64) error {
	for ; x > 0; x-- {
		if err := w.WriteBits(0, 1); err != nil {
			return err
		}
	}
	return w.WriteBits(1, 1)
}
