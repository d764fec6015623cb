// Package codec implements the primitive and container codecs every
// declaration lowers to: integers, floats, bool, and byte arrays
// parameterized by bit width and byte order (C2), plus sequence, optional,
// tuple, map, set, and boxed containers parameterized by child context and
// termination policy (C3).
//
// Every codec obeys the shape documented in package ctx: Read(r, c) (T,
// error) and Write(v, w, c) error.
package codec

import (
	"math"
	"reflect"

	"github.com/mewkiz/bitweave/bitio"
	"github.com/mewkiz/bitweave/ctx"
	"github.com/mewkiz/bitweave/errs"
)

// Integer is the set of Go integer kinds this framework's primitive integer
// codec supports. 128-bit integers are not native to Go; Uint128/Int128 in
// this package cover that case separately.
type Integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func nativeBitsOf[T Integer]() int {
	var zero T
	return int(reflect.TypeOf(zero).Size()) * 8
}

func isSigned[T Integer]() bool {
	var zero T
	zero--
	return zero < 0
}

func mask(w int) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(w)) - 1
}

// signExtend64 interprets x as an n-bit two's complement value and sign
// extends it to 64 bits. Adapted from the teacher's internal/bits.IntN.
func signExtend64(x uint64, n int) int64 {
	if n >= 64 {
		return int64(x)
	}
	signBit := uint64(1) << uint(n-1)
	if x&signBit == 0 {
		return int64(x)
	}
	return int64(x) - int64(signBit<<1)
}

func bytesToUint(buf []byte, order ctx.ByteOrder) uint64 {
	var v uint64
	if order.Resolved() == ctx.BigEndian {
		for _, b := range buf {
			v = v<<8 | uint64(b)
		}
	} else {
		for i := len(buf) - 1; i >= 0; i-- {
			v = v<<8 | uint64(buf[i])
		}
	}
	return v
}

func uintToBytes(v uint64, n int, order ctx.ByteOrder) []byte {
	buf := make([]byte, n)
	if order.Resolved() == ctx.BigEndian {
		for i := n - 1; i >= 0; i-- {
			buf[i] = byte(v)
			v >>= 8
		}
	} else {
		for i := 0; i < n; i++ {
			buf[i] = byte(v)
			v >>= 8
		}
	}
	return buf
}

// readRaw reads width bits (1 <= width <= 64) and assembles them into a
// uint64. When width is a whole number of bytes, whole-byte ordering
// follows order; a width that is not a multiple of 8 is read as a single
// MSB-first bit run, for which byte order has no meaning.
func readRaw(r *bitio.Reader, width int, order ctx.ByteOrder) (uint64, error) {
	if width >= 8 && width%8 == 0 {
		nbytes := width / 8
		buf, err := r.ReadBytesAligned(nbytes)
		if err != nil {
			return 0, err
		}
		return bytesToUint(buf, order), nil
	}
	return r.ReadBits(width)
}

func writeRaw(w *bitio.Writer, raw uint64, width int, order ctx.ByteOrder) error {
	if width >= 8 && width%8 == 0 {
		return w.WriteBytesAligned(uintToBytes(raw, width/8, order))
	}
	return w.WriteBits(raw, width)
}

// ReadInt reads an integer of T's native width, or of c.BitWidth bits when
// overridden, sign- or zero-extending per the native signedness of T (see
// invariant 8: a non-native-width read sign-extends for signed types and
// zero-extends for unsigned types).
func ReadInt[T Integer](r *bitio.Reader, c ctx.Ctx) (T, error) {
	nbits := nativeBitsOf[T]()
	w := c.Width(nbits)
	if w <= 0 {
		return 0, errs.InvalidParamf("codec: ReadInt: bit width must be > 0, got %d", w)
	}
	if w > nbits {
		return 0, errs.InvalidParamf("codec: ReadInt: bit width %d exceeds native width %d", w, nbits)
	}
	raw, err := readRaw(r, w, c.Order)
	if err != nil {
		return 0, err
	}
	if isSigned[T]() {
		return T(signExtend64(raw, w)), nil
	}
	return T(raw), nil
}

// WriteInt writes v under c, failing with InvalidParam (rather than
// truncating) if v's magnitude exceeds c's effective bit width.
func WriteInt[T Integer](v T, w *bitio.Writer, c ctx.Ctx) error {
	nbits := nativeBitsOf[T]()
	width := c.Width(nbits)
	if width <= 0 {
		return errs.InvalidParamf("codec: WriteInt: bit width must be > 0, got %d", width)
	}
	if width > nbits {
		return errs.InvalidParamf("codec: WriteInt: bit width %d exceeds native width %d", width, nbits)
	}
	var raw uint64
	if isSigned[T]() {
		sv := int64(v)
		lo := -(int64(1) << uint(width-1))
		hi := (int64(1) << uint(width-1)) - 1
		if width >= 64 {
			lo, hi = math.MinInt64, math.MaxInt64
		}
		if sv < lo || sv > hi {
			return errs.InvalidParamf("codec: WriteInt: value %d does not fit in %d signed bits", sv, width)
		}
		raw = uint64(sv) & mask(width)
	} else {
		uv := uint64(v)
		if width < 64 && uv > mask(width) {
			return errs.InvalidParamf("codec: WriteInt: value %d does not fit in %d unsigned bits", uv, width)
		}
		raw = uv & mask(width)
	}
	return writeRaw(w, raw, width, c.Order)
}

// ReadBool reads a single bit when c carries no byte-sized override, or a
// single byte when c.BitWidth names 8 or more bits; 0 is false, nonzero is
// true.
func ReadBool(r *bitio.Reader, c ctx.Ctx) (bool, error) {
	width := c.Width(1)
	v, err := r.ReadBits(width)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// WriteBool writes false as 0 and true as 1, using the same width rule as
// ReadBool.
func WriteBool(v bool, w *bitio.Writer, c ctx.Ctx) error {
	width := c.Width(1)
	x := uint64(0)
	if v {
		x = 1
	}
	return w.WriteBits(x, width)
}

// ReadFloat32 reads a 32-bit IEEE-754 float under c's byte order.
func ReadFloat32(r *bitio.Reader, c ctx.Ctx) (float32, error) {
	raw, err := readRaw(r, 32, c.Order)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(raw)), nil
}

// WriteFloat32 writes a 32-bit IEEE-754 float under c's byte order.
func WriteFloat32(v float32, w *bitio.Writer, c ctx.Ctx) error {
	return writeRaw(w, uint64(math.Float32bits(v)), 32, c.Order)
}

// ReadFloat64 reads a 64-bit IEEE-754 float under c's byte order.
func ReadFloat64(r *bitio.Reader, c ctx.Ctx) (float64, error) {
	raw, err := readRaw(r, 64, c.Order)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(raw), nil
}

// WriteFloat64 writes a 64-bit IEEE-754 float under c's byte order.
func WriteFloat64(v float64, w *bitio.Writer, c ctx.Ctx) error {
	return writeRaw(w, math.Float64bits(v), 64, c.Order)
}

// Uint128 represents an unsigned 128-bit integer as two 64-bit halves,
// since Go has no native 128-bit integer type.
type Uint128 struct {
	Hi, Lo uint64
}

// ReadUint128 reads a 128-bit unsigned integer as two consecutive 64-bit
// words ordered per c.Order: for BigEndian the high word is read first, for
// LittleEndian the low word is read first.
func ReadUint128(r *bitio.Reader, c ctx.Ctx) (Uint128, error) {
	width := c.Width(128)
	if width != 128 {
		return Uint128{}, errs.InvalidParamf("codec: ReadUint128: bit-width overrides are not supported, got %d", width)
	}
	first, err := readRaw(r, 64, c.Order)
	if err != nil {
		return Uint128{}, err
	}
	second, err := readRaw(r, 64, c.Order)
	if err != nil {
		return Uint128{}, err
	}
	if c.Order.Resolved() == ctx.BigEndian {
		return Uint128{Hi: first, Lo: second}, nil
	}
	return Uint128{Hi: second, Lo: first}, nil
}

// WriteUint128 writes a 128-bit unsigned integer as two 64-bit words
// ordered per c.Order.
func WriteUint128(v Uint128, w *bitio.Writer, c ctx.Ctx) error {
	width := c.Width(128)
	if width != 128 {
		return errs.InvalidParamf("codec: WriteUint128: bit-width overrides are not supported, got %d", width)
	}
	if c.Order.Resolved() == ctx.BigEndian {
		if err := writeRaw(w, v.Hi, 64, c.Order); err != nil {
			return err
		}
		return writeRaw(w, v.Lo, 64, c.Order)
	}
	if err := writeRaw(w, v.Lo, 64, c.Order); err != nil {
		return err
	}
	return writeRaw(w, v.Hi, 64, c.Order)
}

// ReadUintWidth reads an arbitrary-width (1-64 bit) unsigned raw value
// under order, with no sign handling and no native-width ceiling. It backs
// sum discriminator reads, whose width comes from the discriminator's
// id_type rather than from a Go field's native width.
func ReadUintWidth(r *bitio.Reader, order ctx.ByteOrder, width int) (uint64, error) {
	if width < 1 || width > 64 {
		return 0, errs.InvalidParamf("codec: ReadUintWidth: width %d out of range [1,64]", width)
	}
	return readRaw(r, width, order)
}

// WriteUintWidth is the write-side counterpart to ReadUintWidth.
func WriteUintWidth(w *bitio.Writer, order ctx.ByteOrder, width int, value uint64) error {
	if width < 1 || width > 64 {
		return errs.InvalidParamf("codec: WriteUintWidth: width %d out of range [1,64]", width)
	}
	if width < 64 && value > mask(width) {
		return errs.InvalidParamf("codec: WriteUintWidth: value %d does not fit in %d bits", value, width)
	}
	return writeRaw(w, value, width, order)
}

// ReadBytes reads n raw bytes with no interpretation, used for byte-array
// fields and magic comparisons.
func ReadBytes(r *bitio.Reader, n int) ([]byte, error) {
	return r.ReadBytesAligned(n)
}

// WriteBytes writes data verbatim.
func WriteBytes(data []byte, w *bitio.Writer) error {
	return w.WriteBytesAligned(data)
}
