package bitweave

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/mewkiz/bitweave/decl"
	"github.com/mewkiz/bitweave/integrity"
)

// S1: a bit-packed header with two 4-bit fields and a big-endian uint16.
type s1Header struct {
	A uint8  `bw:"bits=4"`
	B uint8  `bw:"bits=4"`
	C uint16 `bw:"endian=big"`
}

func TestS1BitPackedHeader(t *testing.T) {
	data := []byte{0x69, 0xBE, 0xEF}
	got, rest, bitRem, err := FromBytes[s1Header](data, 0)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	want := s1Header{A: 6, B: 9, C: 0xBEEF}
	if got != want {
		t.Errorf("decode mismatch: got %+v, want %+v", got, want)
	}
	if len(rest) != 0 || bitRem != 0 {
		t.Errorf("expected no remainder, got rest=%v bitRem=%d", rest, bitRem)
	}
	enc, err := ToBytes(got)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if !reflect.DeepEqual(enc, data) {
		t.Errorf("round trip mismatch: got % x, want % x", enc, data)
	}
}

// S2: little-endian default with a big-endian override on the last field.
type s2Header struct {
	A uint8
	B uint8  `bw:"bits=7"`
	C uint8  `bw:"bits=1"`
	D uint16 `bw:"endian=big"`
}

func TestS2LittleEndianDefaultWithBigOverride(t *testing.T) {
	data := []byte{0xAB, 0xA5, 0xAB, 0xCD}
	got, rest, bitRem, err := FromBytes[s2Header](data, 0)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	want := s2Header{A: 0xAB, B: 0x52, C: 1, D: 0xABCD}
	if got != want {
		t.Errorf("decode mismatch: got %+v, want %+v", got, want)
	}
	if len(rest) != 0 || bitRem != 0 {
		t.Errorf("expected no remainder, got rest=%v bitRem=%d", rest, bitRem)
	}
	enc, err := ToBytes(got)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if !reflect.DeepEqual(enc, data) {
		t.Errorf("round trip mismatch: got % x, want % x", enc, data)
	}
}

// S3: a sum with a one-byte discriminator.
type s3Msg interface {
	isS3Msg()
}

type s3MsgA struct {
	X uint8
}

func (*s3MsgA) isS3Msg() {}

type s3MsgB struct {
	Y uint16 `bw:"endian=little"`
}

func (*s3MsgB) isS3Msg() {}

func init() {
	if _, err := decl.RegisterSum[s3Msg](decl.SumSpec{
		Discriminator: decl.DiscriminatorPolicy{Kind: decl.IDType},
		Variants: []decl.VariantSpec{
			{Name: "A", HasID: true, ID: 1, New: func() any { return &s3MsgA{} }},
			{Name: "B", HasID: true, ID: 2, New: func() any { return &s3MsgB{} }},
		},
	}); err != nil {
		panic(err)
	}
}

func TestS3SumWithByteDiscriminator(t *testing.T) {
	got, _, _, err := FromBytes[s3Msg]([]byte{0x02, 0x34, 0x12}, 0)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	b, ok := got.(*s3MsgB)
	if !ok {
		t.Fatalf("decoded value is %T, want *s3MsgB", got)
	}
	if b.Y != 0x1234 {
		t.Errorf("Y mismatch: got 0x%04X, want 0x1234", b.Y)
	}
	enc, err := ToBytes[s3Msg](b)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	want := []byte{0x02, 0x34, 0x12}
	if !reflect.DeepEqual(enc, want) {
		t.Errorf("round trip mismatch: got % x, want % x", enc, want)
	}
}

func TestS3SumNoMatchingVariant(t *testing.T) {
	_, _, _, err := FromBytes[s3Msg]([]byte{0x03, 0x00, 0x00}, 0)
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if !Is(err, NoMatchingVariant) {
		t.Errorf("expected NoMatchingVariant, got %v", err)
	}
}

// S4: a magic prefix plus an assert_eq'd length driving a count-based slice.
type s4Packet struct {
	_    struct{} `bw:"magic=dead"`
	Len  uint8    `bw:"assert_eq=3"`
	Data []byte   `bw:"count=Len"`
}

func TestS4MagicAndAssertEq(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0x03, 1, 2, 3}
	got, _, _, err := FromBytes[s4Packet](data, 0)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if got.Len != 3 || !reflect.DeepEqual(got.Data, []byte{1, 2, 3}) {
		t.Errorf("decode mismatch: got %+v", got)
	}
}

func TestS4MagicMismatch(t *testing.T) {
	_, _, _, err := FromBytes[s4Packet]([]byte{0xDE, 0xAE, 0x03, 1, 2, 3}, 0)
	if !Is(err, Magic) {
		t.Errorf("expected Magic, got %v", err)
	}
}

func TestS4AssertEqFailure(t *testing.T) {
	_, _, _, err := FromBytes[s4Packet]([]byte{0xDE, 0xAD, 0x04, 1, 2, 3, 4}, 0)
	if !Is(err, Assertion) {
		t.Errorf("expected Assertion, got %v", err)
	}
}

// S5: a catch-all variant that stores its own discriminator.
type s5Variant interface {
	isS5Variant()
}

type s5Known struct {
	V uint8
}

func (*s5Known) isS5Variant() {}

type s5Other struct {
	Id    uint8 `bw:"discriminator"`
	Extra uint8
}

func (*s5Other) isS5Variant() {}

func init() {
	if _, err := decl.RegisterSum[s5Variant](decl.SumSpec{
		Discriminator: decl.DiscriminatorPolicy{Kind: decl.IDType},
		Variants: []decl.VariantSpec{
			{Name: "Known", HasID: true, ID: 1, New: func() any { return &s5Known{} }},
			{Name: "Other", CatchAll: true, New: func() any { return &s5Other{} }},
		},
	}); err != nil {
		panic(err)
	}
}

func TestS5CatchAllWithStorage(t *testing.T) {
	data := []byte{0x42, 0x99}
	got, _, _, err := FromBytes[s5Variant](data, 0)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	o, ok := got.(*s5Other)
	if !ok {
		t.Fatalf("decoded value is %T, want *s5Other", got)
	}
	if o.Id != 0x42 || o.Extra != 0x99 {
		t.Errorf("decode mismatch: got %+v", o)
	}
	enc, err := ToBytes[s5Variant](o)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if !reflect.DeepEqual(enc, data) {
		t.Errorf("round trip mismatch: got % x, want % x", enc, data)
	}
}

// S6: a conditional field with a default, backed by a registered cond hook.
type s6Packet struct {
	Flag uint8
	Body uint16 `bw:"cond=bodyPresent,default=0,endian=big"`
}

func init() {
	RegisterHooksS6()
}

// RegisterHooksS6 installs s6Packet's cond hook; split out so the table of
// inits above stays readable.
func RegisterHooksS6() {
	decl.RegisterHooks[s6Packet](&decl.Hooks{
		Cond: map[string]decl.CondFunc{
			"bodyPresent": func(s *decl.Scope) (bool, error) {
				flag, ok := s.Int64("Flag")
				return ok && flag != 0, nil
			},
		},
	})
}

func TestS6CondPresent(t *testing.T) {
	got, rest, bitRem, err := FromBytes[s6Packet]([]byte{0x01, 0x00, 0x10}, 0)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if got.Flag != 1 || got.Body != 0x10 {
		t.Errorf("decode mismatch: got %+v", got)
	}
	if len(rest) != 0 || bitRem != 0 {
		t.Errorf("expected no remainder, got rest=%v bitRem=%d", rest, bitRem)
	}
}

func TestS6CondAbsentUsesDefault(t *testing.T) {
	got, rest, bitRem, err := FromBytes[s6Packet]([]byte{0x00}, 0)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if got.Flag != 0 || got.Body != 0 {
		t.Errorf("decode mismatch: got %+v", got)
	}
	if len(rest) != 0 || bitRem != 0 {
		t.Errorf("expected the single input byte fully consumed, got rest=%v bitRem=%d", rest, bitRem)
	}
}

// S7: a self-checksumming packet, in the style of the teacher's frame
// header/footer CRC checks (frame/header.go, frame/frame.go): the checksum
// field is recomputed from its sibling payload on write (update) and
// verified against it on read (assert), both via package integrity.
type s7Packet struct {
	Payload  []byte `bw:"count=3"`
	Checksum uint8  `bw:"update=crc8Payload,assert=crc8Valid"`
}

func init() {
	decl.RegisterHooks[s7Packet](&decl.Hooks{
		Update: map[string]decl.UpdateFunc{
			"crc8Payload": func(s *decl.Scope) (any, error) {
				payload, _ := s.Get("Payload")
				return integrity.CRC8(payload.([]byte)), nil
			},
		},
		Assert: map[string]decl.AssertFunc{
			"crc8Valid": func(v any, s *decl.Scope) error {
				payload, _ := s.Get("Payload")
				want := integrity.CRC8(payload.([]byte))
				got := v.(uint8)
				if got != want {
					return fmt.Errorf("checksum mismatch: got 0x%02X, want 0x%02X", got, want)
				}
				return nil
			},
		},
	})
}

func TestS7CRC8SelfChecksumRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3}
	want := integrity.CRC8(payload)
	// Checksum is deliberately stale; the update hook must recompute it.
	v := s7Packet{Payload: payload, Checksum: 0}
	enc, err := ToBytes(v)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if len(enc) != 4 || enc[3] != want {
		t.Fatalf("encode mismatch: got % x, want checksum 0x%02X", enc, want)
	}

	got, rest, bitRem, err := FromBytes[s7Packet](enc, 0)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if !reflect.DeepEqual(got.Payload, payload) || got.Checksum != want {
		t.Errorf("decode mismatch: got %+v, want payload=% x checksum=0x%02X", got, payload, want)
	}
	if len(rest) != 0 || bitRem != 0 {
		t.Errorf("expected no remainder, got rest=%v bitRem=%d", rest, bitRem)
	}
}

func TestS7CRC8MismatchFailsAssertion(t *testing.T) {
	payload := []byte{1, 2, 3}
	bad := integrity.CRC8(payload) + 1
	_, _, _, err := FromBytes[s7Packet](append(append([]byte{}, payload...), bad), 0)
	if !Is(err, Assertion) {
		t.Errorf("expected Assertion, got %v", err)
	}
}
