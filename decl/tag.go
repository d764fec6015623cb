package decl

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/mewkiz/bitweave/ctx"
	"github.com/mewkiz/bitweave/errs"
)

// tagKey is the struct tag key under which every field attribute lives,
// e.g. `bw:"bits=4,endian=big"`.
const tagKey = "bw"

// rawAttrs is a parsed, still-uninterpreted view of one struct tag: bare
// flags recorded with an empty value, key=value pairs recorded as given.
type rawAttrs map[string]string

func parseTag(tag string) (rawAttrs, error) {
	out := rawAttrs{}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return out, nil
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if eq := strings.IndexByte(part, '='); eq >= 0 {
			key := strings.TrimSpace(part[:eq])
			val := strings.TrimSpace(part[eq+1:])
			if key == "" {
				return nil, errs.InvalidParamf("decl: malformed tag attribute %q", part)
			}
			out[key] = val
		} else {
			out[part] = ""
		}
	}
	return out, nil
}

func (a rawAttrs) has(key string) bool {
	_, ok := a[key]
	return ok
}

func (a rawAttrs) int(key string) (int, bool, error) {
	v, ok := a[key]
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, errs.InvalidParamf("decl: attribute %q must be an integer, got %q", key, v)
	}
	return n, true, nil
}

func (a rawAttrs) str(key string) (string, bool) {
	v, ok := a[key]
	return v, ok
}

func (a rawAttrs) byte(key string) (byte, bool, error) {
	v, ok := a[key]
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || (n != 0 && n != 1) {
		return 0, false, errs.InvalidParamf("decl: attribute %q must be 0 or 1, got %q", key, v)
	}
	return byte(n), true, nil
}

func (a rawAttrs) endian(key string) (ctx.ByteOrder, bool, error) {
	v, ok := a[key]
	if !ok {
		return 0, false, nil
	}
	switch v {
	case "little":
		return ctx.LittleEndian, true, nil
	case "big":
		return ctx.BigEndian, true, nil
	case "native":
		return ctx.NativeEndian, true, nil
	default:
		return 0, false, errs.InvalidParamf("decl: attribute %q: unknown byte order %q", key, v)
	}
}

func (a rawAttrs) hexBytes(key string) ([]byte, bool, error) {
	v, ok := a[key]
	if !ok {
		return nil, false, nil
	}
	b, err := hex.DecodeString(v)
	if err != nil {
		return nil, false, errs.InvalidParamf("decl: attribute %q: invalid hex %q: %v", key, v, err)
	}
	return b, true, nil
}
