package libkb

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
)

// Bytes is a byte slice serialized in JSON as an array of numbers (e.g. `[1,2,255]`).
// It is the wire format of the short-URL service.
type Bytes []byte

// MarshalJSON implements json.Marshaler.
func (b Bytes) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}

	buf := make([]byte, 0, 2+len(b)*4)
	buf = append(buf, '[')
	for i, v := range b {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendUint(buf, uint64(v), 10)
	}
	return append(buf, ']'), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	v, err := fastjson.ParseBytes(data)
	if err != nil {
		return errors.Wrap(err, "could not parse byte array")
	}
	if v.Type() == fastjson.TypeNull {
		*b = nil
		return nil
	}

	values, err := v.Array()
	if err != nil {
		return errors.Wrap(err, "byte array expected")
	}

	out := make([]byte, len(values))
	for i, value := range values {
		n, err := value.Uint()
		if err != nil || n > 255 {
			return errors.Errorf("invalid byte at index %d", i)
		}
		out[i] = byte(n)
	}
	*b = out
	return nil
}
