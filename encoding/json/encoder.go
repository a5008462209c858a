package json

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Encoder renders compact JSON
type Encoder struct{}

// NewEncoder returns JSON encoder
func NewEncoder() *Encoder {
	return new(Encoder)
}

// Format returns "json"
func (e *Encoder) Format() string {
	return "json"
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	bs, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return bs, nil
}

// Unmarshal decodes bs, unknown fields are ignored
func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(bs)))
	dec.UseNumber()
	return errors.WithStack(dec.Decode(ret))
}
