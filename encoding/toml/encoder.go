package toml

import (
	"bytes"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

// Encoder renders TOML
type Encoder struct{}

// NewEncoder returns TOML encoder
func NewEncoder() *Encoder {
	return new(Encoder)
}

// Format returns "toml"
func (e *Encoder) Format() string {
	return "toml"
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := toml.NewEncoder(&b)
	enc.Indent = ""
	if err := enc.Encode(v); err != nil {
		return nil, errors.WithStack(err)
	}
	return b.Bytes(), nil
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	_, err := toml.Decode(string(bs), ret)
	return errors.WithStack(err)
}
