package yaml

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Encoder renders YAML
type Encoder struct {
	indent int
}

// NewEncoder returns YAML encoder with 2 spaces indent
func NewEncoder() *Encoder {
	return &Encoder{indent: 2}
}

// Format returns "yaml"
func (e *Encoder) Format() string {
	return "yaml"
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(e.indent)
	if err := enc.Encode(v); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := enc.Close(); err != nil {
		return nil, errors.WithStack(err)
	}
	return b.Bytes(), nil
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	return errors.WithStack(yaml.Unmarshal(bs, ret))
}
