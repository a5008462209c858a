// Package encoding provides the encoders used to render tool results
// in the configured output format.
package encoding

import (
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/cockroachdb/errors"
	jsonenc "github.com/effective-security/issmcp/encoding/json"
	textenc "github.com/effective-security/issmcp/encoding/text"
	tomlenc "github.com/effective-security/issmcp/encoding/toml"
	yamlenc "github.com/effective-security/issmcp/encoding/yaml"
	"github.com/go-playground/validator/v10"
)

// Encoder renders values in a specific format
type Encoder interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(bs []byte, v any) error
	// Format returns the name of the format
	Format() Format
}

// Format is the name of an output format
type Format = string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Formats lists the supported formats, sorted
var Formats = []Format{FormatJSON, FormatText, FormatTOML, FormatYAML}

var (
	_ Encoder = (*jsonenc.Encoder)(nil)
	_ Encoder = (*textenc.Encoder)(nil)
	_ Encoder = (*tomlenc.Encoder)(nil)
	_ Encoder = (*yamlenc.Encoder)(nil)
)

// NewEncoder returns the encoder of the format, empty format is JSON.
// textTemplate is only used by the text format, empty uses the default template.
func NewEncoder(format Format, textTemplate string) (Encoder, error) {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return jsonenc.NewEncoder(), nil
	case FormatYAML:
		return yamlenc.NewEncoder(), nil
	case FormatTOML:
		return tomlenc.NewEncoder(), nil
	case FormatText:
		return textenc.NewEncoder(textTemplate)
	}
	return nil, errors.Newf("unsupported format: %q", format)
}

var validate = validator.New()

// Validate checks the `validate` tags of the struct
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}

// Example fills sample with fake data, honoring the `fake` tags,
// and returns it rendered with enc.
// sample must be a pointer to a struct.
func Example(enc Encoder, sample any) string {
	if err := gofakeit.Struct(sample); err != nil {
		return ""
	}
	bs, err := enc.Marshal(sample)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(bs))
}
