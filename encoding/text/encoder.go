package text

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
)

// DefaultTemplate prints the value with the default format
const DefaultTemplate = "{{ . }}\n"

// Encoder renders values with a text/template,
// the sprig functions are available in the template.
type Encoder struct {
	tmpl *template.Template
}

// NewEncoder parses the template, empty uses DefaultTemplate
func NewEncoder(text string) (*Encoder, error) {
	if text == "" {
		text = DefaultTemplate
	}
	tmpl, err := template.New("text").
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse template")
	}
	return &Encoder{tmpl: tmpl}, nil
}

// Format returns "text"
func (e *Encoder) Format() string {
	return "text"
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	var b bytes.Buffer
	if err := e.tmpl.Execute(&b, v); err != nil {
		return nil, errors.Wrap(err, "failed to execute template")
	}
	return b.Bytes(), nil
}

// Unmarshal is not supported by the text format
func (e *Encoder) Unmarshal(_ []byte, _ any) error {
	return errors.New("text format does not support unmarshal")
}
