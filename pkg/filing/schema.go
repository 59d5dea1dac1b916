package filing

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-viper/mapstructure/v2"
)

// FormSchema describes the structural shape of a government form:
// parts containing sections containing fields, plus the skip policy.
type FormSchema struct {
	Parts []Part `json:"parts" yaml:"parts" mapstructure:"parts"`

	// Critical lists doublestar patterns over field paths. A field whose
	// path matches any pattern is non-skippable: a fill failure on it
	// aborts the whole run instead of degrading to a warning.
	Critical []string `json:"critical,omitempty" yaml:"critical" mapstructure:"critical"`
}

// Part is a top-level division of a form (e.g. "Part 2. Information
// About You").
type Part struct {
	Name     string    `json:"name" yaml:"name" mapstructure:"name"`
	Sections []Section `json:"sections" yaml:"sections" mapstructure:"sections"`
}

// Section groups related fields within a part.
type Section struct {
	Name   string  `json:"name" yaml:"name" mapstructure:"name"`
	Fields []Field `json:"fields" yaml:"fields" mapstructure:"fields"`
}

// Field is one fillable input on the form.
type Field struct {
	// Path is the dotted field path used to key form data and autosaves.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	Label string `json:"label,omitempty" yaml:"label" mapstructure:"label"`

	// Kind is the input kind (text, date, select, checkbox...). Opaque
	// to the orchestrator; the portal driver interprets it.
	Kind string `json:"kind,omitempty" yaml:"kind" mapstructure:"kind"`

	// Required marks the field as mandatory on the portal side. A
	// required field is always non-skippable, independent of the
	// Critical patterns.
	Required bool `json:"required,omitempty" yaml:"required" mapstructure:"required"`
}

// DecodeSchema converts a raw schema map (as delivered in an API request
// body) into a typed FormSchema.
func DecodeSchema(raw map[string]any) (FormSchema, error) {
	var schema FormSchema
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &schema,
		TagName: "mapstructure",
	})
	if err != nil {
		return FormSchema{}, fmt.Errorf("build schema decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return FormSchema{}, fmt.Errorf("decode form schema: %w", err)
	}
	return schema, nil
}

// Fields returns every field in part/section order.
func (s FormSchema) Fields() []Field {
	var out []Field
	for _, p := range s.Parts {
		for _, sec := range p.Sections {
			out = append(out, sec.Fields...)
		}
	}
	return out
}

// FieldByPath looks up a field by its dotted path.
func (s FormSchema) FieldByPath(path string) (Field, bool) {
	for _, f := range s.Fields() {
		if f.Path == path {
			return f, true
		}
	}
	return Field{}, false
}

// NonSkippable reports whether a fill failure on the field at path must
// abort the run. A field is non-skippable when its schema entry is
// Required or when its path matches a Critical pattern. Paths unknown to
// the schema are skippable.
func (s FormSchema) NonSkippable(path string) bool {
	if f, ok := s.FieldByPath(path); ok && f.Required {
		return true
	}
	for _, pattern := range s.Critical {
		ok, err := doublestar.Match(pattern, path)
		if err != nil {
			// An invalid pattern never promotes a failure to fatal.
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
