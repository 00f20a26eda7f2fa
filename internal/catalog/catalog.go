// Package catalog holds the localized form definitions for the stroke-risk front-end.
// A catalog maps every display label a user can pick to the categorical value the
// trained classifier was fitted on, and carries the UI strings for one locale.
//
// Built-in locales are embedded YAML files; a deployment can ship its own file.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// ErrUnknownLabel is returned when a display label has no mapping in its field.
var ErrUnknownLabel = errors.New("unknown label")

// ErrUnknownField is returned when a field name is not part of the catalog.
var ErrUnknownField = errors.New("unknown field")

// Categorical model columns every catalog must define.
var RequiredFields = []string{
	"gender",
	"ever_married",
	"work_type",
	"Residence_type",
	"hypertension",
	"heart_disease",
	"smoking_status",
}

// Model columns encoded as 0/1; their fields must be marked binary.
var BinaryFields = []string{"hypertension", "heart_disease"}

// Form sections
const (
	SectionPersonal = "personal"
	SectionHealth   = "health"
)

type Option struct {
	Label string `yaml:"label" json:"label"`
	Value string `yaml:"value" json:"value"`
}

type Field struct {
	Name    string   `yaml:"name" json:"name"`
	Label   string   `yaml:"label" json:"label"`
	Section string   `yaml:"section" json:"section"`
	Binary  bool     `yaml:"binary" json:"binary"`
	Options []Option `yaml:"options" json:"options"`
}

// Default returns the first option's label, which is the initial selection.
func (f Field) Default() string {
	if len(f.Options) == 0 {
		return ""
	}
	return f.Options[0].Label
}

// Lookup returns the model value for a display label.
func (f Field) Lookup(label string) (string, bool) {
	for _, o := range f.Options {
		if o.Label == label {
			return o.Value, true
		}
	}
	return "", false
}

type Strings struct {
	Title           string `yaml:"title" json:"title"`
	Subtitle        string `yaml:"subtitle" json:"subtitle"`
	PersonalSection string `yaml:"personalSection" json:"personalSection"`
	HealthSection   string `yaml:"healthSection" json:"healthSection"`
	AgeLabel        string `yaml:"ageLabel" json:"ageLabel"`
	BMILabel        string `yaml:"bmiLabel" json:"bmiLabel"`
	GlucoseLabel    string `yaml:"glucoseLabel" json:"glucoseLabel"`
	Submit          string `yaml:"submit" json:"submit"`
	ResultHeader    string `yaml:"resultHeader" json:"resultHeader"`
	MetricLabel     string `yaml:"metricLabel" json:"metricLabel"`
	BandLow         string `yaml:"bandLow" json:"bandLow"`
	BandMedium      string `yaml:"bandMedium" json:"bandMedium"`
	BandHigh        string `yaml:"bandHigh" json:"bandHigh"`
	ErrorPrefix     string `yaml:"errorPrefix" json:"errorPrefix"`
	ModelMissing    string `yaml:"modelMissing" json:"modelMissing"`
	LiveStats       string `yaml:"liveStats" json:"liveStats"`
}

// Catalog is the label-mapping table and UI text for one locale.
// It is read-only after loading and safe for concurrent use.
type Catalog struct {
	Locale  string  `yaml:"locale" json:"locale"`
	Strings Strings `yaml:"strings" json:"strings"`
	Fields  []Field `yaml:"fields" json:"fields"`

	index map[string]int
}

// Load returns the built-in catalog for a locale.
func Load(locale string) (*Catalog, error) {
	data, err := localeFS.ReadFile("locales/" + locale + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("locale %q not available (have %v): %w", locale, Locales(), err)
	}
	return Parse(data)
}

// LoadFile reads a catalog from a YAML file on disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %q: %w", c.Locale, err)
	}
	return &c, nil
}

// Locales lists the embedded locale codes.
func Locales() []string {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		out = append(out, name[:len(name)-len(".yaml")])
	}
	sort.Strings(out)
	return out
}

// Validate checks that every required field is present with unique, non-empty
// options, that the 0/1 model columns are binary fields and that binary fields only
// map to 0 or 1. It also builds the field index.
func (c *Catalog) Validate() error {
	c.index = make(map[string]int, len(c.Fields))
	for i, f := range c.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if _, dup := c.index[f.Name]; dup {
			return fmt.Errorf("field %s defined twice", f.Name)
		}
		if len(f.Options) == 0 {
			return fmt.Errorf("field %s has no options", f.Name)
		}
		seen := make(map[string]bool, len(f.Options))
		for _, o := range f.Options {
			if o.Label == "" || o.Value == "" {
				return fmt.Errorf("field %s has an empty label or value", f.Name)
			}
			if seen[o.Label] {
				return fmt.Errorf("field %s repeats label %q", f.Name, o.Label)
			}
			seen[o.Label] = true
			if f.Binary && o.Value != "0" && o.Value != "1" {
				return fmt.Errorf("binary field %s maps %q to %q, want 0 or 1", f.Name, o.Label, o.Value)
			}
		}
		c.index[f.Name] = i
	}

	for _, name := range RequiredFields {
		if _, ok := c.index[name]; !ok {
			return fmt.Errorf("required field %s missing", name)
		}
	}
	for _, name := range BinaryFields {
		if !c.Fields[c.index[name]].Binary {
			return fmt.Errorf("field %s must be binary", name)
		}
	}
	return nil
}

// Field returns the field definition by model column name.
func (c *Catalog) Field(name string) (Field, bool) {
	i, ok := c.index[name]
	if !ok {
		return Field{}, false
	}
	return c.Fields[i], true
}

// Translate converts a display label into the model value for a field.
func (c *Catalog) Translate(field, label string) (string, error) {
	f, ok := c.Field(field)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	v, ok := f.Lookup(label)
	if !ok {
		return "", fmt.Errorf("%w %q for %s", ErrUnknownLabel, label, field)
	}
	return v, nil
}

// Section returns the fields of one form column in display order.
func (c *Catalog) Section(section string) []Field {
	var out []Field
	for _, f := range c.Fields {
		if f.Section == section {
			out = append(out, f)
		}
	}
	return out
}
