package routekit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// UseCaseSpec is the on-disk shape of one use case.
type UseCaseSpec struct {
	Inputs *InputSpec `json:"inputs,omitempty" yaml:"inputs,omitempty" toml:"inputs,omitempty"`
	Zip    *ZipSpec   `json:"zip,omitempty" yaml:"zip,omitempty" toml:"zip,omitempty"`
}

// InputSpec configures plain file routing. Destination is a single path or
// a list of paths; the first is the primary.
type InputSpec struct {
	Name                  string           `json:"name" yaml:"name" toml:"name" validate:"required"`
	Destination           any              `json:"destination" yaml:"destination" toml:"destination" validate:"required"`
	DateFormatting        string           `json:"date_formatting,omitempty" yaml:"date_formatting,omitempty" toml:"date_formatting,omitempty" validate:"required_with=DateFormattingDT"`
	DateFormattingDT      string           `json:"date_formatting_dt,omitempty" yaml:"date_formatting_dt,omitempty" toml:"date_formatting_dt,omitempty" validate:"required_with=DateFormatting"`
	DestinationTransforms []*TransformSpec `json:"destination_transforms,omitempty" yaml:"destination_transforms,omitempty" toml:"destination_transforms,omitempty"`
	CreateDirs            *bool            `json:"create_dirs,omitempty" yaml:"create_dirs,omitempty" toml:"create_dirs,omitempty"`
}

// TransformSpec renames the copy sent to one destination.
type TransformSpec struct {
	OffsetDays      int    `json:"offset_days" yaml:"offset_days" toml:"offset_days"`
	DateFormat      string `json:"date_format" yaml:"date_format" toml:"date_format" validate:"required_with=OffsetDays"`
	DateFormatParse string `json:"date_format_parse" yaml:"date_format_parse" toml:"date_format_parse" validate:"required_with=DateFormat"`
}

// ZipSpec configures archive extraction.
type ZipSpec struct {
	Name             string         `json:"name" yaml:"name" toml:"name" validate:"required"`
	Destination      string         `json:"destination" yaml:"destination" toml:"destination" validate:"required"`
	DateFormatting   string         `json:"date_formatting,omitempty" yaml:"date_formatting,omitempty" toml:"date_formatting,omitempty" validate:"required_with=DateFormattingDT"`
	DateFormattingDT string         `json:"date_formatting_dt,omitempty" yaml:"date_formatting_dt,omitempty" toml:"date_formatting_dt,omitempty" validate:"required_with=DateFormatting"`
	Subfolder        string         `json:"subfolder,omitempty" yaml:"subfolder,omitempty" toml:"subfolder,omitempty"`
	StaleSource      string         `json:"stale_source,omitempty" yaml:"stale_source,omitempty" toml:"stale_source,omitempty" validate:"omitempty,oneof=keep delete"`
	Companion        *CompanionSpec `json:"companion,omitempty" yaml:"companion,omitempty" toml:"companion,omitempty"`
}

// CompanionSpec names the companion archive. Members defaults to "*".
type CompanionSpec struct {
	Path    string `json:"path" yaml:"path" toml:"path" validate:"required"`
	Members string `json:"members,omitempty" yaml:"members,omitempty" toml:"members,omitempty"`
}

var validate = validator.New()

// LoadUseCases reads a use-case file. The format follows the extension:
// .json, .yaml/.yml or .toml.
func LoadUseCases(path string) ([]*UseCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read use cases: %w", err)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	cases, err := ParseUseCases(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cases, nil
}

// ParseUseCases decodes and compiles use cases. format is "json", "yaml",
// "yml" or "toml". All problems are reported together; nothing is returned
// unless every use case is valid.
func ParseUseCases(data []byte, format string) ([]*UseCase, error) {
	specs := map[string]UseCaseSpec{}

	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&specs); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&specs); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&specs); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: use case format %q", ErrNotSupported, format)
	}

	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	cases := make([]*UseCase, 0, len(names))
	for _, name := range names {
		uc, err := CompileUseCase(name, specs[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cases = append(cases, uc)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cases, nil
}

// CompileUseCase validates spec and turns it into a UseCase.
func CompileUseCase(name string, spec UseCaseSpec) (*UseCase, error) {
	if spec.Inputs == nil && spec.Zip == nil {
		return nil, fmt.Errorf("use case %q: needs inputs or zip", name)
	}

	uc := &UseCase{Name: name}
	var errs []error
	if spec.Inputs != nil {
		rule, err := compileInputs(spec.Inputs)
		if err != nil {
			errs = append(errs, fmt.Errorf("use case %q inputs: %w", name, err))
		}
		uc.Inputs = rule
	}
	if spec.Zip != nil {
		rule, err := compileZip(spec.Zip)
		if err != nil {
			errs = append(errs, fmt.Errorf("use case %q zip: %w", name, err))
		}
		uc.Zip = rule
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return uc, nil
}

func compileInputs(spec *InputSpec) (*InputRule, error) {
	if err := validate.Struct(spec); err != nil {
		return nil, err
	}

	raw, err := destinationList(spec.Destination)
	if err != nil {
		return nil, err
	}
	if len(spec.DestinationTransforms) > len(raw) {
		return nil, fmt.Errorf("%d destination transforms for %d destinations", len(spec.DestinationTransforms), len(raw))
	}

	rule := &InputRule{CreateDirs: spec.CreateDirs == nil || *spec.CreateDirs}
	if rule.Pattern, err = Glob(spec.Name); err != nil {
		return nil, err
	}
	if rule.DateFormat, err = optionalDateFormat(spec.DateFormatting, spec.DateFormattingDT); err != nil {
		return nil, err
	}

	for i, r := range raw {
		tmpl, err := ParseTemplate(r)
		if err != nil {
			return nil, fmt.Errorf("destination %d: %w", i, err)
		}
		dest := Destination{Template: tmpl}
		if i < len(spec.DestinationTransforms) {
			if dest.Transform, err = compileTransform(spec.DestinationTransforms[i]); err != nil {
				return nil, fmt.Errorf("destination %d transform: %w", i, err)
			}
		}
		rule.Destinations = append(rule.Destinations, dest)
	}

	if rule.DateFormat == nil {
		for _, d := range rule.Destinations {
			if d.Template.HasPlaceholders() {
				return nil, fmt.Errorf("destination %q has date placeholders but no date_formatting", d.Template)
			}
		}
	}
	return rule, nil
}

// destinationList accepts a single path or a list of paths.
func destinationList(v any) ([]string, error) {
	switch d := v.(type) {
	case string:
		if d == "" {
			return nil, errors.New("empty destination")
		}
		return []string{d}, nil
	case []any:
		if len(d) == 0 {
			return nil, errors.New("empty destination list")
		}
		out := make([]string, 0, len(d))
		for i, item := range d {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("destination %d: want a non-empty string, got %v", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		if len(d) == 0 {
			return nil, errors.New("empty destination list")
		}
		return d, nil
	default:
		return nil, fmt.Errorf("destination: want a string or a list of strings, got %T", v)
	}
}

func compileTransform(spec *TransformSpec) (*Transform, error) {
	if spec == nil || (spec.OffsetDays == 0 && spec.DateFormat == "") {
		return nil, nil
	}
	if err := validate.Struct(spec); err != nil {
		return nil, err
	}
	format, err := NewDateFormat(spec.DateFormat, spec.DateFormatParse)
	if err != nil {
		return nil, err
	}
	return &Transform{OffsetDays: spec.OffsetDays, Format: format}, nil
}

func optionalDateFormat(display, parse string) (*DateFormat, error) {
	if display == "" && parse == "" {
		return nil, nil
	}
	return NewDateFormat(display, parse)
}

func compileZip(spec *ZipSpec) (*ZipRule, error) {
	if err := validate.Struct(spec); err != nil {
		return nil, err
	}

	rule := &ZipRule{StaleSource: StalePolicy(spec.StaleSource)}
	if rule.StaleSource == "" {
		rule.StaleSource = StaleKeep
	}

	var err error
	if rule.Pattern, err = Glob(spec.Name); err != nil {
		return nil, err
	}
	if rule.DateFormat, err = optionalDateFormat(spec.DateFormatting, spec.DateFormattingDT); err != nil {
		return nil, err
	}
	if rule.Destination, err = ParseTemplate(spec.Destination); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	if spec.Subfolder != "" {
		sub, err := ParseTemplate(spec.Subfolder)
		if err != nil {
			return nil, fmt.Errorf("subfolder: %w", err)
		}
		rule.Subfolder = &sub
	}
	if rule.DateFormat == nil && rule.needsDate() {
		return nil, errors.New("destination has date placeholders but no date_formatting")
	}

	if c := spec.Companion; c != nil {
		comp := &CompanionRule{}
		if comp.Path, err = ParseTemplate(c.Path); err != nil {
			return nil, fmt.Errorf("companion path: %w", err)
		}
		members := c.Members
		if members == "" {
			members = "*"
		}
		if comp.Members, err = Glob(members); err != nil {
			return nil, fmt.Errorf("companion members: %w", err)
		}
		rule.Companion = comp
	}
	return rule, nil
}
