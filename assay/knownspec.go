package assay

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Built-in format specs ship with the package as JSON shape documents,
// one pair (resource + datum kwargs) per spec.
//
//go:embed specdata/*.json
var specData embed.FS

// KwargShape describes the expected shape of a kwargs mapping: which
// keys are required and what type each known key carries.
type KwargShape struct {
	Description string                   `json:"description,omitempty"`
	Properties  map[string]KwargProperty `json:"properties"`
	Required    []string                 `json:"required"`
}

// KwargProperty describes a single kwarg.
type KwargProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// SpecShape is the declared kwarg shape of one known format spec.
type SpecShape struct {
	Name     string
	Resource KwargShape
	Datum    KwargShape
}

// ValidateResourceKwargs checks open kwargs against the spec's declared
// resource shape.
func (s SpecShape) ValidateResourceKwargs(kwargs Kwargs) error {
	return s.Resource.validate(kwargs)
}

// ValidateDatumKwargs checks retrieval kwargs against the spec's
// declared datum shape.
func (s SpecShape) ValidateDatumKwargs(kwargs Kwargs) error {
	return s.Datum.validate(kwargs)
}

func (sh KwargShape) validate(kwargs Kwargs) error {
	for _, key := range sh.Required {
		if _, ok := kwargs[key]; !ok {
			return fmt.Errorf("missing required kwarg %q", key)
		}
	}
	for key, v := range kwargs {
		prop, ok := sh.Properties[key]
		if !ok {
			continue // undeclared kwargs pass through untouched
		}
		if !kwargTypeMatches(prop.Type, v) {
			return fmt.Errorf("kwarg %q: expected %s, got %T", key, prop.Type, v)
		}
	}
	return nil
}

func kwargTypeMatches(declared string, v any) bool {
	switch declared {
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "integer":
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64: // JSON decodes numbers as float64
			return n == float64(int64(n))
		default:
			return false
		}
	case "number":
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		default:
			return false
		}
	default:
		return true
	}
}

// knownSpecs is populated from the embedded shape documents at init.
var knownSpecs = loadKnownSpecs()

func loadKnownSpecs() map[string]SpecShape {
	entries, err := specData.ReadDir("specdata")
	if err != nil {
		panic(fmt.Sprintf("assay: reading embedded spec data: %v", err))
	}
	specs := make(map[string]SpecShape)
	for _, entry := range entries {
		name, kind, ok := splitSpecFile(entry.Name())
		if !ok {
			continue
		}
		raw, err := specData.ReadFile("specdata/" + entry.Name())
		if err != nil {
			panic(fmt.Sprintf("assay: reading embedded spec data: %v", err))
		}
		var shape KwargShape
		if err := json.Unmarshal(raw, &shape); err != nil {
			panic(fmt.Sprintf("assay: parsing embedded spec %s: %v", entry.Name(), err))
		}
		spec := specs[name]
		spec.Name = name
		switch kind {
		case "resource":
			spec.Resource = shape
		case "datum":
			spec.Datum = shape
		}
		specs[name] = spec
	}
	return specs
}

// splitSpecFile splits "AD_HDF5_resource.json" into ("AD_HDF5",
// "resource").
func splitSpecFile(filename string) (name, kind string, ok bool) {
	base, found := strings.CutSuffix(filename, ".json")
	if !found {
		return "", "", false
	}
	for _, k := range []string{"_resource", "_datum"} {
		if n, found := strings.CutSuffix(base, k); found {
			return n, strings.TrimPrefix(k, "_"), true
		}
	}
	return "", "", false
}

// KnownSpec returns the declared shape of a built-in format spec.
func KnownSpec(name string) (SpecShape, bool) {
	s, ok := knownSpecs[name]
	return s, ok
}

// KnownSpecs returns the names of all built-in format specs, sorted.
func KnownSpecs() []string {
	out := make([]string, 0, len(knownSpecs))
	for name := range knownSpecs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
