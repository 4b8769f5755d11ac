package review

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// patchDocument is the on-disk shape of a corrections file.
type patchDocument struct {
	Patches []Patch `yaml:"patches"`
}

// ParsePatches reads a corrections YAML document:
//
//	patches:
//	  - row: 2
//	    field: value
//	    value: "13.1"
//	  - row: 4
//	    drop: true
func ParsePatches(data []byte) ([]Patch, error) {
	var doc patchDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse corrections file: %w", err)
	}
	return doc.Patches, nil
}

// EncodePatches serializes patches into the corrections YAML shape.
func EncodePatches(patches []Patch) ([]byte, error) {
	data, err := yaml.Marshal(patchDocument{Patches: patches})
	if err != nil {
		return nil, fmt.Errorf("failed to encode corrections: %w", err)
	}
	return data, nil
}

// ParseSetExpr reads a command-line edit of the form "ROW.FIELD=VALUE",
// e.g. "2.value=13.1" or "0.name=Haemoglobin".
func ParseSetExpr(expr string) (Patch, error) {
	target, value, found := strings.Cut(expr, "=")
	if !found {
		return Patch{}, fmt.Errorf("bad edit %q: want ROW.FIELD=VALUE", expr)
	}
	rowPart, field, found := strings.Cut(target, ".")
	if !found || field == "" {
		return Patch{}, fmt.Errorf("bad edit %q: want ROW.FIELD=VALUE", expr)
	}
	row, err := strconv.Atoi(rowPart)
	if err != nil {
		return Patch{}, fmt.Errorf("bad edit %q: row %q is not a number", expr, rowPart)
	}
	return Patch{Row: row, Field: field, Value: value}, nil
}
