package rules

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultTable []byte

// Load reads a rule table from a reader.
func Load(r io.Reader) (*Table, error) {
	var t Table
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // strict: reject unknown fields
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("structural decode: %w", err)
	}
	return &t, nil
}

// LoadFile reads a rule table from a YAML file.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// DefaultYAML returns the embedded rule table source.
func DefaultYAML() []byte {
	return bytes.Clone(defaultTable)
}

// Default returns the embedded rule table, validated and compiled.
// It panics if the embedded table is broken, which tests guard against.
func Default() *CompiledTable {
	t, err := Load(bytes.NewReader(defaultTable))
	if err != nil {
		panic(fmt.Sprintf("rules: embedded table: %v", err))
	}
	ct, err := Compile(t)
	if err != nil {
		panic(fmt.Sprintf("rules: embedded table: %v", err))
	}
	return ct
}

// Open loads, validates and compiles the table at path. An empty path
// yields the embedded default table.
func Open(path string) (*CompiledTable, error) {
	if path == "" {
		return Default(), nil
	}
	t, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(t)
}
