// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// StringList is a []string that also accepts a single bare scalar in
// YAML. "needs: quality" and "needs: [quality, test]" both decode.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make(StringList, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list entries must be scalars", item.Line)
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected scalar or list", value.Line)
	}
}

// StringMap is a map[string]string that accepts any scalar value kind.
// YAML types numbers and booleans as !!int/!!float/!!bool; workflow
// semantics treat every value as a string ("python-version: 3.9" means
// the string "3.9"), so decoding takes the scalar's source text.
type StringMap map[string]string

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *StringMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		*m = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", value.Line)
	}
	out := make(StringMap, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i]
		val := value.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: value for %q must be a scalar", val.Line, key.Value)
		}
		out[key.Value] = val.Value
	}
	*m = out
	return nil
}

// FlexString is a string that accepts any YAML scalar, preserving the
// scalar's source text. "default: true" under a boolean input decodes
// as the string "true" rather than failing the !!bool conversion.
type FlexString string

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *FlexString) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", value.Line)
	}
	if value.Tag == "!!null" {
		*f = ""
		return nil
	}
	*f = FlexString(value.Value)
	return nil
}

// Secrets is a job's secret declaration: either the literal "inherit"
// (forward the caller's full secret set across the reusable-workflow
// boundary) or an explicit name-to-expression mapping.
type Secrets struct {
	// Inherit is true when the declaration is the literal "inherit".
	Inherit bool

	// Values maps secret names to the expressions that produce them,
	// normally "${{ secrets.NAME }}". Nil when Inherit is set or the
	// job declares no secrets.
	Values map[string]string
}

// IsZero reports whether no secrets were declared. Used by validation
// to distinguish "no secrets key" from "secrets: {}".
func (s *Secrets) IsZero() bool {
	return !s.Inherit && s.Values == nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Secrets) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value == "inherit" {
			s.Inherit = true
			return nil
		}
		return fmt.Errorf("line %d: secrets must be a mapping or the literal \"inherit\", got %q",
			value.Line, value.Value)
	case yaml.MappingNode:
		values := make(map[string]string, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			key := value.Content[i]
			val := value.Content[i+1]
			if val.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: secret %q must map to a scalar expression", val.Line, key.Value)
			}
			values[key.Value] = val.Value
		}
		s.Values = values
		return nil
	default:
		return fmt.Errorf("line %d: secrets must be a mapping or the literal \"inherit\"", value.Line)
	}
}
