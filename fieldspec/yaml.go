// Copyright (c) 2025 the bitstruct authors
// SPDX-License-Identifier: Apache-2.0
// This file is part of the bitstruct library.

package fieldspec

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FromYAML parses a YAML field-spec document into a validated spec sequence.
//
// The document is a list of field entries:
//
//	- id: hdr-len
//	  width: 8
//	- id: flags
//	  kind: bool
//	- id: name
//	  kind: ascii
//	  width: "[hdr-len] * 8"
//	- id: payload
//	  kind: choice
//	  width: 2
//	  branches:
//	    0: [{id: as-int, width: 16}]
//	    1: [{id: as-str, width: 16, kind: ascii}]
//	  default: [{id: skipped, kind: placeholder}]
//	- id: items
//	  kind: list
//	  count: item-count
//	  elements: [{id: value, width: 8}]
//
// Width-like values (width, count, span) may be an integer literal, the word
// "remaining", a plain field id (sibling reference) or anything else, which is
// treated as an expression.
func FromYAML(data []byte) ([]Spec, error) {
	var doc []yamlSpec
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing field spec yaml: %w", err)
	}

	specs, err := convertYamlSpecs(doc)
	if err != nil {
		return nil, err
	}
	if err := Validate(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

type yamlSpec struct {
	ID       string                `yaml:"id"`
	Kind     string                `yaml:"kind"`
	Width    yaml.Node             `yaml:"width"`
	Count    yaml.Node             `yaml:"count"`
	Span     yaml.Node             `yaml:"span"`
	Fields   []yamlSpec            `yaml:"fields"`
	Elements []yamlSpec            `yaml:"elements"`
	Branches map[uint64][]yamlSpec `yaml:"branches"`
	Default  []yamlSpec            `yaml:"default"`
	Align    bool                  `yaml:"align"`
}

func convertYamlSpecs(doc []yamlSpec) ([]Spec, error) {
	specs := make([]Spec, 0, len(doc))
	for i := range doc {
		spec, err := convertYamlSpec(&doc[i])
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func convertYamlSpec(entry *yamlSpec) (Spec, error) {
	spec := Spec{
		ID:    entry.ID,
		Align: entry.Align,
	}

	kind, err := kindFromString(entry.Kind)
	if err != nil {
		return Spec{}, fmt.Errorf("field %q: %w", entry.ID, err)
	}
	spec.Kind = kind

	if !entry.Width.IsZero() {
		if spec.Width, err = widthFromNode(&entry.Width); err != nil {
			return Spec{}, fmt.Errorf("field %q: %w", entry.ID, err)
		}
	} else if kind == KindBool {
		spec.Width = Bits(1)
	}

	switch kind {
	case KindStruct:
		if spec.Fields, err = convertYamlSpecs(entry.Fields); err != nil {
			return Spec{}, err
		}
	case KindList:
		if spec.Fields, err = convertYamlSpecs(entry.Elements); err != nil {
			return Spec{}, err
		}
		if !entry.Count.IsZero() {
			if spec.Count, err = widthFromNode(&entry.Count); err != nil {
				return Spec{}, fmt.Errorf("field %q: %w", entry.ID, err)
			}
		}
		if !entry.Span.IsZero() {
			if spec.Span, err = widthFromNode(&entry.Span); err != nil {
				return Spec{}, fmt.Errorf("field %q: %w", entry.ID, err)
			}
		}
	case KindChoice:
		if len(entry.Branches) > 0 {
			spec.Branches = make(map[uint64][]Spec, len(entry.Branches))
			for selector, branch := range entry.Branches {
				if spec.Branches[selector], err = convertYamlSpecs(branch); err != nil {
					return Spec{}, err
				}
			}
		}
		if entry.Default != nil {
			if spec.Default, err = convertYamlSpecs(entry.Default); err != nil {
				return Spec{}, err
			}
		}
	}

	return spec, nil
}

func kindFromString(s string) (Kind, error) {
	switch s {
	case "", "uint":
		return KindUint, nil
	case "int":
		return KindInt, nil
	case "bool":
		return KindBool, nil
	case "ascii":
		return KindAscii, nil
	case "raw":
		return KindRaw, nil
	case "placeholder":
		return KindPlaceholder, nil
	case "struct":
		return KindStruct, nil
	case "list":
		return KindList, nil
	case "choice":
		return KindChoice, nil
	default:
		return 0, fmt.Errorf("unknown field kind %q", s)
	}
}

// widthFromNode maps a scalar YAML value onto a Width: integers become
// literals, "remaining" consumes the enclosing span, plain identifiers are
// sibling references and everything else is an expression.
func widthFromNode(node *yaml.Node) (Width, error) {
	if node.Kind != yaml.ScalarNode {
		return Width{}, fmt.Errorf("width must be a scalar value")
	}

	if n, err := strconv.Atoi(node.Value); err == nil {
		return Bits(n), nil
	}
	if node.Value == "remaining" {
		return Remaining(), nil
	}
	if isPlainIdent(node.Value) {
		return Ref(node.Value), nil
	}
	return Expr(node.Value), nil
}

// isPlainIdent reports whether s looks like a bare field id (letters, digits,
// dashes and underscores, not starting with a digit).
func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == '-':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
