// Copyright (c) 2025 the bitstruct authors
// SPDX-License-Identifier: Apache-2.0
// This file is part of the bitstruct library.

// Package codegen turns annotated Go struct types into fieldspec.Spec
// declarations. Struct fields carry a `bits` tag holding a literal width, a
// sibling reference, an expression or "remaining", the way widths are written
// in YAML specs. Slice fields carry a `count` or `span` tag instead. The
// generator emits one spec variable per requested type into a single
// generated source file.
//
// Tagged choices have no Go struct equivalent and stay spec-authored.
package codegen

import (
	"fmt"
	"go/format"
	"go/types"
	"reflect"
	"strings"
	"unicode"
)

// SpecGenerator collects struct types and renders their bit layout specs as
// generated Go source.
type SpecGenerator struct {
	pkgName  string
	requests []*request
}

type request struct {
	name string
	st   *types.Struct
}

// NewSpecGenerator creates a generator emitting into the named package.
func NewSpecGenerator(pkgName string) *SpecGenerator {
	return &SpecGenerator{
		pkgName:  pkgName,
		requests: make([]*request, 0),
	}
}

// AddType registers a struct type for generation. The emitted variable is
// named <typeName>Spec.
func (g *SpecGenerator) AddType(typeName string, st *types.Struct) error {
	if st == nil {
		return fmt.Errorf("type %s is not a struct", typeName)
	}
	g.requests = append(g.requests, &request{name: typeName, st: st})
	return nil
}

// Generate renders the collected types into one gofmt-formatted source file.
func (g *SpecGenerator) Generate() (string, error) {
	if len(g.requests) == 0 {
		return "", fmt.Errorf("no types requested for generation")
	}

	code := strings.Builder{}
	code.WriteString("// Code generated by bitstruct-gen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&code, "package %s\n\n", g.pkgName)
	code.WriteString("import (\n\t\"github.com/bitstruct/bitstruct/fieldspec\"\n)\n\n")

	for _, req := range g.requests {
		fmt.Fprintf(&code, "// %sSpec is the bit layout of %s.\n", req.name, req.name)
		fmt.Fprintf(&code, "var %sSpec = []fieldspec.Spec{\n", req.name)
		if err := g.writeFields(&code, req.st, 1); err != nil {
			return "", fmt.Errorf("failed to generate spec for %s: %w", req.name, err)
		}
		code.WriteString("}\n\n")
	}

	formatted, err := format.Source([]byte(code.String()))
	if err != nil {
		return "", fmt.Errorf("generated code does not format: %w", err)
	}
	return string(formatted), nil
}

func (g *SpecGenerator) writeFields(code *strings.Builder, st *types.Struct, depth int) error {
	indent := strings.Repeat("\t", depth)

	for i := 0; i < st.NumFields(); i++ {
		field := st.Field(i)
		if !field.Exported() {
			continue
		}

		tag := reflect.StructTag(st.Tag(i))
		id := tag.Get("id")
		if id == "" {
			id = kebabCase(field.Name())
		}

		expr, err := g.fieldExpr(field, tag, id, depth)
		if err != nil {
			return fmt.Errorf("field %s: %w", field.Name(), err)
		}
		fmt.Fprintf(code, "%s%s,\n", indent, expr)
	}
	return nil
}

// fieldExpr renders the fieldspec constructor call for one struct field.
func (g *SpecGenerator) fieldExpr(field *types.Var, tag reflect.StructTag, id string, depth int) (string, error) {
	typ := field.Type().Underlying()

	switch t := typ.(type) {
	case *types.Basic:
		info := t.Info()
		switch {
		case info&types.IsBoolean != 0:
			return fmt.Sprintf("fieldspec.Bool(%q)", id), nil
		case info&types.IsUnsigned != 0:
			width, err := widthExpr(tag.Get("bits"))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("fieldspec.Uint(%q, %s)", id, width), nil
		case info&types.IsInteger != 0:
			width, err := widthExpr(tag.Get("bits"))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("fieldspec.Int(%q, %s)", id, width), nil
		case info&types.IsString != 0:
			width, err := widthExpr(tag.Get("bits"))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("fieldspec.Ascii(%q, %s)", id, width), nil
		default:
			return "", fmt.Errorf("unsupported basic type %s", t.String())
		}

	case *types.Slice:
		if elem, ok := t.Elem().Underlying().(*types.Basic); ok && elem.Kind() == types.Byte {
			width, err := widthExpr(tag.Get("bits"))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("fieldspec.Raw(%q, %s)", id, width), nil
		}

		elemStruct, ok := t.Elem().Underlying().(*types.Struct)
		if !ok {
			return "", fmt.Errorf("list element type %s is not a struct", t.Elem().String())
		}
		elements := strings.Builder{}
		if err := g.writeFields(&elements, elemStruct, depth+1); err != nil {
			return "", err
		}

		indent := strings.Repeat("\t", depth)
		if countTag := tag.Get("count"); countTag != "" {
			count, err := widthExpr(countTag)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("fieldspec.List(%q, %s,\n%s%s)", id, count, elements.String(), indent), nil
		}
		if spanTag := tag.Get("span"); spanTag != "" {
			span, err := widthExpr(spanTag)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("fieldspec.ListSpan(%q, %s,\n%s%s)", id, span, elements.String(), indent), nil
		}
		return "", fmt.Errorf("slice field needs a count or span tag")

	case *types.Struct:
		fields := strings.Builder{}
		if err := g.writeFields(&fields, t, depth+1); err != nil {
			return "", err
		}
		indent := strings.Repeat("\t", depth)
		return fmt.Sprintf("fieldspec.Struct(%q,\n%s%s)", id, fields.String(), indent), nil

	default:
		return "", fmt.Errorf("unsupported type %s", field.Type().String())
	}
}

// widthExpr maps a width tag to the fieldspec constructor producing it,
// mirroring how YAML width scalars are interpreted.
func widthExpr(tag string) (string, error) {
	if tag == "" {
		return "", fmt.Errorf("missing bits tag")
	}
	if tag == "remaining" {
		return "fieldspec.Remaining()", nil
	}
	if isNumber(tag) {
		return fmt.Sprintf("fieldspec.Bits(%s)", tag), nil
	}
	if isIdent(tag) {
		return fmt.Sprintf("fieldspec.Ref(%q)", tag), nil
	}
	return fmt.Sprintf("fieldspec.Expr(%q)", tag), nil
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func isIdent(s string) bool {
	for i, r := range s {
		if unicode.IsLetter(r) || r == '-' || r == '_' {
			continue
		}
		if unicode.IsDigit(r) && i > 0 {
			continue
		}
		return false
	}
	return len(s) > 0
}

// kebabCase turns a Go field name into the dashed id convention of specs:
// VersionNumber becomes version-number, MyInt1 becomes my-int-1.
func kebabCase(name string) string {
	out := strings.Builder{}
	runes := []rune(name)
	for i, r := range runes {
		boundary := i > 0 &&
			((unicode.IsUpper(r) && !unicode.IsUpper(runes[i-1])) ||
				(unicode.IsDigit(r) && !unicode.IsDigit(runes[i-1])))
		if boundary {
			out.WriteRune('-')
		}
		out.WriteRune(unicode.ToLower(r))
	}
	return out.String()
}
