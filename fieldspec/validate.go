// Copyright (c) 2025 the bitstruct authors
// SPDX-License-Identifier: Apache-2.0
// This file is part of the bitstruct library.

package fieldspec

import (
	"fmt"

	"github.com/casbin/govaluate"

	"github.com/bitstruct/bitstruct/bitutils"
)

// DefaultMaxDepth bounds spec nesting during validation and decoding. Deeper
// specs are a configuration error, not a runtime one.
const DefaultMaxDepth = 64

// MaxIntegerBits is the widest span that integer and boolean kinds can
// compose into a single value. Wider spans must use ascii or raw kinds.
const MaxIntegerBits = 64

// Validate checks a spec sequence for structural errors: duplicate sibling
// ids, invalid literal widths, malformed choice/list parameters, unparsable
// width expressions and nesting beyond DefaultMaxDepth. Referenced sibling
// ids are resolved at decode time, not here, since their values drive the
// resolution.
func Validate(specs []Spec) error {
	return ValidateDepth(specs, DefaultMaxDepth)
}

// ValidateDepth is Validate with an explicit nesting depth bound.
func ValidateDepth(specs []Spec, maxDepth int) error {
	return validateSequence(specs, maxDepth, 0)
}

func validateSequence(specs []Spec, maxDepth int, depth int) error {
	if depth > maxDepth {
		return bitutils.ErrMaxDepth
	}

	seen := make(map[string]bool, len(specs))
	for i := range specs {
		spec := &specs[i]
		if spec.ID == "" {
			return fmt.Errorf("spec %v: missing field id", i)
		}
		if seen[spec.ID] {
			return fmt.Errorf("field %q: %w", spec.ID, bitutils.ErrDuplicateFieldID)
		}
		seen[spec.ID] = true

		if err := validateSpec(spec, maxDepth, depth); err != nil {
			return err
		}
	}
	return nil
}

func validateSpec(spec *Spec, maxDepth int, depth int) error {
	switch spec.Kind {
	case KindUint, KindInt:
		if err := validateWidth(spec.ID, spec.Width, MaxIntegerBits); err != nil {
			return err
		}
	case KindBool:
		if spec.Width.Mode != WidthLiteral || spec.Width.Bits != 1 {
			return fmt.Errorf("field %q: %w: boolean fields span exactly 1 bit", spec.ID, bitutils.ErrInvalidWidth)
		}
	case KindAscii:
		if err := validateWidth(spec.ID, spec.Width, 0); err != nil {
			return err
		}
		if spec.Width.Mode == WidthLiteral && spec.Width.Bits%8 != 0 {
			return fmt.Errorf("field %q: %w: ascii width %v is not a multiple of 8", spec.ID, bitutils.ErrInvalidWidth, spec.Width.Bits)
		}
	case KindRaw:
		if err := validateWidth(spec.ID, spec.Width, 0); err != nil {
			return err
		}
	case KindPlaceholder:
		if !spec.Width.IsZero() {
			return fmt.Errorf("field %q: %w: placeholder fields consume no bits", spec.ID, bitutils.ErrInvalidWidth)
		}
	case KindStruct:
		if !spec.Width.IsZero() {
			return fmt.Errorf("field %q: %w: struct fields derive their width from their children", spec.ID, bitutils.ErrInvalidWidth)
		}
		if err := validateSequence(spec.Fields, maxDepth, depth+1); err != nil {
			return err
		}
	case KindList:
		hasCount := !spec.Count.IsZero()
		hasSpan := !spec.Span.IsZero()
		if hasCount == hasSpan {
			return fmt.Errorf("field %q: list needs exactly one of count or span", spec.ID)
		}
		if len(spec.Fields) == 0 {
			return fmt.Errorf("field %q: list has no element spec", spec.ID)
		}
		if hasCount {
			if err := validateQuantity(spec.ID, spec.Count); err != nil {
				return err
			}
		} else {
			if err := validateQuantity(spec.ID, spec.Span); err != nil {
				return err
			}
		}
		if err := validateSequence(spec.Fields, maxDepth, depth+1); err != nil {
			return err
		}
	case KindChoice:
		if err := validateWidth(spec.ID, spec.Width, MaxIntegerBits); err != nil {
			return err
		}
		if len(spec.Branches) == 0 && spec.Default == nil {
			return fmt.Errorf("field %q: choice has no branches", spec.ID)
		}
		for selector, branch := range spec.Branches {
			if err := validateSequence(branch, maxDepth, depth+1); err != nil {
				return fmt.Errorf("choice %q branch %v: %w", spec.ID, selector, err)
			}
		}
		if spec.Default != nil {
			if err := validateSequence(spec.Default, maxDepth, depth+1); err != nil {
				return fmt.Errorf("choice %q default branch: %w", spec.ID, err)
			}
		}
	default:
		return fmt.Errorf("field %q: unknown kind %v", spec.ID, spec.Kind)
	}
	return nil
}

// validateWidth checks a scalar width declaration. maxBits of 0 means the
// kind has no upper bound on its span.
func validateWidth(id string, w Width, maxBits int) error {
	switch w.Mode {
	case WidthLiteral:
		if w.Bits <= 0 {
			return fmt.Errorf("field %q: %w: literal width must be positive, got %v", id, bitutils.ErrInvalidWidth, w.Bits)
		}
		if maxBits > 0 && w.Bits > maxBits {
			return fmt.Errorf("field %q: %w: width %v exceeds %v bits", id, bitutils.ErrInvalidWidth, w.Bits, maxBits)
		}
		return nil
	default:
		return validateQuantity(id, w)
	}
}

// validateQuantity checks the resolvable forms shared by widths, counts and
// spans: references must name a field, expressions must parse.
func validateQuantity(id string, w Width) error {
	switch w.Mode {
	case WidthLiteral:
		if w.Bits < 0 {
			return fmt.Errorf("field %q: %w: negative quantity %v", id, bitutils.ErrInvalidWidth, w.Bits)
		}
	case WidthRef:
		if w.Ref == "" {
			return fmt.Errorf("field %q: %w: empty reference", id, bitutils.ErrUnresolvedReference)
		}
	case WidthExpr:
		if _, err := govaluate.NewEvaluableExpression(w.Expr); err != nil {
			return fmt.Errorf("field %q: invalid width expression %q: %v", id, w.Expr, err)
		}
	case WidthRemaining:
		// resolved against the enclosing span at decode time
	default:
		return fmt.Errorf("field %q: unknown width mode %v", id, w.Mode)
	}
	return nil
}
