// Copyright (c) 2025 the bitstruct authors
// SPDX-License-Identifier: Apache-2.0
// This file is part of the bitstruct library.

package bitstruct

import (
	"fmt"

	"github.com/bitstruct/bitstruct/bitutils"
	"github.com/bitstruct/bitstruct/fieldspec"
)

// resolveQuantity turns a declared width, count or span into a concrete bit
// or element quantity. References and expressions resolve against the
// in-progress field tree of the enclosing structure only, so dependencies are
// local and acyclic by construction: a reference to a field that has not been
// decoded yet fails instead of looking ahead.
func (d *Decoder) resolveQuantity(w fieldspec.Width, scope *Tree, r *bitutils.BitReader) (int, error) {
	switch w.Mode {
	case fieldspec.WidthLiteral:
		return w.Bits, nil

	case fieldspec.WidthRef:
		sibling := scope.Get(w.Ref)
		if sibling == nil {
			return 0, fmt.Errorf("%w: %q", bitutils.ErrUnresolvedReference, w.Ref)
		}
		value, ok := sibling.refValue()
		if !ok {
			return 0, fmt.Errorf("%w: %q is a %v field and has no integer value", bitutils.ErrUnresolvedReference, w.Ref, sibling.kind)
		}
		// a 64 bit sibling above MaxInt64 wraps negative on conversion
		if value < 0 {
			return 0, fmt.Errorf("%w: %q resolves to negative quantity %v", bitutils.ErrInvalidWidth, w.Ref, value)
		}
		return value, nil

	case fieldspec.WidthExpr:
		expression, err := d.getExpression(w.Expr)
		if err != nil {
			return 0, fmt.Errorf("error parsing width expression %q: %v", w.Expr, err)
		}

		params := make(map[string]any, len(d.specValues)+scope.Len())
		for name, value := range d.specValues {
			// govaluate only computes on float64
			if number, ok := toFloat(value); ok {
				params[name] = number
			} else {
				params[name] = value
			}
		}
		for _, sibling := range scope.Fields() {
			if value, ok := sibling.refValue(); ok {
				params[sibling.id] = float64(value)
			}
		}

		result, err := expression.Evaluate(params)
		if err != nil {
			return 0, fmt.Errorf("%w: expression %q: %v", bitutils.ErrUnresolvedReference, w.Expr, err)
		}
		value, ok := result.(float64)
		if !ok {
			return 0, fmt.Errorf("%w: expression %q yields %T, not a number", bitutils.ErrUnresolvedReference, w.Expr, result)
		}
		quantity := int(value)
		if float64(quantity) < value {
			// rounding issue - round up, we can't consume partial bits
			quantity++
		}
		if quantity < 0 {
			return 0, fmt.Errorf("%w: expression %q yields %v", bitutils.ErrInvalidWidth, w.Expr, quantity)
		}
		return quantity, nil

	case fieldspec.WidthRemaining:
		return r.Remaining(), nil

	default:
		return 0, fmt.Errorf("unknown width mode %v", w.Mode)
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
