// Copyright (c) 2025 the bitstruct authors
// SPDX-License-Identifier: Apache-2.0
// This file is part of the bitstruct library.

package bitstruct

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bitstruct/bitstruct/bitutils"
	"github.com/bitstruct/bitstruct/fieldspec"
)

// Decode runs the spec sequence against data and returns the decoded field
// tree together with consumption statistics.
//
// Decoding is all-or-nothing: the first unsatisfiable read or unresolvable
// spec aborts the whole call and no partial tree is returned. Errors wrap one
// of the bitutils sentinel errors and, for decode-time failures, carry the
// offending field id and absolute bit offset via bitutils.DecodeError.
//
// Decoding is a pure function of (data, specs): the same inputs always yield
// the same result or the same error. The buffer is never written to and may
// be shared across concurrent Decode calls.
func (d *Decoder) Decode(data []byte, specs []fieldspec.Spec) (*Result, error) {
	if err := fieldspec.ValidateDepth(specs, d.MaxDepth); err != nil {
		return nil, err
	}

	reader := bitutils.NewBitReader(data)
	root, err := d.decodeSequence(specs, reader, false, 0)
	if err != nil {
		return nil, err
	}

	return &Result{
		data:          data,
		root:          root,
		bitsDecoded:   reader.Position(),
		bitsRemaining: reader.Remaining(),
	}, nil
}

// decodeSequence decodes one ordered field sequence against the shared
// cursor, building the tree that later siblings resolve their width and
// count references against.
func (d *Decoder) decodeSequence(specs []fieldspec.Spec, reader *bitutils.BitReader, tagged bool, depth int) (*Tree, error) {
	if depth > d.MaxDepth {
		return nil, bitutils.ErrMaxDepth
	}

	tree := newTree(len(specs))
	for i := range specs {
		spec := &specs[i]
		field, err := d.decodeField(spec, reader, tree, tagged, depth)
		if err != nil {
			var decodeErr *bitutils.DecodeError
			if errors.As(err, &decodeErr) {
				// inner field already annotated the failure position
				return nil, err
			}
			return nil, &bitutils.DecodeError{FieldID: spec.ID, Offset: reader.Position(), Err: err}
		}
		tree.add(field)
	}
	return tree, nil
}

// decodeField dispatches one field spec: resolve its width, consume bits and
// interpret them according to the declared kind. Composite kinds recurse into
// decodeSequence on the same cursor; bit offsets stay continuous across
// nesting unless the spec asks for alignment.
func (d *Decoder) decodeField(spec *fieldspec.Spec, reader *bitutils.BitReader, scope *Tree, tagged bool, depth int) (*Field, error) {
	if spec.Align {
		if _, err := reader.Align(); err != nil {
			return nil, err
		}
	}

	if d.Verbose {
		d.logf("%sfield %s\t kind: %v\t offset: %v", strings.Repeat(" ", depth*2), spec.ID, spec.Kind, reader.Position())
	}

	start := reader.Position()
	field := &Field{
		id:     spec.ID,
		kind:   spec.Kind,
		tagged: tagged,
	}

	switch spec.Kind {
	case fieldspec.KindPlaceholder:
		field.raw = []byte{}

	case fieldspec.KindUint, fieldspec.KindInt, fieldspec.KindBool:
		width, err := d.resolveQuantity(spec.Width, scope, reader)
		if err != nil {
			return nil, err
		}
		if width < 1 || width > fieldspec.MaxIntegerBits {
			return nil, fmt.Errorf("%w: %v bits cannot form a %v value", bitutils.ErrInvalidWidth, width, spec.Kind)
		}
		value, err := reader.Peek(width)
		if err != nil {
			return nil, err
		}
		if field.raw, err = reader.ReadBits(width); err != nil {
			return nil, err
		}
		field.width = width
		switch spec.Kind {
		case fieldspec.KindUint:
			field.uintVal = value
		case fieldspec.KindInt:
			field.intVal = signExtend(value, width)
		case fieldspec.KindBool:
			field.boolVal = value == 1
		}

	case fieldspec.KindAscii:
		width, err := d.resolveQuantity(spec.Width, scope, reader)
		if err != nil {
			return nil, err
		}
		if width <= 0 || width%8 != 0 {
			return nil, fmt.Errorf("%w: ascii width %v is not a positive multiple of 8", bitutils.ErrInvalidWidth, width)
		}
		if field.raw, err = reader.ReadBits(width); err != nil {
			return nil, err
		}
		field.width = width
		// non-printable bytes are preserved, printability is a presentation concern
		field.textVal = string(field.raw)

	case fieldspec.KindRaw:
		width, err := d.resolveQuantity(spec.Width, scope, reader)
		if err != nil {
			return nil, err
		}
		if width < 0 {
			return nil, fmt.Errorf("%w: raw width %v", bitutils.ErrInvalidWidth, width)
		}
		if field.raw, err = reader.ReadBits(width); err != nil {
			return nil, err
		}
		field.width = width

	case fieldspec.KindStruct:
		sub, err := d.decodeSequence(spec.Fields, reader, tagged, depth+1)
		if err != nil {
			return nil, err
		}
		field.tree = sub
		field.width = reader.Position() - start
		field.raw = reader.Extract(start, field.width)

	case fieldspec.KindChoice:
		sub, selector, err := d.decodeChoice(spec, reader, scope, depth)
		if err != nil {
			return nil, err
		}
		field.tagged = true
		field.uintVal = selector
		field.tree = sub
		field.width = reader.Position() - start
		field.raw = reader.Extract(start, field.width)

	case fieldspec.KindList:
		elements, err := d.decodeList(spec, reader, scope, tagged, depth)
		if err != nil {
			return nil, err
		}
		field.list = elements
		field.width = reader.Position() - start
		field.raw = reader.Extract(start, field.width)

	default:
		return nil, fmt.Errorf("unknown field kind %v", spec.Kind)
	}

	return field, nil
}

// decodeChoice reads the selector over the field's own width and decodes the
// matching branch against the same cursor. Fields inside the branch are
// marked as tagged, since their presence depended on the selection.
func (d *Decoder) decodeChoice(spec *fieldspec.Spec, reader *bitutils.BitReader, scope *Tree, depth int) (*Tree, uint64, error) {
	width, err := d.resolveQuantity(spec.Width, scope, reader)
	if err != nil {
		return nil, 0, err
	}
	if width < 1 || width > fieldspec.MaxIntegerBits {
		return nil, 0, fmt.Errorf("%w: %v bits cannot form a selector", bitutils.ErrInvalidWidth, width)
	}

	selector, err := reader.Read(width)
	if err != nil {
		return nil, 0, err
	}

	branch, ok := spec.Branches[selector]
	if !ok {
		if spec.Default == nil {
			return nil, 0, fmt.Errorf("%w: selector %v", bitutils.ErrUnknownTag, selector)
		}
		branch = spec.Default
	}

	sub, err := d.decodeSequence(branch, reader, true, depth+1)
	if err != nil {
		return nil, 0, err
	}
	return sub, selector, nil
}

// decodeList decodes the element sequence repeatedly, either a resolved
// number of times or until a resolved bit span is consumed. In span mode the
// window is enforced through a reader limit, so an element overrunning the
// span fails with ErrInsufficientData at the offending field.
func (d *Decoder) decodeList(spec *fieldspec.Spec, reader *bitutils.BitReader, scope *Tree, tagged bool, depth int) ([]*Tree, error) {
	if !spec.Count.IsZero() {
		count, err := d.resolveQuantity(spec.Count, scope, reader)
		if err != nil {
			return nil, err
		}

		// pre-allocation is bounded by the buffer, not the declared count
		capacity := count
		if remaining := reader.Remaining(); capacity > remaining {
			capacity = remaining
		}
		elements := make([]*Tree, 0, capacity)
		for i := 0; i < count; i++ {
			element, err := d.decodeSequence(spec.Fields, reader, tagged, depth+1)
			if err != nil {
				return nil, err
			}
			elements = append(elements, element)
		}
		return elements, nil
	}

	span, err := d.resolveQuantity(spec.Span, scope, reader)
	if err != nil {
		return nil, err
	}
	if span > reader.Remaining() {
		return nil, bitutils.ErrInsufficientData
	}

	reader.PushLimit(span)
	elements := make([]*Tree, 0)
	for reader.Remaining() > 0 {
		before := reader.Position()
		element, err := d.decodeSequence(spec.Fields, reader, tagged, depth+1)
		if err != nil {
			return nil, err
		}
		if reader.Position() == before {
			return nil, fmt.Errorf("list element of %q consumed no bits", spec.ID)
		}
		elements = append(elements, element)
	}
	reader.PopLimit()

	return elements, nil
}

// signExtend applies two's-complement interpretation over the consumed width.
func signExtend(value uint64, width int) int64 {
	if width == 64 {
		return int64(value)
	}
	if value&(uint64(1)<<(width-1)) != 0 {
		return int64(value - (uint64(1) << width))
	}
	return int64(value)
}

func (d *Decoder) logf(format string, args ...any) {
	if d.logCb != nil {
		d.logCb(format, args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}
