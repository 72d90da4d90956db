// Copyright (c) 2025 the bitstruct authors
// SPDX-License-Identifier: Apache-2.0
// This file is part of the bitstruct library.

package bitstruct

import (
	"fmt"

	"github.com/bitstruct/bitstruct/bitutils"
	"github.com/bitstruct/bitstruct/fieldspec"
)

// Field is one decoded field: its resolved width, the exact bits it consumed
// and the value they were interpreted into. Fields are immutable once the
// decode that produced them returns; all accessors are read-only projections
// of data computed during decoding.
type Field struct {
	id     string
	kind   fieldspec.Kind
	width  int
	raw    []byte // consumed bits, left-aligned, zero padded at the tail
	tagged bool

	uintVal uint64
	intVal  int64
	boolVal bool
	textVal string
	tree    *Tree   // struct fields and chosen choice branches
	list    []*Tree // list elements
}

// ID returns the field id from the spec.
func (f *Field) ID() string {
	return f.id
}

// Kind returns the decoding kind the field was interpreted with.
func (f *Field) Kind() fieldspec.Kind {
	return f.kind
}

// BitWidth returns the actual number of bits the field consumed.
func (f *Field) BitWidth() int {
	return f.width
}

// IsTagged reports whether this field is a tagged choice or was decoded
// inside a chosen branch of one.
func (f *Field) IsTagged() bool {
	return f.tagged
}

// RawData returns the exact bit sequence the field consumed, left-aligned
// into ceil(width/8) bytes, independent of interpretation.
func (f *Field) RawData() []byte {
	return f.raw
}

// RawDataHex returns RawData rendered as an upper-case hex string.
func (f *Field) RawDataHex() string {
	return bitutils.ToHex(f.raw)
}

// Uint returns the field value as an unsigned integer. Valid for unsigned
// integer fields and for choice fields, where it returns the selector value.
func (f *Field) Uint() (uint64, error) {
	switch f.kind {
	case fieldspec.KindUint, fieldspec.KindChoice:
		return f.uintVal, nil
	default:
		return 0, fmt.Errorf("%w: %v field %q has no unsigned value", bitutils.ErrWrongFieldKind, f.kind, f.id)
	}
}

// Int returns the field value as a signed integer.
func (f *Field) Int() (int64, error) {
	if f.kind != fieldspec.KindInt {
		return 0, fmt.Errorf("%w: %v field %q has no signed value", bitutils.ErrWrongFieldKind, f.kind, f.id)
	}
	return f.intVal, nil
}

// Bool returns the field value as a flag.
func (f *Field) Bool() (bool, error) {
	if f.kind != fieldspec.KindBool {
		return false, fmt.Errorf("%w: %v field %q has no boolean value", bitutils.ErrWrongFieldKind, f.kind, f.id)
	}
	return f.boolVal, nil
}

// Text returns the field value as an ASCII string.
func (f *Field) Text() (string, error) {
	if f.kind != fieldspec.KindAscii {
		return "", fmt.Errorf("%w: %v field %q has no text value", bitutils.ErrWrongFieldKind, f.kind, f.id)
	}
	return f.textVal, nil
}

// Tree returns the nested field tree of a struct field or the decoded branch
// of a choice field.
func (f *Field) Tree() (*Tree, error) {
	switch f.kind {
	case fieldspec.KindStruct, fieldspec.KindChoice:
		return f.tree, nil
	default:
		return nil, fmt.Errorf("%w: %v field %q has no nested tree", bitutils.ErrWrongFieldKind, f.kind, f.id)
	}
}

// Trees returns the ordered element trees of a list field.
func (f *Field) Trees() ([]*Tree, error) {
	if f.kind != fieldspec.KindList {
		return nil, fmt.Errorf("%w: %v field %q has no element trees", bitutils.ErrWrongFieldKind, f.kind, f.id)
	}
	return f.list, nil
}

// Value returns the interpreted value without kind checking: uint64, int64,
// bool, string, []byte (raw), *Tree, []*Tree or nil for placeholders.
func (f *Field) Value() any {
	switch f.kind {
	case fieldspec.KindUint:
		return f.uintVal
	case fieldspec.KindInt:
		return f.intVal
	case fieldspec.KindBool:
		return f.boolVal
	case fieldspec.KindAscii:
		return f.textVal
	case fieldspec.KindRaw:
		return f.raw
	case fieldspec.KindStruct, fieldspec.KindChoice:
		return f.tree
	case fieldspec.KindList:
		return f.list
	default:
		return nil
	}
}

// refValue returns the field value as a non-negative quantity for width and
// count references. Unsigned integers resolve to their value, signed to their
// value if non-negative, booleans to 0/1 and choice fields to their selector.
func (f *Field) refValue() (int, bool) {
	switch f.kind {
	case fieldspec.KindUint, fieldspec.KindChoice:
		return int(f.uintVal), true
	case fieldspec.KindInt:
		if f.intVal < 0 {
			return 0, false
		}
		return int(f.intVal), true
	case fieldspec.KindBool:
		if f.boolVal {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Tree is the ordered result of decoding one field sequence. Iteration order
// equals spec declaration order. Trees are immutable after decode returns and
// safe to read concurrently.
type Tree struct {
	fields []*Field
	index  map[string]*Field
}

func newTree(capacity int) *Tree {
	return &Tree{
		fields: make([]*Field, 0, capacity),
		index:  make(map[string]*Field, capacity),
	}
}

func (t *Tree) add(field *Field) {
	t.fields = append(t.fields, field)
	t.index[field.id] = field
}

// Len returns the number of fields in this tree level.
func (t *Tree) Len() int {
	return len(t.fields)
}

// Fields returns the decoded fields in declaration order.
func (t *Tree) Fields() []*Field {
	return t.fields
}

// Get returns the field with the given id, or nil if it does not exist on
// this tree level. Nested levels are reached through Field.Tree / Trees.
func (t *Tree) Get(id string) *Field {
	return t.index[id]
}

// IDs returns the field ids in declaration order.
func (t *Tree) IDs() []string {
	ids := make([]string, len(t.fields))
	for i, field := range t.fields {
		ids[i] = field.id
	}
	return ids
}

// BitWidth returns the total number of bits consumed by this tree level,
// including everything nested below it.
func (t *Tree) BitWidth() int {
	width := 0
	for _, field := range t.fields {
		width += field.width
	}
	return width
}

// BitCount is a bit quantity split bytewise, as used in decode statistics.
type BitCount struct {
	Bytes int
	Bits  int
}

func (c BitCount) String() string {
	return fmt.Sprintf("%d bytes + %d bits", c.Bytes, c.Bits)
}

// bitCount splits an absolute bit count into whole bytes plus leftover bits.
func bitCount(bits int) BitCount {
	bytes, rem := bitutils.BitwiseAddr(bits)
	return BitCount{Bytes: bytes, Bits: rem}
}

// Stats summarizes how much of the input buffer a decode consumed.
type Stats struct {
	Decoded   BitCount
	Remaining BitCount
}

// Result is the outcome of one successful top-level decode. It is immutable
// and safe to share across goroutines.
type Result struct {
	data          []byte
	root          *Tree
	bitsDecoded   int
	bitsRemaining int
}

// Decoded returns the root field tree.
func (r *Result) Decoded() *Tree {
	return r.root
}

// Data returns the original input buffer. Callers must not modify it.
func (r *Result) Data() []byte {
	return r.data
}

// BitsDecoded returns the number of bits the spec consumed.
func (r *Result) BitsDecoded() int {
	return r.bitsDecoded
}

// BitsRemaining returns the number of unconsumed trailing bits.
func (r *Result) BitsRemaining() int {
	return r.bitsRemaining
}

// Remaining returns the unconsumed trailing bits, left-aligned into bytes.
// Empty if the spec exactly consumed the buffer.
func (r *Result) Remaining() []byte {
	return bitutils.Extract(r.data, r.bitsDecoded, r.bitsRemaining)
}

// Stats returns the consumed/remaining split in bytes plus bits.
func (r *Result) Stats() Stats {
	return Stats{
		Decoded:   bitCount(r.bitsDecoded),
		Remaining: bitCount(r.bitsRemaining),
	}
}
