// Copyright (c) 2025 the bitstruct authors
// SPDX-License-Identifier: Apache-2.0
// This file is part of the bitstruct library.

// Package fieldspec defines the declarative field specification model that
// drives bit-level decoding. A spec sequence describes, in declaration order,
// the named fields of a packed binary structure: their bit widths (literal,
// referenced from an earlier sibling, computed by expression, or "the rest of
// the enclosing span") and their decoding kind (integers, booleans, ASCII
// text, raw bits, tagged choices, nested structures and repeated lists).
package fieldspec

// Kind selects the decoding strategy for one field.
type Kind uint8

const (
	KindUint        Kind = iota // unsigned integer, MSB-first (default)
	KindInt                     // signed integer, two's complement over the consumed width
	KindBool                    // single-bit flag
	KindAscii                   // ASCII text, width must be a multiple of 8
	KindRaw                     // uninterpreted bit sequence
	KindPlaceholder             // zero-width marker, consumes nothing
	KindStruct                  // nested field sequence, shares the cursor
	KindList                    // repeated element sequence
	KindChoice                  // tagged choice: selector value picks a branch
)

func (k Kind) String() string {
	switch k {
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindAscii:
		return "ascii"
	case KindRaw:
		return "raw"
	case KindPlaceholder:
		return "placeholder"
	case KindStruct:
		return "struct"
	case KindList:
		return "list"
	case KindChoice:
		return "choice"
	default:
		return "unknown"
	}
}

// WidthMode describes how a Width resolves to a concrete bit count.
type WidthMode uint8

const (
	WidthLiteral   WidthMode = iota // fixed bit count
	WidthRef                        // decoded value of an earlier sibling, by id
	WidthExpr                       // expression over spec values and earlier siblings
	WidthRemaining                  // all bits left in the enclosing span
)

// Width is a resolvable bit quantity. It is used for field widths, list
// element counts and list bit spans. Resolution happens at decode time, in
// declaration order, against the in-progress field tree of the enclosing
// structure only.
type Width struct {
	Mode WidthMode
	Bits int    // literal bit count (WidthLiteral)
	Ref  string // sibling field id (WidthRef)
	Expr string // govaluate expression (WidthExpr)
}

// Bits returns a literal width of n bits.
func Bits(n int) Width {
	return Width{Mode: WidthLiteral, Bits: n}
}

// Ref returns a width resolved from the decoded value of an earlier sibling.
func Ref(id string) Width {
	return Width{Mode: WidthRef, Ref: id}
}

// Expr returns a width computed by evaluating an expression against the
// decoder's spec values and the decoded values of earlier siblings. Sibling
// ids containing dashes must be escaped in brackets, e.g. "[hdr-len] * 8".
func Expr(expr string) Width {
	return Width{Mode: WidthExpr, Expr: expr}
}

// Remaining returns a width that consumes all bits left in the enclosing span.
func Remaining() Width {
	return Width{Mode: WidthRemaining}
}

// IsZero reports whether w is the zero Width (no quantity declared).
func (w Width) IsZero() bool {
	return w.Mode == WidthLiteral && w.Bits == 0 && w.Ref == "" && w.Expr == ""
}

// Spec is the immutable declarative description of one field. Specs are
// built via the constructor functions below and validated once per decode.
type Spec struct {
	ID       string            // field id, unique among its siblings
	Kind     Kind              // decoding strategy
	Width    Width             // consumed bits (scalar kinds, choice selector)
	Fields   []Spec            // KindStruct: nested fields; KindList: element fields
	Count    Width             // KindList: number of elements
	Span     Width             // KindList: total element span in bits (alternative to Count)
	Branches map[uint64][]Spec // KindChoice: selector value -> branch fields
	Default  []Spec            // KindChoice: fallback branch (nil means none)
	Align    bool              // byte-align the cursor before decoding this field
}

// Field is the minimal literal form: an unsigned integer of a fixed width.
func Field(id string, bits int) Spec {
	return Spec{ID: id, Kind: KindUint, Width: Bits(bits)}
}

// Uint declares an unsigned integer field of up to 64 bits.
func Uint(id string, w Width) Spec {
	return Spec{ID: id, Kind: KindUint, Width: w}
}

// Int declares a signed integer field of up to 64 bits, interpreted as
// two's complement over the consumed width.
func Int(id string, w Width) Spec {
	return Spec{ID: id, Kind: KindInt, Width: w}
}

// Bool declares a single-bit flag field.
func Bool(id string) Spec {
	return Spec{ID: id, Kind: KindBool, Width: Bits(1)}
}

// Ascii declares an ASCII text field. The resolved width must be a positive
// multiple of 8; non-printable bytes are preserved as-is.
func Ascii(id string, w Width) Spec {
	return Spec{ID: id, Kind: KindAscii, Width: w}
}

// Raw declares an uninterpreted bit sequence field.
func Raw(id string, w Width) Spec {
	return Spec{ID: id, Kind: KindRaw, Width: w}
}

// Placeholder declares a zero-width field that consumes nothing but still
// appears in the decoded tree. Useful as an explicit empty branch of a choice.
func Placeholder(id string) Spec {
	return Spec{ID: id, Kind: KindPlaceholder}
}

// Struct declares a nested field sequence decoded against the same cursor.
func Struct(id string, fields ...Spec) Spec {
	return Spec{ID: id, Kind: KindStruct, Fields: fields}
}

// List declares a repeated field sequence decoded count times in a row.
func List(id string, count Width, elem ...Spec) Spec {
	return Spec{ID: id, Kind: KindList, Count: count, Fields: elem}
}

// ListSpan declares a repeated field sequence decoded until span bits have
// been consumed. An element overrunning the span fails the decode.
func ListSpan(id string, span Width, elem ...Spec) Spec {
	return Spec{ID: id, Kind: KindList, Span: span, Fields: elem}
}

// Choice declares a tagged-choice field. The field's own width reads an
// unsigned selector, whose value picks the branch to decode next. A selector
// without a matching branch fails the decode.
func Choice(id string, w Width, branches map[uint64][]Spec) Spec {
	return Spec{ID: id, Kind: KindChoice, Width: w, Branches: branches}
}

// ChoiceDefault is Choice with a fallback branch for unmatched selectors.
func ChoiceDefault(id string, w Width, branches map[uint64][]Spec, def []Spec) Spec {
	return Spec{ID: id, Kind: KindChoice, Width: w, Branches: branches, Default: def}
}

// Aligned returns a copy of s that byte-aligns the cursor before decoding.
func (s Spec) Aligned() Spec {
	s.Align = true
	return s
}
