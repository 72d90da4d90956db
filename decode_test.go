// Copyright (c) 2025 the bitstruct authors
// SPDX-License-Identifier: Apache-2.0
// This file is part of the bitstruct library.

package bitstruct_test

import (
	"bytes"
	"errors"
	"reflect"
	"sync"
	"testing"

	. "github.com/bitstruct/bitstruct"
	"github.com/bitstruct/bitstruct/bitutils"
	"github.com/bitstruct/bitstruct/fieldspec"
)

func fromHex(s string) []byte {
	b, err := bitutils.FromHex(s)
	if err != nil {
		panic(err)
	}
	return b
}

// walkthroughSpec is the packed header layout used throughout the decode
// tests: two small integers, a flag and an 8 character ASCII name.
func walkthroughSpec() []fieldspec.Spec {
	return []fieldspec.Spec{
		fieldspec.Field("my-int-1", 3),
		fieldspec.Field("my-int-2", 4),
		fieldspec.Bool("my-flag"),
		fieldspec.Ascii("my-str", fieldspec.Bits(64)),
	}
}

func TestDecodeWalkthrough(t *testing.T) {
	// 72 bits of spec over an 80 bit buffer, one trailing byte left over
	data := fromHex("0xDA434146454445434141")

	res, err := Decode(data, walkthroughSpec())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	tree := res.Decoded()
	if v, err := tree.Get("my-int-1").Uint(); err != nil || v != 6 {
		t.Errorf("my-int-1: got %v / %v, wanted 6", v, err)
	}
	if v, err := tree.Get("my-int-2").Uint(); err != nil || v != 13 {
		t.Errorf("my-int-2: got %v / %v, wanted 13", v, err)
	}
	if v, err := tree.Get("my-flag").Bool(); err != nil || v != false {
		t.Errorf("my-flag: got %v / %v, wanted false", v, err)
	}
	if v, err := tree.Get("my-str").Text(); err != nil || v != "CAFEDECA" {
		t.Errorf("my-str: got %q / %v, wanted CAFEDECA", v, err)
	}

	if res.BitsDecoded() != 72 {
		t.Errorf("bits decoded: got %v, wanted 72", res.BitsDecoded())
	}
	if res.BitsRemaining() != 8 {
		t.Errorf("bits remaining: got %v, wanted 8", res.BitsRemaining())
	}
	if !bytes.Equal(res.Remaining(), []byte{0x41}) {
		t.Errorf("remaining: got %X, wanted 41", res.Remaining())
	}

	stats := res.Stats()
	if stats.Decoded.String() != "9 bytes + 0 bits" {
		t.Errorf("decoded stats: got %q", stats.Decoded.String())
	}
	if stats.Remaining.String() != "1 bytes + 0 bits" {
		t.Errorf("remaining stats: got %q", stats.Remaining.String())
	}

	if res.BitsDecoded()+res.BitsRemaining() != len(data)*8 {
		t.Errorf("decoded + remaining != total bits")
	}
}

func TestDecodeExactConsumption(t *testing.T) {
	res, err := Decode(fromHex("0xDA4341464544454341"), walkthroughSpec())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if res.BitsRemaining() != 0 {
		t.Errorf("bits remaining: got %v, wanted 0", res.BitsRemaining())
	}
	if len(res.Remaining()) != 0 {
		t.Errorf("remaining: got %X, wanted empty", res.Remaining())
	}
}

func TestDecodeInsufficientData(t *testing.T) {
	// same spec over the first 8 bytes fails while decoding my-str
	_, err := Decode(fromHex("0xDA43414645444543"), walkthroughSpec())
	if !errors.Is(err, bitutils.ErrInsufficientData) {
		t.Fatalf("got %v, wanted ErrInsufficientData", err)
	}

	var decodeErr *bitutils.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("error does not carry decode position: %v", err)
	}
	if decodeErr.FieldID != "my-str" {
		t.Errorf("failing field: got %q, wanted my-str", decodeErr.FieldID)
	}
	if decodeErr.Offset != 8 {
		t.Errorf("failing offset: got %v, wanted 8", decodeErr.Offset)
	}
}

func TestDecodeDeterministic(t *testing.T) {
	data := fromHex("0xDA434146454445434141")

	res1, err1 := Decode(data, walkthroughSpec())
	res2, err2 := Decode(data, walkthroughSpec())
	if err1 != nil || err2 != nil {
		t.Fatalf("decode failed: %v / %v", err1, err2)
	}
	if !reflect.DeepEqual(res1, res2) {
		t.Errorf("two decodes of the same input differ")
	}
}

func TestDecodeDeclarationOrder(t *testing.T) {
	res, err := Decode(fromHex("0xDA434146454445434141"), walkthroughSpec())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	expected := []string{"my-int-1", "my-int-2", "my-flag", "my-str"}
	if !reflect.DeepEqual(res.Decoded().IDs(), expected) {
		t.Errorf("iteration order: got %v, wanted %v", res.Decoded().IDs(), expected)
	}
}

func TestDecodeUintRoundtrip(t *testing.T) {
	testValues := []struct {
		data     string
		width    int
		expected uint64
	}{
		{"CA", 3, 6},
		{"CA", 8, 0xCA},
		{"CAFE", 16, 0xCAFE},
		{"CAFEDECADEADBEEF", 64, 0xCAFEDECADEADBEEF},
		{"80", 1, 1},
		{"7FFF", 15, 0x3FFF},
	}

	for i, tc := range testValues {
		res, err := Decode(fromHex(tc.data), []fieldspec.Spec{fieldspec.Field("value", tc.width)})
		if err != nil {
			t.Fatalf("decode %v failed: %v", i, err)
		}
		v, err := res.Decoded().Get("value").Uint()
		if err != nil || v != tc.expected {
			t.Errorf("decode %v: got %v / %v, wanted %v", i, v, err, tc.expected)
		}
	}
}

func TestDecodeSignedInt(t *testing.T) {
	testValues := []struct {
		data     string
		width    int
		expected int64
	}{
		{"E0", 3, -1},
		{"60", 3, 3},
		{"9C", 8, -100},
		{"FFFFFFFFFFFFFFFF", 64, -1},
		{"8000000000000000", 64, -9223372036854775808},
	}

	for i, tc := range testValues {
		res, err := Decode(fromHex(tc.data), []fieldspec.Spec{fieldspec.Int("value", fieldspec.Bits(tc.width))})
		if err != nil {
			t.Fatalf("decode %v failed: %v", i, err)
		}
		v, err := res.Decoded().Get("value").Int()
		if err != nil || v != tc.expected {
			t.Errorf("decode %v: got %v / %v, wanted %v", i, v, err, tc.expected)
		}
	}
}

func TestDecodeRawData(t *testing.T) {
	res, err := Decode(fromHex("0xDA"), []fieldspec.Spec{fieldspec.Field("my-int-1", 3)})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	field := res.Decoded().Get("my-int-1")
	if field.RawDataHex() != "C0" {
		t.Errorf("raw hex: got %q, wanted C0", field.RawDataHex())
	}
	if field.BitWidth() != 3 {
		t.Errorf("bit width: got %v, wanted 3", field.BitWidth())
	}

	// a 94 bit raw field keeps its declared width but pads the raw form
	res, err = Decode(fromHex("434146454445434142454546"), []fieldspec.Spec{
		fieldspec.Raw("my-rawdata", fieldspec.Bits(94)),
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	field = res.Decoded().Get("my-rawdata")
	if field.RawDataHex() != "434146454445434142454544" {
		t.Errorf("raw hex: got %q", field.RawDataHex())
	}
	if field.BitWidth() != 94 {
		t.Errorf("bit width: got %v, wanted 94", field.BitWidth())
	}
}

func TestDecodeNestedStruct(t *testing.T) {
	// nesting groups fields without disturbing the bit offsets
	res, err := Decode(fromHex("0xDA4341464544454341"), []fieldspec.Spec{
		fieldspec.Field("my-int-1", 3),
		fieldspec.Struct("my-struct",
			fieldspec.Field("my-int-2", 4),
			fieldspec.Bool("my-flag"),
		),
		fieldspec.Ascii("my-str", fieldspec.Bits(64)),
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	sub, err := res.Decoded().Get("my-struct").Tree()
	if err != nil {
		t.Fatalf("nested tree: %v", err)
	}
	if v, _ := sub.Get("my-int-2").Uint(); v != 13 {
		t.Errorf("my-int-2: got %v, wanted 13", v)
	}
	if v, _ := sub.Get("my-flag").Bool(); v != false {
		t.Errorf("my-flag: got %v, wanted false", v)
	}
	if res.Decoded().Get("my-struct").BitWidth() != 5 {
		t.Errorf("struct width: got %v, wanted 5", res.Decoded().Get("my-struct").BitWidth())
	}
	if v, _ := res.Decoded().Get("my-str").Text(); v != "CAFEDECA" {
		t.Errorf("my-str: got %q, wanted CAFEDECA", v)
	}
}

// choiceSpec decodes a 6 bit prefix, a 2 bit selector with three branches
// and a 48 bit ASCII trailer.
func choiceSpec(def []fieldspec.Spec) []fieldspec.Spec {
	choice := fieldspec.Spec{
		ID:    "my-tagged-field",
		Kind:  fieldspec.KindChoice,
		Width: fieldspec.Bits(2),
		Branches: map[uint64][]fieldspec.Spec{
			0: {fieldspec.Field("my-field-as-int", 16)},
			1: {fieldspec.Ascii("my-field-as-str", fieldspec.Bits(16))},
			2: {
				fieldspec.Field("my-int-1", 3),
				fieldspec.Field("my-int-2", 5),
				fieldspec.Field("my-int-3", 8),
			},
		},
		Default: def,
	}
	return []fieldspec.Spec{
		fieldspec.Field("my-int-1", 6),
		choice,
		fieldspec.Ascii("my-str", fieldspec.Bits(48)),
	}
}

func TestDecodeTaggedChoice(t *testing.T) {
	// selector 0 decodes the integer branch
	res, err := Decode(fromHex("F04341464544454341"), choiceSpec(nil))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	tree := res.Decoded()
	if v, _ := tree.Get("my-int-1").Uint(); v != 60 {
		t.Errorf("my-int-1: got %v, wanted 60", v)
	}
	tagged := tree.Get("my-tagged-field")
	if !tagged.IsTagged() {
		t.Errorf("choice field is not marked as tagged")
	}
	if selector, _ := tagged.Uint(); selector != 0 {
		t.Errorf("selector: got %v, wanted 0", selector)
	}
	branch, err := tagged.Tree()
	if err != nil {
		t.Fatalf("branch tree: %v", err)
	}
	inner := branch.Get("my-field-as-int")
	if v, _ := inner.Uint(); v != 17217 {
		t.Errorf("my-field-as-int: got %v, wanted 17217", v)
	}
	if !inner.IsTagged() {
		t.Errorf("branch field is not marked as tagged")
	}
	if v, _ := tree.Get("my-str").Text(); v != "FEDECA" {
		t.Errorf("my-str: got %q, wanted FEDECA", v)
	}

	// selector 1 decodes the same bits as text instead
	res, err = Decode(fromHex("F14341464544454341"), choiceSpec(nil))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	branch, _ = res.Decoded().Get("my-tagged-field").Tree()
	if v, _ := branch.Get("my-field-as-str").Text(); v != "CA" {
		t.Errorf("my-field-as-str: got %q, wanted CA", v)
	}

	// selector 2 decodes a nested structure
	res, err = Decode(fromHex("F24341464544454341"), choiceSpec(nil))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	branch, _ = res.Decoded().Get("my-tagged-field").Tree()
	expected := map[string]uint64{"my-int-1": 2, "my-int-2": 3, "my-int-3": 65}
	for id, want := range expected {
		if v, _ := branch.Get(id).Uint(); v != want {
			t.Errorf("%v: got %v, wanted %v", id, v, want)
		}
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode(fromHex("FF4341464544454341"), choiceSpec(nil))
	if !errors.Is(err, bitutils.ErrUnknownTag) {
		t.Fatalf("got %v, wanted ErrUnknownTag", err)
	}

	var decodeErr *bitutils.DecodeError
	if !errors.As(err, &decodeErr) || decodeErr.FieldID != "my-tagged-field" {
		t.Errorf("error does not name the choice field: %v", err)
	}

	// a default branch absorbs unmatched selectors
	res, err := Decode(fromHex("FF4341464544454341"), choiceSpec([]fieldspec.Spec{
		fieldspec.Raw("my-unknown", fieldspec.Bits(16)),
	}))
	if err != nil {
		t.Fatalf("decode with default failed: %v", err)
	}
	branch, _ := res.Decoded().Get("my-tagged-field").Tree()
	if branch.Get("my-unknown") == nil {
		t.Errorf("default branch was not decoded")
	}
}

func TestDecodeOptionalSection(t *testing.T) {
	// a single flag bit switches between a placeholder and a real section
	specs := []fieldspec.Spec{
		fieldspec.Field("my-int-1", 7),
		fieldspec.ChoiceDefault("my-optional-section", fieldspec.Bits(1),
			map[uint64][]fieldspec.Spec{
				1: {
					fieldspec.Field("my-int-1", 3),
					fieldspec.Field("my-int-2", 5),
					fieldspec.Field("my-int-3", 8),
				},
			},
			[]fieldspec.Spec{fieldspec.Placeholder("my-empty-section")},
		),
		fieldspec.Ascii("my-str", fieldspec.Bits(48)),
	}

	res, err := Decode(fromHex("F14341464544454341"), specs)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	tree := res.Decoded()
	if v, _ := tree.Get("my-int-1").Uint(); v != 120 {
		t.Errorf("my-int-1: got %v, wanted 120", v)
	}
	branch, _ := tree.Get("my-optional-section").Tree()
	if v, _ := branch.Get("my-int-3").Uint(); v != 65 {
		t.Errorf("my-int-3: got %v, wanted 65", v)
	}
	if v, _ := tree.Get("my-str").Text(); v != "FEDECA" {
		t.Errorf("my-str: got %q, wanted FEDECA", v)
	}

	res, err = Decode(fromHex("F04341464544454341"), specs)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	tree = res.Decoded()
	branch, _ = tree.Get("my-optional-section").Tree()
	placeholder := branch.Get("my-empty-section")
	if placeholder == nil || placeholder.BitWidth() != 0 || placeholder.Value() != nil {
		t.Errorf("placeholder was not decoded as empty")
	}
	if v, _ := tree.Get("my-str").Text(); v != "CAFEDE" {
		t.Errorf("my-str: got %q, wanted CAFEDE", v)
	}
}

func TestDecodeWidthByReference(t *testing.T) {
	res, err := Decode(fromHex("05F8"), []fieldspec.Spec{
		fieldspec.Field("len", 8),
		fieldspec.Uint("value", fieldspec.Ref("len")),
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	field := res.Decoded().Get("value")
	if field.BitWidth() != 5 {
		t.Errorf("referenced width: got %v, wanted 5", field.BitWidth())
	}
	if v, _ := field.Uint(); v != 31 {
		t.Errorf("value: got %v, wanted 31", v)
	}
}

func TestDecodeForwardReference(t *testing.T) {
	_, err := Decode(fromHex("05F8"), []fieldspec.Spec{
		fieldspec.Uint("value", fieldspec.Ref("len")),
		fieldspec.Field("len", 8),
	})
	if !errors.Is(err, bitutils.ErrUnresolvedReference) {
		t.Fatalf("got %v, wanted ErrUnresolvedReference", err)
	}

	var decodeErr *bitutils.DecodeError
	if !errors.As(err, &decodeErr) || decodeErr.FieldID != "value" {
		t.Errorf("error does not name the referencing field: %v", err)
	}
}

func TestDecodeExpressionWidth(t *testing.T) {
	// sibling values are available to expressions, dashed ids in brackets
	res, err := Decode(fromHex("024142"), []fieldspec.Spec{
		fieldspec.Field("hdr-len", 8),
		fieldspec.Ascii("name", fieldspec.Expr("[hdr-len] * 8")),
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v, _ := res.Decoded().Get("name").Text(); v != "AB" {
		t.Errorf("name: got %q, wanted AB", v)
	}

	// decoder level spec values are available too
	dec := NewDecoder(map[string]any{"WORD_BITS": uint64(16)})
	res, err = dec.Decode(fromHex("4142"), []fieldspec.Spec{
		fieldspec.Ascii("word", fieldspec.Expr("WORD_BITS")),
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v, _ := res.Decoded().Get("word").Text(); v != "AB" {
		t.Errorf("word: got %q, wanted AB", v)
	}
}

func TestDecodeRemainingWidth(t *testing.T) {
	res, err := Decode(fromHex("DA43"), []fieldspec.Spec{
		fieldspec.Field("lead", 3),
		fieldspec.Raw("tail", fieldspec.Remaining()),
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if res.Decoded().Get("tail").BitWidth() != 13 {
		t.Errorf("tail width: got %v, wanted 13", res.Decoded().Get("tail").BitWidth())
	}
	if res.BitsRemaining() != 0 {
		t.Errorf("bits remaining: got %v, wanted 0", res.BitsRemaining())
	}
}

func TestDecodeListByCount(t *testing.T) {
	res, err := Decode(fromHex("1043414645444543414445414442454546"), []fieldspec.Spec{
		fieldspec.Field("my-count", 8),
		fieldspec.List("data", fieldspec.Ref("my-count"), fieldspec.Field("value", 8)),
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	elements, err := res.Decoded().Get("data").Trees()
	if err != nil {
		t.Fatalf("element trees: %v", err)
	}
	if len(elements) != 16 {
		t.Fatalf("got %v elements, wanted 16", len(elements))
	}

	expected := []uint64{67, 65, 70, 69, 68, 69, 67, 65, 68, 69, 65, 68, 66, 69, 69, 70}
	for i, element := range elements {
		if v, _ := element.Get("value").Uint(); v != expected[i] {
			t.Errorf("element %v: got %v, wanted %v", i, v, expected[i])
		}
	}
}

func TestDecodeListBySpan(t *testing.T) {
	// a 16 bit size header counts itself, the elements fill the rest
	res, err := Decode(fromHex("000943414645444543414445414442454546"), []fieldspec.Spec{
		fieldspec.Field("size", 16),
		fieldspec.ListSpan("data", fieldspec.Expr("([size] - 1) * 16"),
			fieldspec.Field("my-int", 7),
			fieldspec.Bool("my-bool"),
			fieldspec.Ascii("my-char", fieldspec.Bits(8)),
		),
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	elements, err := res.Decoded().Get("data").Trees()
	if err != nil {
		t.Fatalf("element trees: %v", err)
	}
	if len(elements) != 8 {
		t.Fatalf("got %v elements, wanted 8", len(elements))
	}

	first := elements[0]
	if v, _ := first.Get("my-int").Uint(); v != 33 {
		t.Errorf("first my-int: got %v, wanted 33", v)
	}
	if v, _ := first.Get("my-bool").Bool(); v != true {
		t.Errorf("first my-bool: got %v, wanted true", v)
	}
	if v, _ := first.Get("my-char").Text(); v != "A" {
		t.Errorf("first my-char: got %q, wanted A", v)
	}
	if res.BitsRemaining() != 0 {
		t.Errorf("bits remaining: got %v, wanted 0", res.BitsRemaining())
	}
}

func TestDecodeListCountOverflow(t *testing.T) {
	// a 64 bit count above MaxInt64 must be rejected, not wrap negative
	_, err := Decode(fromHex("FFFFFFFFFFFFFFFF41"), []fieldspec.Spec{
		fieldspec.Field("n", 64),
		fieldspec.List("items", fieldspec.Ref("n"), fieldspec.Field("v", 8)),
	})
	if !errors.Is(err, bitutils.ErrInvalidWidth) {
		t.Fatalf("got %v, wanted ErrInvalidWidth", err)
	}

	var decodeErr *bitutils.DecodeError
	if !errors.As(err, &decodeErr) || decodeErr.FieldID != "items" {
		t.Errorf("error does not name the list field: %v", err)
	}

	// an in-range count far beyond the buffer fails on the first missing
	// element instead of allocating for the declared count
	_, err = Decode(fromHex("FFFFFFFF41"), []fieldspec.Spec{
		fieldspec.Field("n", 32),
		fieldspec.List("items", fieldspec.Ref("n"), fieldspec.Field("v", 8)),
	})
	if !errors.Is(err, bitutils.ErrInsufficientData) {
		t.Fatalf("got %v, wanted ErrInsufficientData", err)
	}
}

func TestDecodeListSpanOverflow(t *testing.T) {
	// a span wrapping negative must fail instead of yielding an empty list
	_, err := Decode(fromHex("FFFFFFFFFFFFFFFF41"), []fieldspec.Spec{
		fieldspec.Field("size", 64),
		fieldspec.ListSpan("items", fieldspec.Ref("size"), fieldspec.Field("v", 8)),
	})
	if !errors.Is(err, bitutils.ErrInvalidWidth) {
		t.Fatalf("got %v, wanted ErrInvalidWidth", err)
	}
}

func TestDecodeListSpanOverrun(t *testing.T) {
	// 12 bit span cannot hold two 8 bit elements
	_, err := Decode(fromHex("414243"), []fieldspec.Spec{
		fieldspec.ListSpan("data", fieldspec.Bits(12), fieldspec.Field("value", 8)),
	})
	if !errors.Is(err, bitutils.ErrInsufficientData) {
		t.Fatalf("got %v, wanted ErrInsufficientData", err)
	}
}

func TestDecodeAlignDirective(t *testing.T) {
	res, err := Decode(fromHex("DA41"), []fieldspec.Spec{
		fieldspec.Field("lead", 3),
		fieldspec.Ascii("ch", fieldspec.Bits(8)).Aligned(),
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v, _ := res.Decoded().Get("ch").Text(); v != "A" {
		t.Errorf("ch: got %q, wanted A", v)
	}
	if res.BitsDecoded() != 16 {
		t.Errorf("bits decoded: got %v, wanted 16", res.BitsDecoded())
	}
}

func TestDecodeMaxDepth(t *testing.T) {
	specs := []fieldspec.Spec{fieldspec.Field("leaf", 8)}
	for i := 0; i < 4; i++ {
		specs = []fieldspec.Spec{fieldspec.Struct("level", specs...)}
	}

	dec := NewDecoder(nil, WithMaxDepth(2))
	if _, err := dec.Decode(fromHex("41"), specs); !errors.Is(err, bitutils.ErrMaxDepth) {
		t.Fatalf("got %v, wanted ErrMaxDepth", err)
	}

	if _, err := Decode(fromHex("41"), specs); err != nil {
		t.Errorf("default depth bound rejected a shallow spec: %v", err)
	}
}

func TestDecodeDuplicateIds(t *testing.T) {
	_, err := Decode(fromHex("4141"), []fieldspec.Spec{
		fieldspec.Field("value", 8),
		fieldspec.Field("value", 8),
	})
	if !errors.Is(err, bitutils.ErrDuplicateFieldID) {
		t.Fatalf("got %v, wanted ErrDuplicateFieldID", err)
	}
}

func TestDecodeVerboseTrace(t *testing.T) {
	var lines []string
	var mu sync.Mutex

	dec := NewDecoder(nil, WithVerbose(), WithLogCb(func(format string, args ...any) {
		mu.Lock()
		lines = append(lines, format)
		mu.Unlock()
	}))

	if _, err := dec.Decode(fromHex("0xDA434146454445434141"), walkthroughSpec()); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(lines) != 4 {
		t.Errorf("got %v trace lines, wanted 4", len(lines))
	}
}

func TestDecodeConcurrent(t *testing.T) {
	data := fromHex("0xDA434146454445434141")
	dec := NewDecoder(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := dec.Decode(data, walkthroughSpec())
			if err != nil {
				t.Errorf("concurrent decode failed: %v", err)
				return
			}
			if v, _ := res.Decoded().Get("my-str").Text(); v != "CAFEDECA" {
				t.Errorf("concurrent decode yielded %q", v)
			}
		}()
	}
	wg.Wait()
}

func TestGlobalDecoder(t *testing.T) {
	if GetGlobalDecoder() == nil {
		t.Fatalf("global decoder is nil")
	}

	// first-use initialization is safe under concurrent access
	instances := make([]*Decoder, 8)
	var wg sync.WaitGroup
	for i := range instances {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			instances[i] = GetGlobalDecoder()
		}(i)
	}
	wg.Wait()
	for i, instance := range instances {
		if instance != instances[0] {
			t.Fatalf("concurrent GetGlobalDecoder %d returned a different instance", i)
		}
	}

	SetGlobalSpecValues(map[string]any{"CHAR_BITS": uint64(8)})
	res, err := Decode(fromHex("41"), []fieldspec.Spec{
		fieldspec.Ascii("ch", fieldspec.Expr("CHAR_BITS")),
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v, _ := res.Decoded().Get("ch").Text(); v != "A" {
		t.Errorf("ch: got %q, wanted A", v)
	}
	SetGlobalSpecValues(nil)
}
