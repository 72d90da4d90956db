// Copyright (c) 2025 the bitstruct authors
// SPDX-License-Identifier: Apache-2.0
// This file is part of the bitstruct library.

// Package fuzz provides fuzzing helpers for bitstruct decode operations:
// random but structurally valid spec sequences and an invariant checker
// that every successful decode has to satisfy.
package fuzz

import (
	"bytes"
	"fmt"
	"math/rand"
	"reflect"
	"time"

	"github.com/bitstruct/bitstruct"
	"github.com/bitstruct/bitstruct/fieldspec"
)

// Fuzzer generates random field specs and checks decode invariants.
type Fuzzer struct {
	r *rand.Rand
}

// NewFuzzer creates a new fuzzer with optional seed. A zero seed uses the
// current time.
func NewFuzzer(seed int64) *Fuzzer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Fuzzer{
		r: rand.New(rand.NewSource(seed)),
	}
}

// RandomSpecs generates a structurally valid spec sequence of up to maxFields
// fields. All widths are literal, so decoding such a spec can only fail with
// insufficient data.
func (f *Fuzzer) RandomSpecs(maxFields, depth int) []fieldspec.Spec {
	count := 1 + f.r.Intn(maxFields)
	specs := make([]fieldspec.Spec, 0, count)

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("field-%d", i)
		switch roll := f.r.Intn(10); {
		case roll < 4:
			specs = append(specs, fieldspec.Field(id, 1+f.r.Intn(64)))
		case roll < 5:
			specs = append(specs, fieldspec.Int(id, fieldspec.Bits(1+f.r.Intn(64))))
		case roll < 6:
			specs = append(specs, fieldspec.Bool(id))
		case roll < 7:
			specs = append(specs, fieldspec.Ascii(id, fieldspec.Bits(8*(1+f.r.Intn(8)))))
		case roll < 8:
			specs = append(specs, fieldspec.Raw(id, fieldspec.Bits(1+f.r.Intn(96))))
		case roll < 9 && depth < 3:
			specs = append(specs, fieldspec.Struct(id, f.RandomSpecs(3, depth+1)...))
		default:
			specs = append(specs, fieldspec.List(id, fieldspec.Bits(1+f.r.Intn(4)),
				fieldspec.Field("value", 1+f.r.Intn(16))))
		}
	}
	return specs
}

// CheckDecode decodes data against specs and verifies the decode invariants.
// A decode error is not a failure, only inconsistent results are.
func CheckDecode(data []byte, specs []fieldspec.Spec) error {
	result, err := bitstruct.Decode(data, specs)
	if err != nil {
		// the error path must be deterministic too
		if _, err2 := bitstruct.Decode(data, specs); err2 == nil || err2.Error() != err.Error() {
			return fmt.Errorf("nondeterministic decode error: %v vs %v", err, err2)
		}
		return nil
	}

	if result.BitsDecoded()+result.BitsRemaining() != len(data)*8 {
		return fmt.Errorf("decoded %d + remaining %d != total %d bits",
			result.BitsDecoded(), result.BitsRemaining(), len(data)*8)
	}
	if result.Decoded().BitWidth() != result.BitsDecoded() {
		return fmt.Errorf("tree width %d != bits decoded %d",
			result.Decoded().BitWidth(), result.BitsDecoded())
	}
	if !bytes.Equal(result.Data(), data) {
		return fmt.Errorf("decode modified the input buffer")
	}

	again, err := bitstruct.Decode(data, specs)
	if err != nil {
		return fmt.Errorf("second decode of the same input failed: %v", err)
	}
	if !reflect.DeepEqual(result, again) {
		return fmt.Errorf("two decodes of the same input differ")
	}
	return nil
}
