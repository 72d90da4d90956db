// Copyright (c) 2025 the bitstruct authors
// SPDX-License-Identifier: Apache-2.0
// This file is part of the bitstruct library.

package bitstruct

import (
	"sync"

	"github.com/bitstruct/bitstruct/fieldspec"
)

var (
	globalMutex   sync.Mutex
	globalDecoder *Decoder
)

// GetGlobalDecoder returns the shared default Decoder, creating it on first
// use with no spec values and default options.
func GetGlobalDecoder() *Decoder {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	if globalDecoder == nil {
		globalDecoder = NewDecoder(nil)
	}
	return globalDecoder
}

// SetGlobalSpecValues replaces the shared default Decoder with one carrying
// the given named spec values.
func SetGlobalSpecValues(specValues map[string]any) {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	globalDecoder = NewDecoder(specValues)
}

// Decode runs the spec sequence against data using the shared default
// Decoder. See Decoder.Decode.
func Decode(data []byte, specs []fieldspec.Spec) (*Result, error) {
	return GetGlobalDecoder().Decode(data, specs)
}
