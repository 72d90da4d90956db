// Copyright (c) 2025 the bitstruct authors
// SPDX-License-Identifier: Apache-2.0
// This file is part of the bitstruct library.

// Package bitstruct decodes arbitrary byte buffers into trees of named, typed,
// bit-aligned fields according to a declarative field specification. A cursor
// advances through the buffer at sub-byte granularity while each field spec is
// resolved in declaration order, so a later field's width, repeat count or
// very presence may depend on values decoded earlier in the same structure.
package bitstruct

import (
	"sync"

	"github.com/casbin/govaluate"

	"github.com/bitstruct/bitstruct/fieldspec"
)

// Decoder is a reusable bit-level structure decoder. It carries named spec
// values that width and count expressions can reference, and caches compiled
// expressions so repeated decodes of the same specs stay cheap.
//
// A Decoder is safe for concurrent use: every Decode call owns its own cursor
// and result tree, and the expression cache is guarded internally. It's
// recommended to reuse the same Decoder instance across operations to benefit
// from caching.
//
// Example usage:
//
//	dec := bitstruct.NewDecoder(nil)
//	res, err := dec.Decode(data, []fieldspec.Spec{
//	    fieldspec.Field("version", 3),
//	    fieldspec.Field("hdr-len", 5),
//	    fieldspec.Ascii("name", fieldspec.Expr("[hdr-len] * 8")),
//	})
type Decoder struct {
	specValues map[string]any              // named values available to width expressions
	exprMutex  sync.RWMutex                // guards exprCache
	exprCache  map[string]*cachedExprValue // compiled width/count expressions

	// MaxDepth bounds spec nesting during decoding. Specs nested deeper than
	// this fail with bitutils.ErrMaxDepth before any bits are consumed.
	MaxDepth int

	// Verbose enables detailed logging of decoding operations.
	// Useful for debugging but impacts performance.
	Verbose bool

	logCb func(format string, args ...any)
}

// NewDecoder creates a new Decoder instance.
//
// The specValues map contains named quantities that width, count and span
// expressions can reference in addition to previously decoded sibling values.
// This allows one spec sequence to adapt to different protocol profiles at
// runtime. The map can be nil.
//
// Example:
//
//	specValues := map[string]any{
//	    "HEADER_BITS":  uint64(24),
//	    "PAYLOAD_UNIT": uint64(16),
//	}
//	dec := bitstruct.NewDecoder(specValues, bitstruct.WithMaxDepth(16))
func NewDecoder(specValues map[string]any, options ...Option) *Decoder {
	if specValues == nil {
		specValues = map[string]any{}
	}

	opts := &DecoderOptions{}
	for _, option := range options {
		option(opts)
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = fieldspec.DefaultMaxDepth
	}

	return &Decoder{
		specValues: specValues,
		exprCache:  map[string]*cachedExprValue{},
		MaxDepth:   maxDepth,
		Verbose:    opts.Verbose,
		logCb:      opts.LogCb,
	}
}

type cachedExprValue struct {
	expression *govaluate.EvaluableExpression
	err        error
}

// getExpression returns the compiled form of a width expression, compiling
// and caching it on first use.
func (d *Decoder) getExpression(expr string) (*govaluate.EvaluableExpression, error) {
	d.exprMutex.RLock()
	cached := d.exprCache[expr]
	d.exprMutex.RUnlock()
	if cached != nil {
		return cached.expression, cached.err
	}

	cached = &cachedExprValue{}
	cached.expression, cached.err = govaluate.NewEvaluableExpression(expr)

	d.exprMutex.Lock()
	d.exprCache[expr] = cached
	d.exprMutex.Unlock()

	return cached.expression, cached.err
}
