// Copyright (c) 2025 the bitstruct authors
// SPDX-License-Identifier: Apache-2.0
// This file is part of the bitstruct library.

package bitstruct

// Option is a functional option for configuring a Decoder instance.
type Option func(*DecoderOptions)

type DecoderOptions struct {
	MaxDepth int
	Verbose  bool
	LogCb    func(format string, args ...any)
}

// WithMaxDepth overrides the default bound on spec nesting depth.
func WithMaxDepth(maxDepth int) Option {
	return func(opts *DecoderOptions) {
		opts.MaxDepth = maxDepth
	}
}

// WithVerbose enables per-field trace logging during decoding.
func WithVerbose() Option {
	return func(opts *DecoderOptions) {
		opts.Verbose = true
	}
}

// WithLogCb redirects verbose trace output to a custom sink. Has no effect
// unless WithVerbose is also set.
func WithLogCb(logCb func(format string, args ...any)) Option {
	return func(opts *DecoderOptions) {
		opts.LogCb = logCb
	}
}
