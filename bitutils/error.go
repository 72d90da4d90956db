// Copyright (c) 2025 the bitstruct authors
// SPDX-License-Identifier: Apache-2.0
// This file is part of the bitstruct library.

package bitutils

import "fmt"

var (
	ErrInsufficientData    = fmt.Errorf("buffer exhausted before spec was satisfied")
	ErrUnresolvedReference = fmt.Errorf("referenced sibling field has not been decoded yet")
	ErrUnknownTag          = fmt.Errorf("selector value has no matching branch and no default")
	ErrDuplicateFieldID    = fmt.Errorf("duplicate field id within one spec sequence")
	ErrInvalidWidth        = fmt.Errorf("invalid field bit width")
	ErrWrongFieldKind      = fmt.Errorf("field does not support this kind of value")
	ErrMaxDepth            = fmt.Errorf("spec nesting exceeds the decoder depth limit")
)

// DecodeError annotates one of the sentinel errors above with the field id and
// the absolute bit offset the decoder was at when the failure occurred.
type DecodeError struct {
	FieldID string
	Offset  int
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("field %q at bit %d: %v", e.FieldID, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
