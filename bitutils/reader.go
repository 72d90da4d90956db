// Copyright (c) 2025 the bitstruct authors
// SPDX-License-Identifier: Apache-2.0
// This file is part of the bitstruct library.

package bitutils

import (
	"encoding/binary"
	"fmt"
)

// BitReader provides sequential bit-level reading from an immutable byte buffer.
//
// Bit 0 of the buffer is the most significant bit of byte 0; multi-bit reads
// compose their result MSB-first across the consumed span, matching the packed
// network-structure convention. The reader only ever mutates its own position,
// never the underlying buffer.
//
// Limits work like a stack: PushLimit restricts the readable range to a window
// of n bits starting at the current position, PopLimit restores the previous
// range. They are used to decode size-delimited spans without slicing the
// buffer.
type BitReader struct {
	data      []byte
	totalBits int
	limits    []int
	lastLimit int
	position  int
}

// NewBitReader creates a bit reader over data, covering all len(data)*8 bits.
func NewBitReader(data []byte) *BitReader {
	totalBits := len(data) * 8
	return &BitReader{
		data:      data,
		totalBits: totalBits,
		limits:    make([]int, 0, 8),
		lastLimit: totalBits,
	}
}

// NewBitReaderBits creates a bit reader covering only the first numBits bits of
// data. Useful when the trailing byte is only partially populated.
func NewBitReaderBits(data []byte, numBits int) *BitReader {
	r := NewBitReader(data)
	if numBits < r.totalBits {
		r.totalBits = numBits
		r.lastLimit = numBits
	}
	return r
}

// Len returns the total number of readable bits in the buffer.
func (r *BitReader) Len() int {
	return r.totalBits
}

// Position returns the current absolute bit offset.
func (r *BitReader) Position() int {
	return r.position
}

// Remaining returns the number of bits left before the current limit.
func (r *BitReader) Remaining() int {
	return r.lastLimit - r.position
}

// PushLimit restricts reads to the next n bits. The limit never extends past
// the enclosing one.
func (r *BitReader) PushLimit(n int) {
	limitPos := r.position + n
	if limitPos > r.lastLimit {
		limitPos = r.lastLimit
	}

	r.limits = append(r.limits, r.lastLimit)
	r.lastLimit = limitPos
}

// PopLimit restores the limit that was active before the matching PushLimit
// and returns the number of bits left unconsumed inside the popped window.
func (r *BitReader) PopLimit() int {
	limitsLen := len(r.limits)
	if limitsLen == 0 {
		return 0
	}

	unconsumed := r.lastLimit - r.position
	r.lastLimit = r.limits[limitsLen-1]
	r.limits = r.limits[:limitsLen-1]
	return unconsumed
}

// Read consumes n bits (0 <= n <= 64) and returns them composed MSB-first.
func (r *BitReader) Read(n int) (uint64, error) {
	v, err := r.Peek(n)
	if err != nil {
		return 0, err
	}
	r.position += n
	return v, nil
}

// Peek returns the next n bits (0 <= n <= 64) without advancing the position.
func (r *BitReader) Peek(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, fmt.Errorf("%w: cannot compose %v bits into an integer", ErrInvalidWidth, n)
	}
	if n == 0 {
		return 0, nil
	}
	if r.position+n > r.lastLimit {
		return 0, ErrInsufficientData
	}

	// fast path for byte-aligned reads of exact byte widths
	if r.position%8 == 0 {
		off := r.position / 8
		switch n {
		case 8:
			return uint64(r.data[off]), nil
		case 16:
			return uint64(binary.BigEndian.Uint16(r.data[off:])), nil
		case 32:
			return uint64(binary.BigEndian.Uint32(r.data[off:])), nil
		case 64:
			return binary.BigEndian.Uint64(r.data[off:]), nil
		}
	}

	var v uint64
	for i := 0; i < n; i++ {
		byteIdx := (r.position + i) / 8
		bitIdx := 7 - ((r.position + i) % 8)
		bit := (r.data[byteIdx] >> bitIdx) & 1
		v = (v << 1) | uint64(bit)
	}
	return v, nil
}

// ReadBits consumes n bits and returns them left-aligned in ceil(n/8) bytes,
// zero padded at the tail. This is the canonical raw form of a consumed span,
// independent of its interpretation.
func (r *BitReader) ReadBits(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative bit count %v", ErrInvalidWidth, n)
	}
	if r.position+n > r.lastLimit {
		return nil, ErrInsufficientData
	}

	raw := Extract(r.data, r.position, n)
	r.position += n
	return raw, nil
}

// Skip advances the position by n bits without returning them.
func (r *BitReader) Skip(n int) error {
	if r.position+n > r.lastLimit {
		return ErrInsufficientData
	}
	r.position += n
	return nil
}

// Align advances the position to the next byte boundary and returns the number
// of bits that were skipped. Already-aligned positions are left untouched; a
// boundary past the active limit cannot be reached and fails.
func (r *BitReader) Align() (int, error) {
	skipped := (8 - r.position%8) % 8
	if r.position+skipped > r.lastLimit {
		return 0, ErrInsufficientData
	}
	r.position += skipped
	return skipped, nil
}

// Extract copies n bits starting at the given absolute bit offset out of the
// underlying buffer, without moving the position. Used to capture the raw form
// of an already-consumed span.
func (r *BitReader) Extract(offset int, n int) []byte {
	return Extract(r.data, offset, n)
}

// Extract copies n bits starting at the given absolute bit offset out of data,
// left-aligned into ceil(n/8) bytes with zero padding at the tail. The offset
// range must lie within the buffer.
func Extract(data []byte, offset int, n int) []byte {
	if n <= 0 {
		return []byte{}
	}

	out := make([]byte, (n+7)/8)
	for i := 0; i < n; i++ {
		byteIdx := (offset + i) / 8
		bitIdx := 7 - ((offset + i) % 8)
		bit := (data[byteIdx] >> bitIdx) & 1
		out[i/8] |= bit << (7 - i%8)
	}
	return out
}
