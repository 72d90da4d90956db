// Copyright (c) 2025 the bitstruct authors
// SPDX-License-Identifier: Apache-2.0
// This file is part of the bitstruct library.

package bitutils

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// FromHex returns the bytes represented by the hexadecimal string s.
// s may be prefixed with "0x" and is padded to an even length.
func FromHex(s string) ([]byte, error) {
	if has0xPrefix(s) {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return b, nil
}

// ToHex returns the upper-case hexadecimal encoding of d, without prefix.
func ToHex(d []byte) string {
	return strings.ToUpper(hex.EncodeToString(d))
}

// has0xPrefix validates str begins with '0x' or '0X'.
func has0xPrefix(str string) bool {
	return len(str) >= 2 && str[0] == '0' && (str[1] == 'x' || str[1] == 'X')
}

// BitwiseAddr splits an absolute bit offset into a (byte index, bit-in-byte)
// pair. Bit 0 within a byte is its most significant bit.
func BitwiseAddr(offset int) (int, int) {
	return offset / 8, offset % 8
}

// BitOffset is the inverse of BitwiseAddr.
func BitOffset(byteAddr int, bitAddr int) int {
	return byteAddr*8 + bitAddr
}
