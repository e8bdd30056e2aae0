// Copyright (c) 2014-2018 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package address

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	addressHexLength    = 40
	privateKeyHexLength = 64
)

var (
	ErrMissingPrefix = fmt.Errorf("missing 0x prefix")
	ErrBadChecksum   = fmt.Errorf("address checksum failed")
)

// Validate checks an Ethereum address. All-lower and all-upper addresses
// are accepted as is, mixed case must match the EIP-55 checksum.
func Validate(address string) error {
	digits, err := hexDigits(address, addressHexLength)
	if err != nil {
		return err
	}

	if digits == strings.ToLower(digits) || digits == strings.ToUpper(digits) {
		return nil
	}

	expected := checksum(strings.ToLower(digits))
	if expected != digits {
		return fmt.Errorf("%w: %s expected: 0x%s", ErrBadChecksum, address, expected)
	}
	return nil
}

// Checksum returns the EIP-55 mixed case form of address.
func Checksum(address string) (string, error) {
	digits, err := hexDigits(address, addressHexLength)
	if err != nil {
		return "", err
	}
	return "0x" + checksum(strings.ToLower(digits)), nil
}

// ValidatePrivateKey checks a hex private key without copying it into a
// string. The 0x prefix is optional, as it is for cast.
func ValidatePrivateKey(key []byte) error {
	offset := 0
	if len(key) >= 2 && key[0] == '0' && (key[1] == 'x' || key[1] == 'X') {
		offset = 2
	}
	digits := key[offset:]
	if len(digits) != privateKeyHexLength {
		return fmt.Errorf("private key length: %d expected: %d", len(digits), privateKeyHexLength)
	}
	for i, c := range digits {
		if !isHex(c) {
			return fmt.Errorf("private key has a non hex digit at %d", i+offset)
		}
	}
	return nil
}

func hexDigits(address string, length int) (string, error) {
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		return "", ErrMissingPrefix
	}
	digits := address[2:]
	if len(digits) != length {
		return "", fmt.Errorf("address length: %d expected: %d", len(digits), length)
	}
	for i := 0; i < len(digits); i++ {
		if !isHex(digits[i]) {
			return "", fmt.Errorf("address has a non hex digit at %d", i+2)
		}
	}
	return digits, nil
}

// from: https://eips.ethereum.org/EIPS/eip-55
func checksum(lower string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	hash := hex.EncodeToString(h.Sum(nil))

	out := []byte(lower)
	for i, c := range out {
		if c >= 'a' && c <= 'f' && hash[i] >= '8' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
