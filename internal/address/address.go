// Package address validates party addresses at the service boundary.
//
// An address is 20 bytes rendered as "0x" followed by 40 hex digits. All-lower
// and all-upper renderings are accepted as is; mixed case must carry a valid
// EIP-55 checksum. Parsed addresses are returned in lowercase so that two
// renderings of the same account compare equal.
package address

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Length is the size of an address in bytes.
const Length = 20

var (
	ErrEmpty    = errors.New("address is empty")
	ErrFormat   = errors.New("address must be 0x followed by 40 hex digits")
	ErrChecksum = errors.New("address checksum mismatch")
	ErrZero     = errors.New("zero address is not a valid party")
)

const zero = "0x0000000000000000000000000000000000000000"

// Normalize validates s and returns its canonical lowercase form.
func Normalize(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmpty
	}
	if len(s) != 2+2*Length || (s[:2] != "0x" && s[:2] != "0X") {
		return "", ErrFormat
	}
	body := s[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return "", ErrFormat
	}
	lower := strings.ToLower(body)
	if body != lower && body != strings.ToUpper(body) {
		if Checksum(lower) != "0x"+body {
			return "", ErrChecksum
		}
	}
	out := "0x" + lower
	if out == zero {
		return "", ErrZero
	}
	return out, nil
}

// Valid reports whether s is a well-formed, non-zero address.
func Valid(s string) bool {
	_, err := Normalize(s)
	return err == nil
}

// Checksum renders a 40-digit hex body (with or without 0x) in EIP-55
// mixed case.
func Checksum(s string) string {
	body := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(body))
	digest := hex.EncodeToString(h.Sum(nil))

	out := []byte(body)
	for i, c := range out {
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}
