package address

import (
	"bytes"
	"errors"
	"git.gammaspectra.live/P2Pool/moneroutil"
	"regexp"
)

// Length of a standard mainnet address in base58 characters.
const Length = 95

// rawLength is network byte + spend key + view key + checksum.
const rawLength = 1 + 32 + 32 + 4

// base58 without 0, O, I and l
var addressRegex = regexp.MustCompile(`^4[1-9A-HJ-NP-Za-km-z]+$`)

var (
	ErrLength   = errors.New("address must be 95 characters long")
	ErrPrefix   = errors.New("address must start with 4")
	ErrAlphabet = errors.New("address contains characters outside the base58 alphabet")
)

// Validate accepts a standard mainnet address: 95 characters, leading 4, base58 body.
func Validate(address string) error {
	if len(address) != Length {
		return ErrLength
	}
	if address[0] != '4' {
		return ErrPrefix
	}
	if !addressRegex.MatchString(address) {
		return ErrAlphabet
	}
	return nil
}

func IsValid(address string) bool {
	return Validate(address) == nil
}

// HasValidChecksum decodes the address and compares its trailing checksum.
func HasValidChecksum(address string) bool {
	raw := moneroutil.DecodeMoneroBase58(address)

	if len(raw) != rawLength {
		return false
	}
	checksum := moneroutil.GetChecksum(raw[:65])
	return bytes.Equal(checksum[:], raw[65:])
}
