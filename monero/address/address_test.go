package address

import (
	"strings"
	"testing"
)

const testAddress = "42HEEF3NM9cHkJoPpDhNyJHuZ6DFhdtymCohF9CwP5KPM1Mp3eH2RVXCPRrxe4iWRogT7299R8PP7drGvThE8bHmRDq1qWp"
const testAddress2 = "4AQ3YkqG2XdWsPHEgrDGdyQLq1qMMGFqWTFJfrVQW99qPmCzZKvJqzxgf5342KC17o9bchfJcUzLhVW9QgNKTYUBLg876Gt"

func TestValidate(t *testing.T) {
	for _, c := range []struct {
		name    string
		address string
		err     error
	}{
		{"valid", testAddress, nil},
		{"valid2", testAddress2, nil},
		{"short", testAddress[:94], ErrLength},
		{"long", testAddress + "a", ErrLength},
		{"prefix", "8" + testAddress[1:], ErrPrefix},
		{"zero", testAddress[:50] + "0" + testAddress[51:], ErrAlphabet},
		{"upper o", testAddress[:50] + "O" + testAddress[51:], ErrAlphabet},
		{"lower l", testAddress[:50] + "l" + testAddress[51:], ErrAlphabet},
		{"empty", "", ErrLength},
		{"space", testAddress[:50] + " " + testAddress[51:], ErrAlphabet},
	} {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if err := Validate(c.address); err != c.err {
				t.Fatalf("expected %v, got %v", c.err, err)
			}
		})
	}
}

func TestChecksum(t *testing.T) {
	if !HasValidChecksum(testAddress) {
		t.Fatal("expected valid checksum")
	}
	if !HasValidChecksum(testAddress2) {
		t.Fatal("expected valid checksum")
	}

	// flip one character in the body, lexically fine but checksum breaks
	broken := []byte(testAddress)
	if broken[40] == 'A' {
		broken[40] = 'B'
	} else {
		broken[40] = 'A'
	}
	if !IsValid(string(broken)) {
		t.Fatal("expected lexically valid address")
	}
	if HasValidChecksum(string(broken)) {
		t.Fatal("expected invalid checksum")
	}

	if HasValidChecksum(strings.Repeat("4", 95)) {
		t.Fatal("expected invalid checksum")
	}
}
