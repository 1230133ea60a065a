package types

import (
	"errors"
	"math/bits"
	"strconv"
	"strings"
)

// AtomicUnitDecimals is the number of decimal places in one XMR.
const AtomicUnitDecimals = 12

const AtomicUnitsPerXMR = 1_000_000_000_000

// AtomicUnits is an XMR amount in piconero, 1 XMR = 10^12 units.
type AtomicUnits uint64

var errInvalidAmount = errors.New("invalid amount")

// AtomicUnitsFromString parses a decimal XMR amount such as "0.000000000001" without going through float64.
func AtomicUnitsFromString(s string) (AtomicUnits, error) {
	integer, fraction, _ := strings.Cut(strings.TrimSpace(s), ".")
	if integer == "" || len(fraction) > AtomicUnitDecimals {
		return 0, errInvalidAmount
	}
	for _, c := range integer + fraction {
		if c < '0' || c > '9' {
			return 0, errInvalidAmount
		}
	}

	whole, err := strconv.ParseUint(integer, 10, 64)
	if err != nil {
		return 0, err
	}
	hi, lo := bits.Mul64(whole, AtomicUnitsPerXMR)
	if hi != 0 {
		return 0, errInvalidAmount
	}

	var part uint64
	if fraction != "" {
		fraction += strings.Repeat("0", AtomicUnitDecimals-len(fraction))
		if part, err = strconv.ParseUint(fraction, 10, 64); err != nil {
			return 0, err
		}
	}

	sum, carry := bits.Add64(lo, part, 0)
	if carry != 0 {
		return 0, errInvalidAmount
	}
	return AtomicUnits(sum), nil
}

// String renders the amount with all twelve decimals, "5.000000000001".
func (a AtomicUnits) String() string {
	whole := uint64(a) / AtomicUnitsPerXMR
	fraction := strconv.FormatUint(uint64(a)%AtomicUnitsPerXMR, 10)
	return strconv.FormatUint(whole, 10) + "." + strings.Repeat("0", AtomicUnitDecimals-len(fraction)) + fraction
}

// Float64 is for display and rate calculations only, sums stay in AtomicUnits.
func (a AtomicUnits) Float64() float64 {
	return float64(a) / AtomicUnitsPerXMR
}
