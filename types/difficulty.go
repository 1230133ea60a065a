package types

import (
	"encoding/hex"
	"errors"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"lukechampine.com/uint128"
	"math/big"
	"strconv"
	"strings"
)

const DifficultySize = 16

var ZeroDifficulty = Difficulty(uint128.Zero)

// Difficulty is an unsigned 128-bit difficulty or hash count.
type Difficulty uint128.Uint128

func (d Difficulty) IsZero() bool {
	return uint128.Uint128(d).IsZero()
}

func (d Difficulty) Equals64(v uint64) bool {
	return uint128.Uint128(d).Equals64(v)
}

func (d Difficulty) Mul64(v uint64) Difficulty {
	return Difficulty(uint128.Uint128(d).Mul64(v))
}

// Div64 divides by v, a zero divisor yields zero instead of panicking.
func (d Difficulty) Div64(v uint64) Difficulty {
	if v == 0 {
		return ZeroDifficulty
	}
	return Difficulty(uint128.Uint128(d).Div64(v))
}

// Lo64 returns the value saturated to 64 bits.
func (d Difficulty) Lo64() uint64 {
	if d.Hi != 0 {
		return ^uint64(0)
	}
	return d.Lo
}

func (d Difficulty) Float64() float64 {
	f, _ := new(big.Float).SetInt(d.Big()).Float64()
	return f
}

func (d Difficulty) Big() *big.Int {
	return uint128.Uint128(d).Big()
}

// MarshalJSON encodes as a plain JSON number when it fits 64 bits, the way p2pool writes it.
func (d Difficulty) MarshalJSON() ([]byte, error) {
	if d.Hi == 0 {
		return []byte(strconv.FormatUint(d.Lo, 10)), nil
	}
	return []byte(`"` + d.StringNumeric() + `"`), nil
}

func DifficultyFromString(s string) (Difficulty, error) {
	if strings.HasPrefix(s, "0x") {
		if buf, err := hex.DecodeString(s[2:]); err != nil {
			return ZeroDifficulty, err
		} else {
			if len(buf) > DifficultySize {
				return ZeroDifficulty, errors.New("wrong difficulty size")
			}
			var d [DifficultySize]byte
			copy(d[DifficultySize-len(buf):], buf)
			return DifficultyFromBytes(d[:]), nil
		}
	} else {
		if u, err := uint128.FromString(s); err != nil {
			return ZeroDifficulty, err
		} else {
			return Difficulty(u), nil
		}
	}
}

func DifficultyFromBytes(buf []byte) Difficulty {
	return Difficulty(uint128.FromBytesBE(buf))
}

func NewDifficulty(lo, hi uint64) Difficulty {
	return Difficulty{Lo: lo, Hi: hi}
}

func DifficultyFrom64(v uint64) Difficulty {
	return NewDifficulty(v, 0)
}

// UnmarshalJSON accepts a JSON number, a decimal string or a 0x prefixed hex string.
func (d *Difficulty) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := utils.UnmarshalJSON(b, &s); err != nil {
			return err
		}
		diff, err := DifficultyFromString(s)
		if err != nil {
			return err
		}
		*d = diff
		return nil
	}

	if string(b) == "null" {
		*d = ZeroDifficulty
		return nil
	}

	diff, err := DifficultyFromString(string(b))
	if err != nil {
		return err
	}
	*d = diff
	return nil
}

func (d Difficulty) String() string {
	return d.StringNumeric()
}

func (d Difficulty) StringNumeric() string {
	return uint128.Uint128(d).String()
}
