package types

import (
	"encoding/hex"
	"errors"
	"git.gammaspectra.live/P2Pool/gupax/utils"
)

const HashSize = 32

// Hash is a 32-byte block or template id, hex encoded on the wire.
type Hash [HashSize]byte

var ZeroHash Hash

func (h Hash) MarshalJSON() ([]byte, error) {
	return utils.MarshalJSON(h.String())
}

func HashFromString(s string) (Hash, error) {
	var h Hash
	if buf, err := hex.DecodeString(s); err != nil {
		return h, err
	} else {
		if len(buf) != HashSize {
			return h, errors.New("wrong hash size")
		}
		copy(h[:], buf)
		return h, nil
	}
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// UnmarshalJSON accepts a hex string, an empty string decodes to ZeroHash.
func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := utils.UnmarshalJSON(b, &s); err != nil {
		return err
	}
	if s == "" {
		*h = ZeroHash
		return nil
	}

	hash, err := HashFromString(s)
	if err != nil {
		return err
	}
	*h = hash
	return nil
}
