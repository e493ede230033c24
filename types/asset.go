package types

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidToken is returned for symbols the ledger cannot represent.
var ErrInvalidToken = errors.New("invalid token symbol")

// Asset identifiers on the ledger are the token symbol packed big-endian
// into a uint64, e.g. "eq" -> 0x6571.

// AssetID packs a token symbol into its on-chain asset id.
func AssetID(token string) (uint64, error) {
	t := strings.ToLower(token)
	if len(t) == 0 || len(t) > 8 {
		return 0, errors.Wrapf(ErrInvalidToken, "%q", token)
	}
	var id uint64
	for i := 0; i < len(t); i++ {
		c := t[i]
		if c < 'a' || c > 'z' {
			return 0, errors.Wrapf(ErrInvalidToken, "%q", token)
		}
		id = id<<8 | uint64(c)
	}
	return id, nil
}

// TokenFromAssetID unpacks an on-chain asset id back into its token symbol.
func TokenFromAssetID(id uint64) string {
	var b [8]byte
	n := 0
	for id > 0 {
		b[7-n] = byte(id & 0xff)
		id >>= 8
		n++
	}
	return string(b[8-n:])
}
