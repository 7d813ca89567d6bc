package core

import "encoding/hex"

func hashHexString(h [32]byte) string { return hex.EncodeToString(h[:]) }

func decodeHashHex(s string) ([32]byte, error) {
	var h [32]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return h, NewError(ErrValidation, "invalid hash hex %q", s)
	}
	copy(h[:], b)
	return h, nil
}
