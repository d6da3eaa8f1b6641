package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}

// SHA256Hex returns the lowercase hexadecimal representation of the SHA256
// hash of the data. Block and transaction identifiers use this form so that
// independently computed hashes compare as plain strings.
func SHA256Hex(data []byte) string {
	return hex.EncodeToString(SHA256(data))
}
