package security

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Hasher produces keyed content hashes.
type Hasher struct {
	key []byte
}

// NewHasher keys the hash with salt. Salts longer than a blake2b key are
// reduced with an unkeyed digest.
func NewHasher(salt string) *Hasher {
	key := []byte(salt)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return &Hasher{key: key}
}

// CreateHashCode returns the hex digest of seed keyed with the hasher salt
// plus the per-call salt.
func (h *Hasher) CreateHashCode(seed, salt string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// key length is bounded in NewHasher
		panic(err)
	}
	mac.Write([]byte(salt))
	mac.Write([]byte{0})
	mac.Write([]byte(seed))
	return hex.EncodeToString(mac.Sum(nil))
}

// IntegrityHash is the content hash persisted next to an aggregate.
func (h *Hasher) IntegrityHash(fields ...string) string {
	return h.CreateHashCode(strings.Join(fields, fieldSep), "integrity")
}

// SecurityHash is the transcribable verification code printed on documents,
// formatted XXXXX-XXXXX.
func (h *Hasher) SecurityHash(fields ...string) string {
	code := strings.ToUpper(h.CreateHashCode(strings.Join(fields, fieldSep), "security")[:10])
	return code[:5] + "-" + code[5:]
}
