package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// HashSize is the length of a chunk content digest.
const HashSize = sha1.Size

// Hash is the SHA-1 content digest that identifies a chunk.
type Hash [HashSize]byte

// HashOf computes the content digest of data.
func HashOf(data []byte) Hash {
	return Hash(sha1.Sum(data))
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ParseHash decodes a 40 character hex digest.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid chunk hash %q: %w", s, err)
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("invalid chunk hash %q: want %d bytes, got %d", s, HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(b []byte) error {
	parsed, err := ParseHash(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
