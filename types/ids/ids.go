package ids

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID is a 32-byte SHA-256 digest.
type ID [32]byte

// Empty is the zero-value ID (all zeros)
var Empty ID

// TxIDLength is the hex length of a transaction ID (16 random bytes).
const TxIDLength = 32

// NewID generates a new ID by hashing input bytes
func NewID(data []byte) ID {
	return ID(sha256.Sum256(data))
}

// FromString parses a 64-char hex string into an ID
func FromString(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("ids: expected %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String converts an ID back to a hex string
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsEmpty reports whether id is the zero ID.
func (id ID) IsEmpty() bool {
	return id == Empty
}

// NewTxID returns 16 random bytes as lowercase hex.
func NewTxID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("ids: read random: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// IsTxID reports whether s has the shape of a transaction ID.
func IsTxID(s string) bool {
	if len(s) != TxIDLength {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// NewEntityID returns a prefixed upper-case uuid, e.g.
// "REC-1B4E28BA-2FA1-41D2-883F-0016D3CCA427".
func NewEntityID(prefix string) string {
	id := strings.ToUpper(uuid.NewString())
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
