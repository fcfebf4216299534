package agents

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ID is the registry's 32-byte agent identifier, rendered as a 0x-prefixed
// hex string everywhere outside the chain boundary.
type ID [32]byte

// ParseID parses a 0x-prefixed 64-digit hex string into an ID.
func ParseID(s string) (ID, error) {
	var id ID

	trimmed := strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(trimmed) != 64 {
		return id, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return id, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	copy(id[:], decoded)
	return id, nil
}

// String renders the ID as 0x-prefixed lowercase hex.
func (id ID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// Bytes32 returns the raw identifier for ABI encoding.
func (id ID) Bytes32() [32]byte {
	return [32]byte(id)
}

// MarshalText implements encoding.TextMarshaler so IDs serialize as hex in JSON.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
