// Package guuid provides a Go-native 16-byte unique identifier used to
// tag one process's log lines for a single transfer. The sender and the
// receiver each generate their own; the identifier is not sent on the wire.
package guuid

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// GUUID is a 16-byte identifier, optionally time-ordered.
type GUUID [16]byte

// New generates a GUUID using crypto/rand for high entropy.
func New() (GUUID, error) {
	var g GUUID
	_, err := rand.Read(g[:])
	if err != nil {
		return GUUID{}, fmt.Errorf("failed to generate GUUID: %w", err)
	}
	return g, nil
}

// NewTransferID generates a time-ordered GUUID suitable for a transfer
// correlation ID: the first 8 bytes embed the start time so IDs sort
// roughly by creation order in logs.
func NewTransferID() (GUUID, error) {
	var g GUUID

	timestamp := time.Now().UnixNano()
	binary.BigEndian.PutUint64(g[:8], uint64(timestamp))

	if _, err := rand.Read(g[8:]); err != nil {
		return GUUID{}, fmt.Errorf("failed to generate transfer id: %w", err)
	}

	return g, nil
}

// FromString parses a GUUID from its hex string representation, with or
// without hyphens.
func FromString(s string) (GUUID, error) {
	cleaned := make([]byte, 0, len(s))
	for _, r := range s {
		if r != '-' {
			cleaned = append(cleaned, byte(r))
		}
	}

	if len(cleaned) != 32 {
		return GUUID{}, fmt.Errorf("invalid GUUID string length: expected 32 hex chars, got %d", len(cleaned))
	}

	decoded, err := hex.DecodeString(string(cleaned))
	if err != nil {
		return GUUID{}, fmt.Errorf("invalid GUUID string format: %w", err)
	}

	var g GUUID
	copy(g[:], decoded)
	return g, nil
}

// String returns the plain hex representation.
func (g GUUID) String() string {
	return hex.EncodeToString(g[:])
}

// StringWithHyphens returns the UUID-compatible hyphenated form.
func (g GUUID) StringWithHyphens() string {
	return fmt.Sprintf("%x-%x-%x-%x-%x",
		g[0:4], g[4:6], g[6:8], g[8:10], g[10:16])
}

// Bytes returns the raw 16-byte slice.
func (g GUUID) Bytes() []byte {
	return g[:]
}

// IsZero reports whether every byte of the GUUID is zero.
func (g GUUID) IsZero() bool {
	return g == GUUID{}
}

// Timestamp extracts the embedded creation time of a GUUID produced by
// NewTransferID. For a GUUID produced by New, the result is meaningless.
func (g GUUID) Timestamp() time.Time {
	timestamp := binary.BigEndian.Uint64(g[:8])
	return time.Unix(0, int64(timestamp))
}

// Equal reports whether two GUUIDs hold the same bytes.
func (g GUUID) Equal(other GUUID) bool {
	return g == other
}

// MarshalText implements encoding.TextMarshaler.
func (g GUUID) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GUUID) UnmarshalText(text []byte) error {
	parsed, err := FromString(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Zero returns the zero-valued GUUID.
func Zero() GUUID {
	return GUUID{}
}
