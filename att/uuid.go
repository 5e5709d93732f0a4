package att

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// baseUUIDSuffix is the low-order 96 bits of the Bluetooth Base
// UUID, 00000000-0000-1000-8000-00805F9B34FB, stored in the same
// little-endian wire order as UUID.b: the reverse of the big-endian
// bytes at string-form offset [4:16].
var baseUUIDSuffix = [12]byte{0xFB, 0x34, 0x9B, 0x5F, 0x80, 0x00, 0x00, 0x80, 0x00, 0x10, 0x00, 0x00}

// A UUID is a Bluetooth attribute type identifier. It is stored
// little-endian, matching the wire representation, and may carry
// either the compact 16-bit/32-bit form or the full 128-bit form.
type UUID struct {
	b []byte
}

// UUID16 constructs a UUID from a 16-bit SIG-assigned value.
func UUID16(v uint16) UUID {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return UUID{b: b}
}

// UUID32 constructs a UUID from a 32-bit SIG-assigned value.
func UUID32(v uint32) UUID {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return UUID{b: b}
}

// MustParse parses a canonical (16/32-bit hex or 128-bit dashed hex)
// UUID string, panicking on failure. UUID wire parsing in general is
// treated as a primitive outside the scope of this package; this
// helper exists only to make literal UUIDs readable in Go source and
// tests.
func MustParse(s string) UUID {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Parse parses a canonical UUID string such as "2A05" or
// "0000180d-0000-1000-8000-00805f9b34fb".
func Parse(s string) (UUID, error) {
	s = strings.ReplaceAll(s, "-", "")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return UUID{}, err
	}
	switch len(raw) {
	case 2, 4, 16:
	default:
		return UUID{}, fmt.Errorf("att: invalid UUID length %d", len(raw))
	}
	return UUID{b: reverse(raw)}, nil
}

// Len returns the wire length of the UUID in bytes: 2, 4, or 16.
func (u UUID) Len() int { return len(u.b) }

// IsZero reports whether u is the zero-value UUID.
func (u UUID) IsZero() bool { return len(u.b) == 0 }

// Bytes returns the little-endian wire encoding of u.
func (u UUID) Bytes() []byte {
	out := make([]byte, len(u.b))
	copy(out, u.b)
	return out
}

// Equal reports whether u and v identify the same attribute type,
// expanding compact forms against the Bluetooth Base UUID as needed.
func (u UUID) Equal(v UUID) bool {
	if len(u.b) == len(v.b) {
		return bytes.Equal(u.b, v.b)
	}
	return bytes.Equal(u.full(), v.full())
}

// full expands a compact UUID into its 128-bit form against the
// Bluetooth Base UUID, 00000000-0000-1000-8000-00805F9B34FB.
func (u UUID) full() []byte {
	if len(u.b) == 16 {
		return u.b
	}
	out := make([]byte, 16)
	copy(out[:12], baseUUIDSuffix[:])
	copy(out[12:], u.b)
	return out
}

// String renders the canonical hex form of u, big-endian.
func (u UUID) String() string {
	be := reverse(u.b)
	switch len(be) {
	case 2, 4:
		return fmt.Sprintf("%X", be)
	default:
		return fmt.Sprintf("%08X-%04X-%04X-%04X-%012X", be[0:4], be[4:6], be[6:8], be[8:10], be[10:16])
	}
}

// uuidFromLE wraps raw little-endian wire bytes as a UUID without
// re-encoding, for PDU fields that are already in wire order.
func uuidFromLE(b []byte) UUID {
	return UUID{b: append([]byte(nil), b...)}
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}
