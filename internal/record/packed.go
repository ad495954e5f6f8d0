package record

import (
	"encoding/base64"
	"encoding/binary"
)

const (
	packedCounterBits = 32
	packedBytes       = 6
)

// packedEncoding is the alphabet used by the firmware emitter. Records carry
// 48 bits in 8 characters, so there is never any padding.
var packedEncoding = base64.StdEncoding.WithPadding(base64.NoPadding).Strict()

// Packed is the microtag format: 48 bits in the base64 alphabet, a 32-bit
// counter (or data word) followed by a 16-bit tag, both big-endian.
type Packed struct{}

// Name implements Format.
func (Packed) Name() string { return FormatPacked }

// Modulus implements Format.
func (Packed) Modulus() uint64 { return 1 << packedCounterBits }

// TagBits implements Format.
func (Packed) TagBits() int { return 16 }

// Decode implements Format.
func (Packed) Decode(line string) (Entry, error) {
	if err := checkLength(line); err != nil {
		return Entry{}, err
	}

	raw, err := packedEncoding.DecodeString(line)
	if err != nil {
		return Entry{}, malformed(line, err.Error())
	}
	if len(raw) != packedBytes {
		return Entry{}, malformed(line, "decoded payload is not 48 bits")
	}

	return Entry{
		Tag:     binary.BigEndian.Uint16(raw[4:6]),
		Counter: uint64(binary.BigEndian.Uint32(raw[0:4])),
	}, nil
}

// Encode implements Format.
func (Packed) Encode(e Entry) string {
	var raw [packedBytes]byte
	binary.BigEndian.PutUint32(raw[0:4], uint32(e.Counter))
	binary.BigEndian.PutUint16(raw[4:6], e.Tag)
	return packedEncoding.EncodeToString(raw[:])
}
