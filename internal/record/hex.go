package record

import (
	"encoding/hex"
	"fmt"
)

const (
	hexTagMask     = 0xFF
	hexCounterBits = 24
	hexCounterMask = 1<<hexCounterBits - 1
)

// Hex is the timestamp format: two hex digits of tag followed by six hex
// digits of counter. Decode accepts either case but Encode writes upper
// case, so a line round-trips exactly only when it is upper case.
type Hex struct{}

// Name implements Format.
func (Hex) Name() string { return FormatHex }

// Modulus implements Format.
func (Hex) Modulus() uint64 { return 1 << hexCounterBits }

// TagBits implements Format.
func (Hex) TagBits() int { return 8 }

// Decode implements Format.
func (Hex) Decode(line string) (Entry, error) {
	if err := checkLength(line); err != nil {
		return Entry{}, err
	}

	raw, err := hex.DecodeString(line)
	if err != nil {
		return Entry{}, malformed(line, err.Error())
	}

	return Entry{
		Tag:     uint16(raw[0]),
		Counter: uint64(raw[1])<<16 | uint64(raw[2])<<8 | uint64(raw[3]),
	}, nil
}

// Encode implements Format.
func (Hex) Encode(e Entry) string {
	return fmt.Sprintf("%02X%06X", e.Tag&hexTagMask, e.Counter&hexCounterMask)
}
