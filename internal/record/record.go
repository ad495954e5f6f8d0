package record

import (
	"errors"
	"fmt"
	"strings"
)

// LineLength is the length of every meaningful record line.
const LineLength = 8

// ErrMalformedRecord is returned when a line has the wrong length or contains
// characters outside the active format's alphabet.
var ErrMalformedRecord = errors.New("malformed record")

// Entry is one decoded record.
//
// Counter holds the raw field value right after decoding. After the capture
// importer has run the unwrapper it holds the corrected, monotonic value.
type Entry struct {
	Tag     uint16
	Counter uint64
}

// String renders the entry in a format independent way.
func (e Entry) String() string {
	return fmt.Sprintf("%04X:%08X", e.Tag, e.Counter)
}

// Format is a record wire format.
type Format interface {
	// Name returns the canonical name of the format.
	Name() string
	// Decode parses one eight character line.
	Decode(line string) (Entry, error)
	// Encode serializes an entry. Tag and counter are reduced to the
	// field widths of the format.
	Encode(e Entry) string
	// Modulus is the wrap period of the counter field.
	Modulus() uint64
	// TagBits is the width of the tag field.
	TagBits() int
}

// Format names accepted by ParseFormat.
const (
	FormatHex    = "hex"
	FormatPacked = "packed"
)

// ParseFormat returns the format registered under name.
// "timestamp" is accepted as an alias of hex, "base64" and "microtag" as
// aliases of packed.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case FormatHex, "timestamp", "timestamps":
		return Hex{}, nil
	case FormatPacked, "base64", "microtag", "microtags":
		return Packed{}, nil
	default:
		return nil, fmt.Errorf("unknown record format %q (want %q or %q)", name, FormatHex, FormatPacked)
	}
}

func malformed(line, reason string) error {
	return fmt.Errorf("%w %q: %s", ErrMalformedRecord, line, reason)
}

func checkLength(line string) error {
	if len(line) != LineLength {
		return malformed(line, fmt.Sprintf("length %d, want %d", len(line), LineLength))
	}
	return nil
}
