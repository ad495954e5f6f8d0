package tagclass

import "fmt"

// Microtag id ranges.
const (
	StartFirst    = 0x0000
	StopFirst     = 0x4000
	EventFirst    = 0x8000
	DataFirst     = 0xC000
	ReservedFirst = 0xF000

	pairMask = 0x3FFF
)

// RangeClassifier classifies 16-bit microtag ids by range:
//
//	0x0000-0x3FFF  Start
//	0x4000-0x7FFF  Stop
//	0x8000-0xBFFF  Event
//	0xC000-0xEFFF  Data
//	0xF000-0xFFFF  Reserved
//
// A start id t pairs with the stop id t+0x4000.
type RangeClassifier struct {
	// Names optionally supplies display names.
	Names Table
}

// KindOf returns the range kind of a tag.
func KindOf(tag uint16) Kind {
	switch {
	case tag < StopFirst:
		return Start
	case tag < EventFirst:
		return Stop
	case tag < DataFirst:
		return Event
	case tag < ReservedFirst:
		return Data
	default:
		return Reserved
	}
}

// Classify implements Classifier.
func (c RangeClassifier) Classify(tag uint16) Classification {
	kind := KindOf(tag)

	name, ok := c.Names[tag]
	if !ok {
		name = unknownName
	}

	var key string
	if kind == Start || kind == Stop {
		key = fmt.Sprintf("0x%04X", tag&pairMask)
	}

	return Classification{Kind: kind, Name: name, Key: key}
}
