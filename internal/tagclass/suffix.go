package tagclass

import "strings"

const unknownName = "UNKNOWN"

var (
	beginMarkers = []string{"_BEGIN", "_START"}
	endMarkers   = []string{"_END", "_STOP"}
)

// SuffixClassifier classifies tags through the names in a Table. A name
// ending in _BEGIN (or _START) opens an interval that the identically
// prefixed _END (or _STOP) name closes. Other names are single events.
// Tags missing from the table are Unknown.
type SuffixClassifier struct {
	Names Table
}

// Classify implements Classifier.
func (c SuffixClassifier) Classify(tag uint16) Classification {
	name, ok := c.Names[tag]
	if !ok {
		return Classification{Kind: Unknown, Name: unknownName}
	}
	return ClassifyName(name)
}

// ClassifyName classifies a tag name by its suffix.
func ClassifyName(name string) Classification {
	for _, marker := range beginMarkers {
		if strings.HasSuffix(name, marker) {
			return Classification{Kind: Start, Name: name, Key: strings.TrimSuffix(name, marker)}
		}
	}
	for _, marker := range endMarkers {
		if strings.HasSuffix(name, marker) {
			return Classification{Kind: Stop, Name: name, Key: strings.TrimSuffix(name, marker)}
		}
	}
	return Classification{Kind: Event, Name: name}
}
