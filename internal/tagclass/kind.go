package tagclass

// Kind is the semantic category of a tag.
type Kind int

// Tag kinds.
const (
	Unknown Kind = iota
	Start
	Stop
	Event
	Data
	Reserved
)

var kindNames = [...]string{
	Unknown:  "Unknown",
	Start:    "Start",
	Stop:     "Stop",
	Event:    "Event",
	Data:     "Data",
	Reserved: "Reserved",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// TimeBased reports whether entries of this kind carry a tick counter
// rather than a data payload.
func (k Kind) TimeBased() bool {
	return k == Start || k == Stop || k == Event || k == Unknown
}

// Classification is the result of classifying one tag.
type Classification struct {
	Kind Kind
	// Name is the display name of the tag.
	Name string
	// Key pairs Start and Stop tags: both sides of an interval share it.
	// Empty for kinds that never pair.
	Key string
}

// Classifier classifies tags.
type Classifier interface {
	Classify(tag uint16) Classification
}
