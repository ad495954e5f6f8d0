package tagclass

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxTableFileSize bounds the size of tag table files.
const MaxTableFileSize = 1024 * 1024

//go:embed timestamps.yaml
var defaultTimestampYAML []byte

// Table maps tag ids to names.
type Table map[uint16]string

// TagID is a tag id that accepts any integer literal in YAML
// (decimal, 0x hex, 0o octal).
type TagID uint16

// UnmarshalYAML implements yaml.Unmarshaler.
func (id *TagID) UnmarshalYAML(value *yaml.Node) error {
	n, err := strconv.ParseUint(strings.TrimSpace(value.Value), 0, 16)
	if err != nil {
		return fmt.Errorf("line %d: invalid tag id %q: %w", value.Line, value.Value, err)
	}
	*id = TagID(n)
	return nil
}

type tableEntry struct {
	ID   TagID  `yaml:"id"`
	Name string `yaml:"name"`
}

type tableFile struct {
	Tags []tableEntry `yaml:"tags"`
}

// ParseTable parses a YAML tag table:
//
//	tags:
//	  - {id: 0x10, name: TS_PRF_BEGIN}
//	  - {id: 0x11, name: TS_PRF_END}
//
// Duplicate ids and empty names are rejected.
func ParseTable(data []byte) (Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tag table: %w", err)
	}

	table := make(Table, len(file.Tags))
	for _, entry := range file.Tags {
		tag := uint16(entry.ID)
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("tag 0x%02X has an empty name", tag)
		}
		if prev, exists := table[tag]; exists {
			return nil, fmt.Errorf("tag 0x%02X defined twice (%s, %s)", tag, prev, name)
		}
		table[tag] = name
	}
	return table, nil
}

// LoadTable reads a YAML tag table from path.
func LoadTable(path string) (Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat tag table: %w", err)
	}
	if info.Size() > MaxTableFileSize {
		return nil, fmt.Errorf("tag table %s is too large (%d bytes, max %d)", path, info.Size(), MaxTableFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tag table: %w", err)
	}
	return ParseTable(data)
}

// DefaultTimestampTable returns the tag names of the TLS library
// instrumentation. Each call returns a fresh copy.
func DefaultTimestampTable() Table {
	table, err := ParseTable(defaultTimestampYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded timestamp table is invalid: %v", err))
	}
	return table
}

// Tags returns the ids of the table in ascending order.
func (t Table) Tags() []uint16 {
	tags := make([]uint16, 0, len(t))
	for tag := range t {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Defines renders the table as C preprocessor definitions, one per tag, so
// firmware can be instrumented with the same names.
func (t Table) Defines() string {
	width := 2
	for tag := range t {
		if tag > 0xFF {
			width = 4
			break
		}
	}

	var b strings.Builder
	for _, tag := range t.Tags() {
		fmt.Fprintf(&b, "#define %-30s 0x%0*X\n", t[tag], width, tag)
	}
	return b.String()
}

// ParseClassifier returns the classifier registered under name, backed by
// the given table. Valid names are "range" and "suffix".
func ParseClassifier(name string, table Table) (Classifier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "range":
		return RangeClassifier{Names: table}, nil
	case "suffix", "name":
		return SuffixClassifier{Names: table}, nil
	default:
		return nil, fmt.Errorf("unknown classifier %q (want \"range\" or \"suffix\")", name)
	}
}
