package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushev/micro-man-tools/internal/metrics"
	"github.com/ayushev/micro-man-tools/internal/record"
	"github.com/ayushev/micro-man-tools/internal/tagclass"
)

const hexCapture = `# capture of TLS handshake
10FFFFF0
11000005

not a record line
#2000000
2Z000000
  20000010  
22000020
`

func TestRead_HexWithNoiseAndWrap(t *testing.T) {
	c, err := Read("tls.txt", strings.NewReader(hexCapture), Options{Format: record.Hex{}})
	require.NoError(t, err)

	want := []record.Entry{
		{Tag: 0x10, Counter: 0xFFFFF0},
		{Tag: 0x11, Counter: 0x1000005},
		{Tag: 0x20, Counter: 0x1000010},
		{Tag: 0x22, Counter: 0x1000020},
	}
	assert.Equal(t, want, c.Entries)

	assert.Equal(t, 9, c.Report.Lines)
	assert.Equal(t, 4, c.Report.Imported)
	assert.Equal(t, 4, c.Report.Noise)
	assert.Equal(t, 1, c.Report.Wraps)
	require.Len(t, c.Report.Failed, 1)
	assert.Equal(t, []int{7}, c.Report.FailedLines())
	assert.Equal(t, "2Z000000", c.Report.Failed[0].Text)
	assert.ErrorIs(t, c.Report.Failed[0], record.ErrMalformedRecord)
}

func TestRead_CodesReproduceInput(t *testing.T) {
	c, err := Read("tls.txt", strings.NewReader(hexCapture), Options{Format: record.Hex{}})
	require.NoError(t, err)

	assert.Equal(t, []string{"10FFFFF0", "11000005", "20000010", "22000020"}, c.Codes())
}

func TestRead_PackedExemptsDataTags(t *testing.T) {
	fmtr := record.Packed{}
	lines := []string{
		fmtr.Encode(record.Entry{Tag: 0x0001, Counter: 0xFFFFFF00}),
		// Data payload, smaller than the previous counter.
		fmtr.Encode(record.Entry{Tag: 0xC001, Counter: 3300}),
		fmtr.Encode(record.Entry{Tag: 0x4001, Counter: 0xFFFFFFF0}),
		fmtr.Encode(record.Entry{Tag: 0x8001, Counter: 0x10}),
	}

	exempt := func(tag uint16) bool { return !tagclass.KindOf(tag).TimeBased() }
	c, err := Read("mt.txt", strings.NewReader(strings.Join(lines, "\r\n")), Options{Format: fmtr, Exempt: exempt})
	require.NoError(t, err)

	want := []record.Entry{
		{Tag: 0x0001, Counter: 0xFFFFFF00},
		{Tag: 0xC001, Counter: 3300},
		{Tag: 0x4001, Counter: 0xFFFFFFF0},
		{Tag: 0x8001, Counter: 0x100000010},
	}
	assert.Equal(t, want, c.Entries)
	assert.Equal(t, 1, c.Report.Wraps)
}

func TestRead_WithoutExemptionEveryCounterUnwraps(t *testing.T) {
	fmtr := record.Packed{}
	lines := []string{
		fmtr.Encode(record.Entry{Tag: 0x0001, Counter: 100}),
		fmtr.Encode(record.Entry{Tag: 0xC001, Counter: 3}),
	}

	c, err := Read("mt.txt", strings.NewReader(strings.Join(lines, "\n")), Options{Format: fmtr})
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<32+3), c.Entries[1].Counter)
}

func TestRead_EmptyInputIsDistinguishable(t *testing.T) {
	c, err := Read("empty.txt", strings.NewReader("# nothing here\n\nXXXXXXXX\n"), Options{Format: record.Hex{}})
	require.NoError(t, err)

	assert.True(t, c.Empty())
	err = c.RequireEntries()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyInput))
	assert.False(t, errors.Is(err, ErrUnreadable))
}

func TestRead_RequiresFormat(t *testing.T) {
	_, err := Read("x", strings.NewReader(""), Options{})
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.txt")
	require.NoError(t, os.WriteFile(path, []byte("05000010\n06000020\n"), 0o600))

	rec := metrics.New()
	c, err := Load(path, Options{Format: record.Hex{}, Metrics: rec})
	require.NoError(t, err)

	assert.Equal(t, "capture.txt", c.Name)
	assert.Equal(t, []record.Entry{{Tag: 0x05, Counter: 0x10}, {Tag: 0x06, Counter: 0x20}}, c.Entries)
	assert.NoError(t, c.RequireEntries())

	count, err := testutil.GatherAndCount(rec.Registry(), "microman_records_imported_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoad_Unreadable(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"), Options{Format: record.Hex{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadable))
	assert.False(t, errors.Is(err, ErrEmptyInput))
}

func TestIsNoise(t *testing.T) {
	assert.True(t, IsNoise(""))
	assert.True(t, IsNoise("#1234567"))
	assert.True(t, IsNoise("123456789"))
	assert.False(t, IsNoise("12345678"))
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.txt")
	pathB := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(pathA, []byte("02000010\n05000030\n"), 0o600))
	require.NoError(t, os.WriteFile(pathB, []byte("03000015\n04000020\n"), 0o600))

	captures, err := LoadAll(context.Background(), []string{pathA, pathB}, Options{Format: record.Hex{}})
	require.NoError(t, err)
	require.Len(t, captures, 2)
	assert.Equal(t, "a.txt", captures[0].Name)
	assert.Equal(t, "b.txt", captures[1].Name)
	assert.Equal(t, uint64(0x15), captures[1].Entries[0].Counter)

	_, err = LoadAll(context.Background(), []string{pathA, filepath.Join(dir, "missing.txt")}, Options{Format: record.Hex{}})
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestDecoder_Incremental(t *testing.T) {
	d, err := NewDecoder("uart", Options{Format: record.Hex{}})
	require.NoError(t, err)

	_, ok := d.Decode("# header")
	assert.False(t, ok)

	e, ok := d.Decode("  05FFFFF0  ")
	require.True(t, ok)
	assert.Equal(t, uint64(0xFFFFF0), e.Counter)

	_, ok = d.Decode("05XXXXXX")
	assert.False(t, ok)

	e, ok = d.Decode("05000005")
	require.True(t, ok)
	assert.Equal(t, uint64(0x1000005), e.Counter)

	report := d.Close()
	assert.Equal(t, 4, report.Lines)
	assert.Equal(t, 1, report.Noise)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, []int{3}, report.FailedLines())
	assert.Equal(t, 1, report.Wraps)
}

func TestNewDecoder_NoFormat(t *testing.T) {
	_, err := NewDecoder("uart", Options{})
	require.Error(t, err)
}
