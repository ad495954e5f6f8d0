package timesync

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrap(t *testing.T) {
	tests := []struct {
		name    string
		raws    []uint64
		modulus uint64
		want    []uint64
	}{
		{
			name:    "empty",
			raws:    nil,
			modulus: 1 << 24,
			want:    []uint64{},
		},
		{
			name:    "single 24-bit wrap",
			raws:    []uint64{0xFFFFF0, 0x000005},
			modulus: 1 << 24,
			want:    []uint64{0xFFFFF0, 0x1000005},
		},
		{
			name:    "no wrap on equal values",
			raws:    []uint64{10, 10, 11},
			modulus: 1 << 24,
			want:    []uint64{10, 10, 11},
		},
		{
			name:    "two wraps",
			raws:    []uint64{0xFFFF00, 0x000100, 0xFFFF00, 0x000010},
			modulus: 1 << 24,
			want:    []uint64{0xFFFF00, 0x1000100, 0x1FFFF00, 0x2000010},
		},
		{
			name:    "32-bit wrap",
			raws:    []uint64{0xFFFFFFFF, 0},
			modulus: 1 << 32,
			want:    []uint64{0xFFFFFFFF, 0x100000000},
		},
		{
			name:    "first value never wraps",
			raws:    []uint64{0},
			modulus: 1 << 24,
			want:    []uint64{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Unwrap(tt.raws, tt.modulus))
		})
	}
}

func TestUnwrapper_SingleWrapOffsetIsOneModulus(t *testing.T) {
	u := NewUnwrapper(1 << 24)
	u.Next(0xFFFFF0)
	require.Equal(t, uint64(0), u.Offset())

	u.Next(0x000005)
	assert.Equal(t, uint64(1<<24), u.Offset())
	assert.Equal(t, 1, u.Wraps())

	u.Reset()
	assert.Equal(t, uint64(0), u.Offset())
	assert.Equal(t, uint64(3), u.Next(3))
}

func TestUnwrap_MonotonicForArbitraryInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		raws := make([]uint64, 200)
		for i := range raws {
			raws[i] = uint64(rng.Intn(1 << 24))
		}

		got := Unwrap(raws, 1<<24)
		for i := 1; i < len(got); i++ {
			require.GreaterOrEqual(t, got[i], got[i-1], "round %d index %d", round, i)
		}
		for i := range got {
			assert.Equal(t, raws[i], got[i]%(1<<24), "raw value must survive modulo the field width")
		}
	}
}
