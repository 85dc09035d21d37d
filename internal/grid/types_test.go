package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackCellID_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		coordX int64
		coordY int64
	}{
		{"origin", 0, 0},
		{"positive", 12, 34},
		{"negative x", -1, 5},
		{"negative y", 7, -1},
		{"both negative", -4295, -17},
		{"int32 extremes", math.MaxInt32, math.MinInt32},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id := PackCellID(tc.coordX, tc.coordY)
			x, y := id.Coords()
			assert.Equal(t, tc.coordX, x)
			assert.Equal(t, tc.coordY, y)
		})
	}
}

func TestPackCellID_Layout(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CellID(3<<32|9), PackCellID(3, 9))
	// Negative halves must not bleed into the other coordinate.
	assert.NotEqual(t, PackCellID(0, -1), PackCellID(-1, -1))
	assert.NotEqual(t, PackCellID(1, -1), PackCellID(0, -1))
	assert.Equal(t, CellID(0x00000001_FFFFFFFF), PackCellID(1, -1))
}

func TestQuantise_TruncatesTowardZero(t *testing.T) {
	t.Parallel()

	tests := []struct {
		p            Point
		wantX, wantY int64
	}{
		{Point{0, 0}, 0, 0},
		{Point{499, 499}, 0, 0},
		{Point{500, 999}, 1, 1},
		{Point{-499, -1}, 0, 0},
		{Point{-500, -999}, -1, -1},
		{Point{-1000, 1000}, -2, 2},
	}

	for _, tc := range tests {
		x, y := Quantise(tc.p)
		assert.Equal(t, tc.wantX, x, "x of %v", tc.p)
		assert.Equal(t, tc.wantY, y, "y of %v", tc.p)
	}
}

func TestEdgeWeight(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(15), Edge{Length: 30, Samples: 2}.Weight())
	assert.Equal(t, int64(12), Edge{Length: 25, Samples: 2}.Weight())
	assert.Equal(t, int64(0), Edge{}.Weight())
}

func TestCellIDString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "cell[-2,5]", PackCellID(-2, 5).String())
}
