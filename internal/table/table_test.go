package table

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3ts/referee/pkg/core"
)

func testCorners() Corners {
	return Corners{
		TopLeft:     Point{X: 100, Y: 300},
		TopRight:    Point{X: 540, Y: 300},
		BottomRight: Point{X: 560, Y: 340},
		BottomLeft:  Point{X: 80, Y: 340},
	}
}

func newTestTable(t *testing.T, opts ...Option) *Table {
	t.Helper()
	tbl, err := New(testCorners(), opts...)
	require.NoError(t, err)
	return tbl
}

func TestNew_DerivedNet(t *testing.T) {
	tbl := newTestTable(t)

	assert.Equal(t, Point{X: 320, Y: 340}, tbl.NetBottom())
	assert.InDelta(t, LengthMM/480, tbl.MmPerPixel(), 1e-9)
	assert.Equal(t, 320.0, tbl.NetTop().X)
	assert.InDelta(t, 340-NetHeightMM/(LengthMM/480), tbl.NetTop().Y, 1e-9)
}

func TestNew_NetBottomOverride(t *testing.T) {
	tbl := newTestTable(t, WithNetBottom(Point{X: 310, Y: 338}))
	assert.Equal(t, Point{X: 310, Y: 338}, tbl.NetBottom())
	assert.Equal(t, core.SideLeft, tbl.HorizontalSide(309))
	assert.Equal(t, core.SideRight, tbl.HorizontalSide(311))
}

func TestNew_InvalidCorners(t *testing.T) {
	c := testCorners()
	c.BottomRight.X = 10
	_, err := New(c)
	require.ErrorIs(t, err, ErrInvalidCorners)

	c = testCorners()
	c.BottomLeft.Y = 100
	_, err = New(c)
	require.ErrorIs(t, err, ErrInvalidCorners)
}

func TestNew_SelfIntersectingCorners(t *testing.T) {
	// the far and near edges cross near x=233
	_, err := New(Corners{
		TopLeft:     Point{X: 100, Y: 300},
		TopRight:    Point{X: 500, Y: 400},
		BottomRight: Point{X: 400, Y: 450},
		BottomLeft:  Point{X: 200, Y: 310},
	})
	require.ErrorIs(t, err, ErrInvalidCorners)
	assert.Contains(t, err.Error(), "surface region")
}

func TestRegions_NonFiniteCoordinates(t *testing.T) {
	tbl := newTestTable(t)
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.False(t, tbl.IsOnSurface(v, 320))
		assert.False(t, tbl.IsOnOrAbove(320, v))
		assert.False(t, tbl.IsBounceOn(v, v))
	}
}

func TestHorizontalSide(t *testing.T) {
	tbl := newTestTable(t)
	assert.Equal(t, core.SideLeft, tbl.HorizontalSide(100))
	assert.Equal(t, core.SideRight, tbl.HorizontalSide(320))
	assert.Equal(t, core.SideRight, tbl.HorizontalSide(500))
}

func TestRegions(t *testing.T) {
	tbl := newTestTable(t)

	tests := []struct {
		name      string
		x, y      float64
		surface   bool
		onOrAbove bool
		below     bool
		bounce    bool
	}{
		{"on surface", 300, 320, true, true, false, true},
		{"high above table", 300, 50, false, true, false, false},
		{"just above surface", 300, 295, false, true, false, true},
		{"under near edge", 300, 400, false, false, true, false},
		{"beside table, low", 20, 400, false, false, true, false},
		{"beside table, high", 20, 100, false, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.surface, tbl.IsOnSurface(tt.x, tt.y), "surface")
			assert.Equal(t, tt.onOrAbove, tbl.IsOnOrAbove(tt.x, tt.y), "on or above")
			assert.Equal(t, tt.below, tbl.IsBelow(tt.x, tt.y), "below")
			assert.Equal(t, tt.bounce, tbl.IsBounceOn(tt.x, tt.y), "bounce")
		})
	}
}

func TestMidlineY(t *testing.T) {
	tbl := newTestTable(t)
	assert.InDelta(t, 320.0, tbl.MidlineY(320), 1e-9)
}

func TestParseCorners_Valid(t *testing.T) {
	c, err := ParseCorners("[[100,300],[540,300],[560,340],[80,340]]")
	require.NoError(t, err)
	assert.Equal(t, testCorners(), c)
}

func TestParseCorners_InvalidJSON(t *testing.T) {
	_, err := ParseCorners("not valid json")
	require.Error(t, err)
}

func TestParseCorners_WrongCount(t *testing.T) {
	_, err := ParseCorners("[[1,2],[3,4],[5,6]]")
	require.ErrorIs(t, err, ErrInvalidCorners)
}

func TestParseCorners_InsufficientCoordinates(t *testing.T) {
	_, err := ParseCorners("[[1],[3,4],[5,6],[7,8]]")
	require.ErrorIs(t, err, ErrInvalidCorners)
}
