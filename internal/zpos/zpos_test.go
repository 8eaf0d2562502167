package zpos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3ts/referee/internal/table"
)

func newEstimator(t *testing.T) *Estimator {
	t.Helper()
	tbl, err := table.New(table.Corners{
		TopLeft:     table.Point{X: 100, Y: 300},
		TopRight:    table.Point{X: 540, Y: 300},
		BottomRight: table.Point{X: 560, Y: 340},
		BottomLeft:  table.Point{X: 80, Y: 340},
	})
	require.NoError(t, err)
	return New(tbl, Config{CameraDistanceMM: 1500, Tolerance: 0.1})
}

func TestRadiusRange(t *testing.T) {
	e := newEstimator(t)
	front, back := e.RadiusRange()

	assert.InDelta(t, BallRadiusMM/(table.LengthMM/480), front, 1e-9)
	assert.Less(t, back, front)
	assert.InDelta(t, front*1500/(1500+TableWidthMM), back, 1e-9)
}

func TestZPosition_Edges(t *testing.T) {
	e := newEstimator(t)
	front, back := e.RadiusRange()

	assert.InDelta(t, 0, e.ZPosition(front), 1e-9)
	assert.InDelta(t, 1, e.ZPosition(back), 1e-9)
	assert.InDelta(t, TableWidthMM, e.ZPositionMm(back), 1e-6)
}

func TestIsOnTable(t *testing.T) {
	e := newEstimator(t)
	front, back := e.RadiusRange()

	assert.True(t, e.IsOnTable(front))
	assert.True(t, e.IsOnTable(back))
	assert.True(t, e.IsOnTable((front+back)/2))
	assert.False(t, e.IsOnTable(front*2), "much closer than the near edge")
	assert.False(t, e.IsOnTable(back/3), "far behind the table")
	assert.False(t, e.IsOnTable(0))
}

func TestNew_DefaultsCameraDistance(t *testing.T) {
	tbl, err := table.New(table.Corners{
		TopLeft:     table.Point{X: 0, Y: 0},
		TopRight:    table.Point{X: 100, Y: 0},
		BottomRight: table.Point{X: 100, Y: 10},
		BottomLeft:  table.Point{X: 0, Y: 10},
	})
	require.NoError(t, err)

	e := New(tbl, Config{})
	assert.Equal(t, DefaultConfig().CameraDistanceMM, e.cameraDistance)
	assert.Equal(t, table.LengthMM/100, e.MmPerPixelFrontEdge())
}
