package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrack_ArenaLinks(t *testing.T) {
	tr := NewTrack()
	t0 := time.Unix(100, 0)

	a := tr.Append(Detection{ID: 1, CenterX: 10, Time: t0, Velocity: 2})
	b := tr.Append(Detection{ID: 4, CenterX: 20, Time: t0.Add(time.Second), Velocity: 4})

	assert.False(t, a.HasPredecessor())
	assert.Equal(t, 0, b.Predecessor)

	prev, ok := tr.Predecessor(b)
	require.True(t, ok)
	assert.Equal(t, uint64(1), prev.ID)

	_, ok = tr.Predecessor(a)
	assert.False(t, ok)

	assert.Equal(t, t0, tr.FirstSeen())
	assert.Equal(t, t0.Add(time.Second), tr.LastSeen())
	assert.InDelta(t, 3.0, tr.AvgVelocity(), 1e-9)
}

func TestTrack_DirectionsAreFrozen(t *testing.T) {
	tr := NewTrack()
	tr.Append(Detection{ID: 7})

	d, ok := tr.SetDirections(7, MovingRight, MovingDown)
	require.True(t, ok)
	assert.True(t, d.Directed)

	d, ok = tr.SetDirections(7, MovingLeft, MovingUp)
	require.True(t, ok)
	assert.Equal(t, MovingRight, d.DirectionX)
	assert.Equal(t, MovingDown, d.DirectionY)

	_, ok = tr.SetDirections(8, MovingLeft, MovingUp)
	assert.False(t, ok)
}

func TestTrack_MarkBounceAndZ(t *testing.T) {
	tr := NewTrack()
	tr.Append(Detection{ID: 1})
	tr.Append(Detection{ID: 2})

	require.True(t, tr.MarkBounce(1))
	require.True(t, tr.SetCenterZ(2, 850))
	assert.False(t, tr.MarkBounce(3))

	first, _ := tr.Find(1)
	second, _ := tr.Find(2)
	assert.True(t, first.IsBounce)
	assert.False(t, second.IsBounce)
	assert.Equal(t, 850.0, second.CenterZ)
}

func TestTrack_CrossedLatch(t *testing.T) {
	tr := NewTrack()
	assert.False(t, tr.HasCrossed())

	t1 := time.Unix(5, 0)
	tr.MarkCrossed(t1)
	tr.MarkCrossed(t1.Add(time.Second))

	at, ok := tr.CrossedAt()
	assert.True(t, ok)
	assert.Equal(t, t1, at)
}

func TestTrack_Empty(t *testing.T) {
	tr := NewTrack()
	_, ok := tr.Latest()
	assert.False(t, ok)
	assert.Zero(t, tr.AvgVelocity())
	assert.True(t, tr.FirstSeen().IsZero())

	_, ok = tr.Striker()
	assert.False(t, ok)
	tr.SetStriker(SideRight)
	s, ok := tr.Striker()
	assert.True(t, ok)
	assert.Equal(t, SideRight, s)
}

func TestSide(t *testing.T) {
	assert.Equal(t, SideRight, SideLeft.Opposite())
	assert.Equal(t, SideLeft, SideRight.Opposite())
	assert.Equal(t, SideBottom, SideTop.Opposite())

	text, err := SideRight.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "right", string(text))

	var s Side
	require.NoError(t, s.UnmarshalText([]byte("Left")))
	assert.Equal(t, SideLeft, s)
	assert.Error(t, s.UnmarshalText([]byte("middle")))
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, MovingRight, DirectionOf(1, 2))
	assert.Equal(t, MovingLeft, DirectionOf(2, 1))
	assert.Equal(t, None, DirectionOf(2, 2))

	side, ok := StrikerForDirection(MovingRight)
	assert.True(t, ok)
	assert.Equal(t, SideLeft, side)
	_, ok = StrikerForDirection(None)
	assert.False(t, ok)
}

func TestNewTrackTrace(t *testing.T) {
	tr := NewTrack()
	t0 := time.Unix(0, 0)
	tr.Append(Detection{ID: 1, Time: t0, Velocity: 2})
	tr.Append(Detection{ID: 2, Time: t0.Add(time.Second), IsBounce: true, CenterX: 3, Velocity: 6})

	trace := NewTrackTrace(tr, t0.Add(500*time.Millisecond))
	assert.Equal(t, tr.ID(), trace.TrackID)
	// detections before the point still count towards the average
	assert.InDelta(t, 4.0, trace.AvgVelocity, 1e-9)
	require.Len(t, trace.Points, 1)
	assert.Equal(t, uint64(2), trace.Points[0].DetectionID)
	assert.True(t, trace.Points[0].IsBounce)
	assert.Equal(t, 3.0, trace.Points[0].X)
}
