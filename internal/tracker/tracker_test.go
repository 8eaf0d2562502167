package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3ts/referee/pkg/core"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func TestAddDetections_ExtendsNearestTrack(t *testing.T) {
	s := New(DefaultConfig())

	s.AddDetections([]core.RawDetection{{X: 100, Y: 100, Radius: 4}}, at(0))
	s.AddDetections([]core.RawDetection{{X: 110, Y: 102, Radius: 4}}, at(33))

	tracks := s.Tracks()
	require.Len(t, tracks, 1)
	require.Equal(t, 2, tracks[0].Len())

	latest, ok := tracks[0].Latest()
	require.True(t, ok)
	assert.Equal(t, 0, latest.Predecessor)
	assert.Greater(t, latest.ID, uint64(1))
	assert.Greater(t, latest.Velocity, 0.0)

	first, ok := tracks[0].Predecessor(latest)
	require.True(t, ok)
	assert.Equal(t, 100.0, first.CenterX)
	assert.False(t, first.HasPredecessor())
}

func TestAddDetections_FarDetectionStartsNewTrack(t *testing.T) {
	s := New(DefaultConfig())

	s.AddDetections([]core.RawDetection{{X: 100, Y: 100}}, at(0))
	s.AddDetections([]core.RawDetection{{X: 600, Y: 100}}, at(33))

	tracks := s.Tracks()
	require.Len(t, tracks, 2)
	assert.Equal(t, 1, tracks[0].Len())
	assert.Equal(t, 1, tracks[1].Len())
	assert.True(t, tracks[0].FirstSeen().Before(tracks[1].FirstSeen()))
}

func TestAddDetections_OneDetectionPerTrackPerFrame(t *testing.T) {
	s := New(DefaultConfig())

	s.AddDetections([]core.RawDetection{{X: 100, Y: 100}}, at(0))
	s.AddDetections([]core.RawDetection{{X: 105, Y: 100}, {X: 106, Y: 101}}, at(33))

	tracks := s.Tracks()
	require.Len(t, tracks, 2)
	assert.Equal(t, 2, tracks[0].Len())
	assert.Equal(t, 1, tracks[1].Len())
}

func TestAddDetections_ExpiresStaleTracks(t *testing.T) {
	s := New(Config{MaxGap: 100 * time.Millisecond, MaxJumpPx: 50, MaxTracks: 4})

	s.AddDetections([]core.RawDetection{{X: 100, Y: 100}}, at(0))
	s.AddDetections([]core.RawDetection{{X: 102, Y: 100}}, at(500))

	tracks := s.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, 1, tracks[0].Len())
	assert.Equal(t, at(500), tracks[0].FirstSeen())
}

func TestAddDetections_MaxTracks(t *testing.T) {
	s := New(Config{MaxGap: time.Second, MaxJumpPx: 10, MaxTracks: 2})

	s.AddDetections([]core.RawDetection{{X: 0, Y: 0}}, at(0))
	s.AddDetections([]core.RawDetection{{X: 100, Y: 0}}, at(10))
	s.AddDetections([]core.RawDetection{{X: 200, Y: 0}}, at(20))

	tracks := s.Tracks()
	require.Len(t, tracks, 2)
	first, _ := tracks[0].Latest()
	second, _ := tracks[1].Latest()
	assert.Equal(t, 100.0, first.CenterX)
	assert.Equal(t, 200.0, second.CenterX)
}

func TestAddDetections_ProvidedVelocityWins(t *testing.T) {
	s := New(DefaultConfig())
	s.AddDetections([]core.RawDetection{{X: 100, Y: 100}}, at(0))
	s.AddDetections([]core.RawDetection{{X: 110, Y: 100, Velocity: 42}}, at(33))

	latest, _ := s.Tracks()[0].Latest()
	assert.Equal(t, 42.0, latest.Velocity)
}

func TestClear(t *testing.T) {
	s := New(DefaultConfig())
	s.AddDetections([]core.RawDetection{{X: 100, Y: 100}}, at(0))
	s.Clear()
	assert.Empty(t, s.Tracks())
}
