package selection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3ts/referee/pkg/core"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type det struct {
	x, y       float64
	ms         int
	dirX, dirY core.Direction
}

var nextID uint64

func makeTrack(crossed bool, dets ...det) *core.Track {
	tr := core.NewTrack()
	for _, d := range dets {
		nextID++
		ts := t0.Add(time.Duration(d.ms) * time.Millisecond)
		tr.Append(core.Detection{ID: nextID, CenterX: d.x, CenterY: d.y, Time: ts})
		tr.SetDirections(nextID, d.dirX, d.dirY)
	}
	if crossed {
		tr.MarkCrossed(t0)
	}
	return tr
}

func TestSameXYDirection(t *testing.T) {
	match := makeTrack(true, det{x: 10, ms: 0, dirX: core.MovingRight, dirY: core.MovingDown})
	onlyX := makeTrack(true, det{x: 20, ms: 10, dirX: core.MovingRight, dirY: core.MovingUp})
	notCrossed := makeTrack(false, det{x: 30, ms: 20, dirX: core.MovingRight, dirY: core.MovingDown})

	prev := Previous{DirectionX: core.MovingRight, DirectionY: core.MovingDown}
	assert.Same(t, match, SameXYDirection{}.SelectTrack([]*core.Track{match, onlyX, notCrossed}, prev))
	assert.Same(t, onlyX, SameXDirection{}.SelectTrack([]*core.Track{match, onlyX, notCrossed}, prev))
}

func TestNewestCrossed(t *testing.T) {
	older := makeTrack(true, det{x: 10, ms: 0})
	newer := makeTrack(true, det{x: 20, ms: 50})
	newest := makeTrack(false, det{x: 30, ms: 90})

	// slice order must not matter, only first-seen time
	assert.Same(t, newer, NewestCrossed{}.SelectTrack([]*core.Track{newer, newest, older}, Previous{}))
	assert.Same(t, newer, NewestCrossed{}.SelectTrack([]*core.Track{older, newest, newer}, Previous{}))
}

func TestNewestCrossed_SingleCandidate(t *testing.T) {
	crossed := makeTrack(true, det{x: 10})
	notCrossed := makeTrack(false, det{x: 10})

	assert.Same(t, crossed, NewestCrossed{}.SelectTrack([]*core.Track{crossed}, Previous{}))
	assert.Nil(t, NewestCrossed{}.SelectTrack([]*core.Track{notCrossed}, Previous{}))
	assert.Nil(t, NewestCrossed{}.SelectTrack(nil, Previous{}))
}

func TestPlausibleSpeed_RemovesNoisierCandidate(t *testing.T) {
	// 100 px at ~5.7 mm/px in one frame is ~17 m/s; 300 px is ~51 m/s
	mmPerPx := 2740.0 / 480
	ball := makeTrack(true,
		det{x: 100, y: 100, ms: 0},
		det{x: 110, y: 100, ms: 33},
		det{x: 120, y: 100, ms: 66},
	)
	ghost := makeTrack(true, det{x: 420, y: 100, ms: 66})

	out := PlausibleSpeed{MaxSpeed: MaxBallSpeed, MmPerPixel: mmPerPx}.Filter([]*core.Track{ghost, ball})
	require.Len(t, out, 1)
	assert.Same(t, ball, out[0])

	near := makeTrack(true, det{x: 220, y: 100, ms: 66})
	out = PlausibleSpeed{MaxSpeed: MaxBallSpeed, MmPerPixel: mmPerPx}.Filter([]*core.Track{ball, near})
	assert.Len(t, out, 2)
}

func TestPlausibleSpeed_TieRemovesLaterTrack(t *testing.T) {
	first := makeTrack(true, det{x: 0, ms: 0}, det{x: 5, ms: 100})
	second := makeTrack(true, det{x: 1000, ms: 50}, det{x: 1005, ms: 100})

	out := PlausibleSpeed{MmPerPixel: 5}.Filter([]*core.Track{second, first})
	require.Len(t, out, 1)
	assert.Same(t, first, out[0])
}

func TestPlausibleSpeed_LaterCrossingIsNoisier(t *testing.T) {
	// both end at 66 ms, 1000 px apart
	long := makeTrack(false, det{x: 0, ms: 0}, det{x: 5, ms: 33}, det{x: 10, ms: 66})
	short := makeTrack(false, det{x: 1005, ms: 33}, det{x: 1010, ms: 66})
	short.MarkCrossed(t0.Add(33 * time.Millisecond))
	long.MarkCrossed(t0.Add(66 * time.Millisecond))

	out := PlausibleSpeed{MmPerPixel: 5}.Filter([]*core.Track{long, short})
	require.Len(t, out, 1)
	assert.Same(t, short, out[0], "the longer history crossed later")

	shortLate := makeTrack(false, det{x: 1005, ms: 33}, det{x: 1010, ms: 66})
	longEarly := makeTrack(false, det{x: 0, ms: 0}, det{x: 5, ms: 33}, det{x: 10, ms: 66})
	longEarly.MarkCrossed(t0)
	shortLate.MarkCrossed(t0.Add(66 * time.Millisecond))

	out = PlausibleSpeed{MmPerPixel: 5}.Filter([]*core.Track{shortLate, longEarly})
	require.Len(t, out, 1)
	assert.Same(t, longEarly, out[0])
}

func TestPlausibleSpeed_UncrossedIsNoisier(t *testing.T) {
	long := makeTrack(false, det{x: 0, ms: 0}, det{x: 5, ms: 33}, det{x: 10, ms: 66})
	short := makeTrack(true, det{x: 1010, ms: 66})

	out := PlausibleSpeed{MmPerPixel: 5}.Filter([]*core.Track{long, short})
	require.Len(t, out, 1)
	assert.Same(t, short, out[0])
}

func TestPlausibleSpeed_OnlyForTwoCandidates(t *testing.T) {
	a := makeTrack(true, det{x: 0})
	b := makeTrack(true, det{x: 5000})
	c := makeTrack(true, det{x: 9000})

	in := []*core.Track{a, b, c}
	out := PlausibleSpeed{MmPerPixel: 5}.Filter(in)
	assert.Len(t, out, 3)
	assert.Len(t, in, 3)
}

func TestChain_SpeedFilterRunsBeforeDirection(t *testing.T) {
	mmPerPx := 2740.0 / 480
	prev := Previous{DirectionX: core.MovingRight, DirectionY: core.MovingDown}

	ball := makeTrack(true,
		det{x: 100, ms: 0, dirX: core.MovingRight, dirY: core.MovingUp},
		det{x: 110, ms: 33, dirX: core.MovingRight, dirY: core.MovingUp},
	)
	// matches both directions but is implausibly far away and younger
	ghost := makeTrack(true, det{x: 500, ms: 33, dirX: core.MovingRight, dirY: core.MovingDown})

	tracks := []*core.Track{ball, ghost}
	assert.Same(t, ball, Default(mmPerPx).SelectTrack(tracks, prev))
	assert.Len(t, tracks, 2, "candidate slice of the caller is untouched")
}

func TestChain_FallsThroughStrategies(t *testing.T) {
	prev := Previous{DirectionX: core.MovingLeft, DirectionY: core.MovingUp}
	a := makeTrack(true, det{x: 100, ms: 0, dirX: core.MovingRight, dirY: core.MovingDown})
	b := makeTrack(false, det{x: 110, ms: 10, dirX: core.MovingLeft, dirY: core.MovingUp})

	assert.Same(t, a, Default(0).SelectTrack([]*core.Track{a, b}, prev))
	assert.Nil(t, Default(0).SelectTrack([]*core.Track{b}, prev))
}

func TestStrategyFunc(t *testing.T) {
	tr := makeTrack(false, det{})
	s := StrategyFunc(func([]*core.Track, Previous) *core.Track { return tr })
	assert.Same(t, tr, s.SelectTrack(nil, Previous{}))
}
