// Package selection picks the track most likely to be the ball out of the
// tracker's candidates.
package selection

import (
	"math"
	"slices"
	"time"

	"github.com/m3ts/referee/pkg/core"
)

// MaxBallSpeed is the fastest plausible ball speed in m/s.
const MaxBallSpeed = 32.0

// DefaultFrameInterval is used when two detections share a timestamp.
const DefaultFrameInterval = time.Second / 30

// Previous is the motion state remembered by the detector.
type Previous struct {
	DirectionX core.Direction
	DirectionY core.Direction
	CenterX    float64
	CenterY    float64
}

// Strategy selects at most one track. Implementations must not modify the tracks.
type Strategy interface {
	SelectTrack(tracks []*core.Track, prev Previous) *core.Track
}

// Filter narrows the candidate list before any strategy runs.
// It returns a new slice and leaves its input untouched.
type Filter interface {
	Filter(tracks []*core.Track) []*core.Track
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(tracks []*core.Track, prev Previous) *core.Track

func (f StrategyFunc) SelectTrack(tracks []*core.Track, prev Previous) *core.Track {
	return f(tracks, prev)
}

// SameXYDirection picks a crossed track moving the same way on both axes.
type SameXYDirection struct{}

func (SameXYDirection) SelectTrack(tracks []*core.Track, prev Previous) *core.Track {
	return firstNewest(tracks, func(t *core.Track, d core.Detection) bool {
		return t.HasCrossed() && d.DirectionX == prev.DirectionX && d.DirectionY == prev.DirectionY
	})
}

// SameXDirection picks a crossed track moving the same way horizontally.
type SameXDirection struct{}

func (SameXDirection) SelectTrack(tracks []*core.Track, prev Previous) *core.Track {
	return firstNewest(tracks, func(t *core.Track, d core.Detection) bool {
		return t.HasCrossed() && d.DirectionX == prev.DirectionX
	})
}

// NewestCrossed picks the most recently started track that has crossed the table.
type NewestCrossed struct{}

func (NewestCrossed) SelectTrack(tracks []*core.Track, _ Previous) *core.Track {
	return firstNewest(tracks, func(t *core.Track, _ core.Detection) bool {
		return t.HasCrossed()
	})
}

// PlausibleSpeed drops one of exactly two candidates when the distance
// between their latest detections implies an impossible ball speed.
// The dropped one is the track that crossed the table later, or never. Ties
// go against the shorter history, then against the track first seen later.
type PlausibleSpeed struct {
	MaxSpeed   float64 // m/s
	MmPerPixel float64
}

func (p PlausibleSpeed) Filter(tracks []*core.Track) []*core.Track {
	out := slices.Clone(tracks)
	if len(out) != 2 || p.MmPerPixel <= 0 {
		return out
	}
	a, okA := out[0].Latest()
	b, okB := out[1].Latest()
	if !okA || !okB {
		return out
	}

	dt := a.Time.Sub(b.Time)
	if dt < 0 {
		dt = -dt
	}
	if dt == 0 {
		dt = DefaultFrameInterval
	}
	meters := math.Hypot(a.CenterX-b.CenterX, a.CenterY-b.CenterY) * p.MmPerPixel / 1000
	if meters/dt.Seconds() < p.maxSpeed() {
		return out
	}
	i := noisier(out[0], out[1])
	return slices.Delete(out, i, i+1)
}

func (p PlausibleSpeed) maxSpeed() float64 {
	if p.MaxSpeed <= 0 {
		return MaxBallSpeed
	}
	return p.MaxSpeed
}

// noisier returns the index (0 or 1) of the less trusted track.
func noisier(a, b *core.Track) int {
	ca, crossedA := a.CrossedAt()
	cb, crossedB := b.CrossedAt()
	switch {
	case crossedA && !crossedB:
		return 1
	case crossedB && !crossedA:
		return 0
	case crossedA && ca.After(cb):
		return 0
	case crossedA && cb.After(ca):
		return 1
	}

	switch la, lb := a.Len(), b.Len(); {
	case la < lb:
		return 0
	case lb < la:
		return 1
	}
	if a.FirstSeen().After(b.FirstSeen()) {
		return 0
	}
	return 1
}

// Chain applies its filters, then asks each strategy in turn.
type Chain struct {
	Filters    []Filter
	Strategies []Strategy
}

// Default is the selection policy used by the detector.
func Default(mmPerPixel float64) *Chain {
	return &Chain{
		Filters: []Filter{PlausibleSpeed{MaxSpeed: MaxBallSpeed, MmPerPixel: mmPerPixel}},
		Strategies: []Strategy{
			SameXYDirection{},
			SameXDirection{},
			NewestCrossed{},
		},
	}
}

func (c *Chain) SelectTrack(tracks []*core.Track, prev Previous) *core.Track {
	candidates := tracks
	for _, f := range c.Filters {
		candidates = f.Filter(candidates)
	}
	for _, s := range c.Strategies {
		if t := s.SelectTrack(candidates, prev); t != nil {
			return t
		}
	}
	return nil
}

// firstNewest returns the first track matching ok, looking at the most
// recently started tracks first.
func firstNewest(tracks []*core.Track, ok func(*core.Track, core.Detection) bool) *core.Track {
	for _, t := range newestFirst(tracks) {
		d, has := t.Latest()
		if has && ok(t, d) {
			return t
		}
	}
	return nil
}

func newestFirst(tracks []*core.Track) []*core.Track {
	sorted := slices.Clone(tracks)
	slices.Reverse(sorted)
	slices.SortStableFunc(sorted, func(a, b *core.Track) int {
		return b.FirstSeen().Compare(a.FirstSeen())
	})
	return sorted
}
