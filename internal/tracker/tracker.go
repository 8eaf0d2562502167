// Package tracker associates per-frame detections into tracks using greedy
// nearest-neighbour matching. It is the reference tracker the detector runs
// against; any implementation of detector.Tracker can replace it.
package tracker

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/m3ts/referee/pkg/core"
)

// Config holds the association limits.
type Config struct {
	MaxGap    time.Duration // tracks without a detection for longer are dropped
	MaxJumpPx float64       // max distance between consecutive detections of a track
	MaxTracks int           // oldest tracks are dropped beyond this
}

// DefaultConfig returns limits suited to a 30 fps side camera.
func DefaultConfig() Config {
	return Config{
		MaxGap:    250 * time.Millisecond,
		MaxJumpPx: 120,
		MaxTracks: 8,
	}
}

// TrackSet is the live set of tracks.
type TrackSet struct {
	mu     sync.Mutex
	config Config
	tracks []*core.Track // creation order
	nextID uint64
}

func New(cfg Config) *TrackSet {
	def := DefaultConfig()
	if cfg.MaxGap <= 0 {
		cfg.MaxGap = def.MaxGap
	}
	if cfg.MaxJumpPx <= 0 {
		cfg.MaxJumpPx = def.MaxJumpPx
	}
	if cfg.MaxTracks <= 0 {
		cfg.MaxTracks = def.MaxTracks
	}
	return &TrackSet{config: cfg}
}

// AddDetections assigns the detections of one frame to tracks.
func (s *TrackSet) AddDetections(raw []core.RawDetection, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expire(ts)

	claimed := make(map[*core.Track]bool, len(s.tracks))
	for _, r := range raw {
		track, prev := s.nearest(r, claimed)
		if track == nil {
			track = core.NewTrack()
			s.tracks = append(s.tracks, track)
		}
		claimed[track] = true

		s.nextID++
		track.Append(core.Detection{
			ID:       s.nextID,
			CenterX:  r.X,
			CenterY:  r.Y,
			Radius:   r.Radius,
			Velocity: velocity(r, prev, ts),
			Time:     ts,
		})
	}

	if excess := len(s.tracks) - s.config.MaxTracks; excess > 0 {
		slices.SortStableFunc(s.tracks, func(a, b *core.Track) int {
			return a.LastSeen().Compare(b.LastSeen())
		})
		s.tracks = s.tracks[excess:]
		slices.SortStableFunc(s.tracks, func(a, b *core.Track) int {
			return a.FirstSeen().Compare(b.FirstSeen())
		})
	}
}

// Tracks returns the live tracks in creation order.
func (s *TrackSet) Tracks() []*core.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tracks)
}

// Clear drops every track.
func (s *TrackSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = nil
}

func (s *TrackSet) expire(ts time.Time) {
	s.tracks = slices.DeleteFunc(s.tracks, func(t *core.Track) bool {
		return ts.Sub(t.LastSeen()) > s.config.MaxGap
	})
}

func (s *TrackSet) nearest(r core.RawDetection, claimed map[*core.Track]bool) (*core.Track, *core.Detection) {
	var (
		best     *core.Track
		bestLast core.Detection
		bestDist = s.config.MaxJumpPx
	)
	for _, t := range s.tracks {
		if claimed[t] {
			continue
		}
		last, ok := t.Latest()
		if !ok {
			continue
		}
		if d := math.Hypot(r.X-last.CenterX, r.Y-last.CenterY); d <= bestDist {
			best, bestLast, bestDist = t, last, d
		}
	}
	if best == nil {
		return nil, nil
	}
	return best, &bestLast
}

func velocity(r core.RawDetection, prev *core.Detection, ts time.Time) float64 {
	if r.Velocity > 0 || prev == nil {
		return r.Velocity
	}
	dt := ts.Sub(prev.Time).Seconds()
	if dt <= 0 {
		return prev.Velocity
	}
	return math.Hypot(r.X-prev.CenterX, r.Y-prev.CenterY) / dt
}
