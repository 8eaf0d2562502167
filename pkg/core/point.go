// pkg/core/point.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// DecisionKind tells whether a point was won by a player or lost through a fault.
type DecisionKind string

const (
	DecisionPoint     DecisionKind = "point"
	DecisionFault     DecisionKind = "fault"
	DecisionManualAdd DecisionKind = "manual_add"
	DecisionDeduction DecisionKind = "manual_deduct"
)

// TracePoint is one detection of a point trace, flattened for storage.
type TracePoint struct {
	DetectionID uint64    `json:"id"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Z           float64   `json:"z"`
	Velocity    float64   `json:"velocity"`
	DirectionX  Direction `json:"dirX"`
	DirectionY  Direction `json:"dirY"`
	IsBounce    bool      `json:"bounce"`
	Time        time.Time `json:"time"`
}

// TrackTrace is the part of a track observed during a point.
// AvgVelocity covers the whole track, not only Points.
type TrackTrace struct {
	TrackID     uuid.UUID    `json:"trackId"`
	AvgVelocity float64      `json:"avgVelocity"`
	Points      []TracePoint `json:"points"`
}

// NewTrackTrace flattens the detections of t seen at or after since.
func NewTrackTrace(t *Track, since time.Time) TrackTrace {
	trace := TrackTrace{TrackID: t.ID(), AvgVelocity: t.AvgVelocity()}
	for _, d := range t.Detections() {
		if d.Time.Before(since) {
			continue
		}
		trace.Points = append(trace.Points, TracePoint{
			DetectionID: d.ID,
			X:           d.CenterX,
			Y:           d.CenterY,
			Z:           d.CenterZ,
			Velocity:    d.Velocity,
			DirectionX:  d.DirectionX,
			DirectionY:  d.DirectionY,
			IsBounce:    d.IsBounce,
			Time:        d.Time,
		})
	}
	return trace
}

// PointRecord is everything known about one decided point.
type PointRecord struct {
	MatchID     uuid.UUID
	Game        int
	Kind        DecisionKind
	Reason      string
	Winner      Side
	ScoreLeft   int
	ScoreRight  int
	Strikes     int
	Bounces     int
	AudioBounce int
	BallSide    Side
	Striker     Side
	Server      Side
	Duration    time.Duration
	DecidedAt   time.Time
	Traces      []TrackTrace
}

// Match describes one recorded match.
type Match struct {
	ID          uuid.UUID
	PlayerLeft  string
	PlayerRight string
	StartTime   time.Time
	EndTime     time.Time
	FirstServer Side
	GameLength  int
	GamesLeft   int
	GamesRight  int
}
