// pkg/core/events.go
package core

import "time"

// EventKind names a semantic table tennis event.
type EventKind string

const (
	EventStrike              EventKind = "strike"
	EventBounce              EventKind = "bounce"
	EventAudioBounce         EventKind = "audio_bounce"
	EventStrikerSideChange   EventKind = "striker_side_change"
	EventTableSideChange     EventKind = "table_side_change"
	EventNearlyOutOfFrame    EventKind = "nearly_out_of_frame"
	EventBallDroppedSideways EventKind = "ball_dropped_sideways"
	EventBallMovingIntoNet   EventKind = "ball_moving_into_net"
	EventDetectionTimeout    EventKind = "detection_timeout"
)

// EventKinds lists every kind the detector can emit.
var EventKinds = []EventKind{
	EventStrike,
	EventBounce,
	EventAudioBounce,
	EventStrikerSideChange,
	EventTableSideChange,
	EventNearlyOutOfFrame,
	EventBallDroppedSideways,
	EventBallMovingIntoNet,
	EventDetectionTimeout,
}

// Event is emitted by the detector and consumed by the referee.
// Side is meaningful for bounce, side change and out-of-frame events.
// Track and Detection are set for events derived from video.
type Event struct {
	Kind      EventKind
	Time      time.Time
	Side      Side
	Track     *Track
	Detection Detection
}
