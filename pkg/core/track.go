// pkg/core/track.go
package core

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

// NoPredecessor marks the first detection of a track.
const NoPredecessor = -1

// RawDetection is one object observed by the upstream detector in a single frame.
// Coordinates are image pixels.
type RawDetection struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Radius   float64 `json:"radius"`
	Velocity float64 `json:"velocity,omitempty"` // px/s, 0 lets the tracker estimate it
}

// Detection is a RawDetection after it has been assigned to a Track.
type Detection struct {
	ID       uint64
	CenterX  float64
	CenterY  float64
	CenterZ  float64 // estimated distance from the camera in mm
	Radius   float64
	Velocity float64
	Time     time.Time

	DirectionX Direction
	DirectionY Direction
	Directed   bool // directions are set once and then frozen
	IsBounce   bool

	// Predecessor is the arena index of the previous detection in the
	// owning track, or NoPredecessor.
	Predecessor int
}

// HasPredecessor reports whether d is linked to an earlier detection.
func (d Detection) HasPredecessor() bool {
	return d.Predecessor != NoPredecessor
}

// Track is the detection history of one candidate object.
// All methods are safe for concurrent use and return copies.
type Track struct {
	mu sync.RWMutex

	id         uuid.UUID
	detections []Detection

	crossed   bool
	crossedAt time.Time

	striker    Side
	hasStriker bool
}

// NewTrack creates an empty track with a fresh ID.
func NewTrack() *Track {
	return &Track{id: uuid.New()}
}

func (t *Track) ID() uuid.UUID {
	return t.id
}

// Append adds d as the newest detection and links it to the previous newest.
// The stored copy is returned.
func (t *Track) Append(d Detection) Detection {
	t.mu.Lock()
	defer t.mu.Unlock()

	d.Predecessor = len(t.detections) - 1
	t.detections = append(t.detections, d)
	return d
}

func (t *Track) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.detections)
}

// Latest returns the newest detection.
func (t *Track) Latest() (Detection, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.detections) == 0 {
		return Detection{}, false
	}
	return t.detections[len(t.detections)-1], true
}

// At returns the detection at arena index i.
func (t *Track) At(i int) (Detection, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.detections) {
		return Detection{}, false
	}
	return t.detections[i], true
}

// Predecessor returns the detection d links back to.
func (t *Track) Predecessor(d Detection) (Detection, bool) {
	if !d.HasPredecessor() {
		return Detection{}, false
	}
	return t.At(d.Predecessor)
}

// Find returns the detection with the given ID.
func (t *Track) Find(id uint64) (Detection, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.indexOf(id)
	if !ok {
		return Detection{}, false
	}
	return t.detections[i], true
}

// Detections returns a copy of the whole history, oldest first.
func (t *Track) Detections() []Detection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.detections)
}

// SetDirections stores the derived directions of detection id.
// It is a no-op once the directions were set, and returns the stored detection.
func (t *Track) SetDirections(id uint64, dirX, dirY Direction) (Detection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.indexOf(id)
	if !ok {
		return Detection{}, false
	}
	d := &t.detections[i]
	if !d.Directed {
		d.DirectionX = dirX
		d.DirectionY = dirY
		d.Directed = true
	}
	return *d, true
}

// SetCenterZ stores the estimated z of detection id.
func (t *Track) SetCenterZ(id uint64, z float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.indexOf(id)
	if !ok {
		return false
	}
	t.detections[i].CenterZ = z
	return true
}

// MarkBounce flags detection id as the bounce point.
func (t *Track) MarkBounce(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.indexOf(id)
	if !ok {
		return false
	}
	t.detections[i].IsBounce = true
	return true
}

// MarkCrossed sets the table-crossed latch. The first call wins.
func (t *Track) MarkCrossed(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.crossed {
		return
	}
	t.crossed = true
	t.crossedAt = at
}

// HasCrossed reports whether the track was ever seen over the table.
func (t *Track) HasCrossed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.crossed
}

// CrossedAt returns when the table-crossed latch was set.
func (t *Track) CrossedAt() (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.crossedAt, t.crossed
}

func (t *Track) SetStriker(s Side) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.striker = s
	t.hasStriker = true
}

// Striker returns the side last associated with a strike on this track.
func (t *Track) Striker() (Side, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.striker, t.hasStriker
}

// FirstSeen returns the time of the oldest detection.
func (t *Track) FirstSeen() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.detections) == 0 {
		return time.Time{}
	}
	return t.detections[0].Time
}

// LastSeen returns the time of the newest detection.
func (t *Track) LastSeen() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.detections) == 0 {
		return time.Time{}
	}
	return t.detections[len(t.detections)-1].Time
}

// AvgVelocity is the mean velocity over the whole history.
func (t *Track) AvgVelocity() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.detections) == 0 {
		return 0
	}
	v := make([]float64, len(t.detections))
	for i, d := range t.detections {
		v[i] = d.Velocity
	}
	return stat.Mean(v, nil)
}

// indexOf relies on IDs increasing along the arena. Caller holds the lock.
func (t *Track) indexOf(id uint64) (int, bool) {
	return slices.BinarySearchFunc(t.detections, id, func(d Detection, target uint64) int {
		switch {
		case d.ID < target:
			return -1
		case d.ID > target:
			return 1
		default:
			return 0
		}
	})
}
