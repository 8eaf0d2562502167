// Package detector turns tracked ball positions into table tennis events.
package detector

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3ts/referee/internal/selection"
	"github.com/m3ts/referee/internal/table"
	"github.com/m3ts/referee/pkg/core"
)

// Defaults for Config.
const (
	DefaultTimeout         = 1500 * time.Millisecond
	DefaultAudioWindow     = 30 * time.Millisecond
	DefaultOutOfFrameRatio = 0.07
)

// Tracker builds tracks out of raw detections.
type Tracker interface {
	AddDetections(raw []core.RawDetection, ts time.Time)
	Tracks() []*core.Track
	Clear()
}

// ZEstimator estimates ball depth from its apparent radius.
type ZEstimator interface {
	IsOnTable(radius float64) bool
	ZPositionMm(radius float64) float64
}

// Publisher receives the emitted events, in order.
type Publisher interface {
	Dispatch(e core.Event) error
}

// Config holds the frame size and timing of the detector.
type Config struct {
	FrameWidth      float64
	FrameHeight     float64
	Timeout         time.Duration
	AudioWindow     time.Duration
	OutOfFrameRatio float64
}

// Dependencies holds all collaborators of the detector
type Dependencies struct {
	Tracker   Tracker
	Table     *table.Table
	ZPos      ZEstimator
	Selection selection.Strategy
	Publisher Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

// rallyLeg holds the one-shot checks of the current leg of a rally, i.e.
// between two table side changes.
type rallyLeg struct {
	strikerChange bool // a striker side change may still be reported
	intoNet       bool // an into-net trajectory may still be reported
}

func newRallyLeg() rallyLeg {
	return rallyLeg{strikerChange: true, intoNet: true}
}

// consumeStrikerChange disarms the striker check and arms the into-net check.
func (l *rallyLeg) consumeStrikerChange() {
	l.strikerChange = false
	l.intoNet = true
}

// Detector is the per-match event detector.
type Detector struct {
	deps       Dependencies
	cfg        Config
	thresholds [4]float64 // left, right, top, bottom

	mu sync.Mutex

	prev          selection.Previous
	prevDetection core.Detection
	prevTrack     *core.Track
	hasPrev       bool
	offNetSide    core.Side // table half of the last detection not exactly above the net
	hasOffNet     bool
	currentTrack  *core.Track
	detections    uint64
	leg           rallyLeg
	timer         *time.Timer
	closed        bool
}

// New creates a detector. Zero Config fields take their defaults.
func New(deps Dependencies, cfg Config) *Detector {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.AudioWindow <= 0 {
		cfg.AudioWindow = DefaultAudioWindow
	}
	if cfg.OutOfFrameRatio <= 0 {
		cfg.OutOfFrameRatio = DefaultOutOfFrameRatio
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Selection == nil {
		deps.Selection = selection.Default(deps.Table.MmPerPixel())
	}

	return &Detector{
		deps: deps,
		cfg:  cfg,
		thresholds: [4]float64{
			cfg.FrameWidth * cfg.OutOfFrameRatio,
			cfg.FrameWidth * (1 - cfg.OutOfFrameRatio),
			cfg.FrameHeight * cfg.OutOfFrameRatio,
			cfg.FrameHeight * (1 - cfg.OutOfFrameRatio),
		},
		leg: newRallyLeg(),
	}
}

// OnObjectsDetected processes the detections of one frame.
func (d *Detector) OnObjectsDetected(raw []core.RawDetection, ts time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	d.deps.Tracker.AddDetections(raw, ts)
	tracks := d.deps.Tracker.Tracks()
	if len(tracks) == 0 {
		return
	}

	for _, t := range tracks {
		d.prepare(t)
	}

	track := d.deps.Selection.SelectTrack(tracks, d.prev)
	if track == nil {
		return
	}
	d.currentTrack = track

	latest, ok := track.Latest()
	if !ok || (d.hasPrev && latest.ID == d.prevDetection.ID) {
		return
	}

	d.detections++
	if latest.DirectionX != core.None || latest.DirectionY != core.None {
		d.derive(track, latest)
	} else {
		d.deps.Logger.Debug("no direction change", "detection", latest.ID)
	}

	d.remember(track, latest)
	d.armTimeout(d.detections)
}

// OnAudioBounce is called when the microphone hears a bounce at ts.
func (d *Detector) OnAudioBounce(ts time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.currentTrack == nil || !d.hasPrev {
		return
	}

	gap := ts.Sub(d.currentTrack.LastSeen())
	if gap < 0 {
		gap = -gap
	}
	if gap >= d.cfg.AudioWindow {
		d.deps.Logger.Debug("audio bounce outside window", "gap", gap)
		return
	}

	d.publish(core.Event{
		Kind:      core.EventAudioBounce,
		Time:      ts,
		Side:      d.deps.Table.HorizontalSide(d.prev.CenterX),
		Track:     d.currentTrack,
		Detection: d.prevDetection,
	})
}

// ResetLeg re-arms the one-shot checks, e.g. before a new serve.
// It must not be called from an event handler.
func (d *Detector) ResetLeg() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leg = newRallyLeg()
}

// CurrentTrack returns the track last selected as the ball.
func (d *Detector) CurrentTrack() *core.Track {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentTrack
}

// DetectionCount is the number of distinct ball detections processed.
func (d *Detector) DetectionCount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detections
}

// Close stops the timeout timer and drops all tracks. Later input is ignored.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.deps.Tracker.Clear()
}

// prepare derives the directions and depth of a track's newest detection and
// sets its table-crossed latch.
func (d *Detector) prepare(t *core.Track) {
	latest, ok := t.Latest()
	if !ok {
		return
	}

	if !latest.Directed {
		fromX, fromY, has := d.prev.CenterX, d.prev.CenterY, d.hasPrev
		if p, ok := t.Predecessor(latest); ok {
			fromX, fromY, has = p.CenterX, p.CenterY, true
		}
		dirX, dirY := core.None, core.None
		if has {
			dirX = core.DirectionOf(fromX, latest.CenterX)
			dirY = core.DirectionOf(fromY, latest.CenterY)
		}
		t.SetDirections(latest.ID, dirX, dirY)
		t.SetCenterZ(latest.ID, d.deps.ZPos.ZPositionMm(latest.Radius))
	}

	if d.deps.Table.IsOnOrAbove(latest.CenterX, latest.CenterY) && d.deps.ZPos.IsOnTable(latest.Radius) {
		t.MarkCrossed(latest.Time)
	}
}

func (d *Detector) derive(track *core.Track, cur core.Detection) {
	tbl := d.deps.Table
	net := tbl.NetBottom()
	pred, hasPred := track.Predecessor(cur)

	d.publish(core.Event{Kind: core.EventStrike, Time: cur.Time, Track: track, Detection: cur})

	if cur.CenterX != net.X {
		if side := tbl.HorizontalSide(cur.CenterX); d.hasOffNet && side != d.offNetSide {
			d.tableSideChange(track, cur, side)
		}
	}

	if hasPred && pred.Directed && pred.DirectionY == core.MovingDown &&
		cur.DirectionY == core.MovingDown && tbl.IsBelow(cur.CenterX, cur.CenterY) {
		d.publish(core.Event{Kind: core.EventBallDroppedSideways, Time: cur.Time, Track: track, Detection: cur})
	}

	strikerChanged := false
	if cur.DirectionX != d.prev.DirectionX {
		if striker, ok := d.strikerFor(cur); ok && d.leg.strikerChange {
			d.leg.consumeStrikerChange()
			track.SetStriker(striker)
			strikerChanged = true
			d.publish(core.Event{Kind: core.EventStrikerSideChange, Time: cur.Time, Side: striker, Track: track, Detection: cur})
		}
	}

	if cur.DirectionY != d.prev.DirectionY {
		if d.leg.intoNet && cur.DirectionY == core.MovingDown &&
			tbl.IsOnOrAbove(cur.CenterX, cur.CenterY) && approachingNet(cur, net.X) &&
			IntoNet(table.Point{X: d.prev.CenterX, Y: d.prev.CenterY}, table.Point{X: cur.CenterX, Y: cur.CenterY}, tbl) {
			d.leg.intoNet = false
			d.publish(core.Event{
				Kind:      core.EventBallMovingIntoNet,
				Time:      cur.Time,
				Side:      tbl.HorizontalSide(cur.CenterX),
				Track:     track,
				Detection: cur,
			})
		}

		if !strikerChanged && d.hasPrev &&
			cur.DirectionX == d.prev.DirectionX &&
			d.prev.DirectionY == core.MovingDown && cur.DirectionY == core.MovingUp &&
			(tbl.IsBounceOn(d.prev.CenterX, d.prev.CenterY) || tbl.IsBounceOn(cur.CenterX, cur.CenterY)) {
			if d.prevTrack != nil {
				d.prevTrack.MarkBounce(d.prevDetection.ID)
			}
			bounced := d.prevDetection
			bounced.IsBounce = true
			d.publish(core.Event{
				Kind:      core.EventBounce,
				Time:      cur.Time,
				Side:      tbl.HorizontalSide(d.prev.CenterX),
				Track:     track,
				Detection: bounced,
			})
		}
	}

	if hasPred {
		if side, ok := d.nearlyOutOfFrame(cur); ok {
			d.publish(core.Event{Kind: core.EventNearlyOutOfFrame, Time: cur.Time, Side: side, Track: track, Detection: cur})
		}
	}
}

func (d *Detector) tableSideChange(track *core.Track, cur core.Detection, side core.Side) {
	d.leg = newRallyLeg()
	d.publish(core.Event{Kind: core.EventTableSideChange, Time: cur.Time, Side: side, Track: track, Detection: cur})
}

// strikerFor returns the striker implied by a horizontal direction change,
// provided the ball is still on the striker's half heading for the net.
func (d *Detector) strikerFor(cur core.Detection) (core.Side, bool) {
	striker, ok := core.StrikerForDirection(cur.DirectionX)
	if !ok {
		return striker, false
	}
	if d.deps.Table.HorizontalSide(cur.CenterX) != striker {
		return striker, false
	}
	return striker, true
}

func approachingNet(cur core.Detection, netX float64) bool {
	return (cur.CenterX < netX && cur.DirectionX == core.MovingRight) ||
		(cur.CenterX > netX && cur.DirectionX == core.MovingLeft)
}

func (d *Detector) nearlyOutOfFrame(cur core.Detection) (core.Side, bool) {
	switch {
	case cur.CenterX < d.thresholds[0] && cur.DirectionX == core.MovingLeft:
		return core.SideLeft, true
	case cur.CenterX > d.thresholds[1] && cur.DirectionX == core.MovingRight:
		return core.SideRight, true
	case cur.CenterY < d.thresholds[2] && cur.DirectionY == core.MovingUp:
		return core.SideTop, true
	case cur.CenterY > d.thresholds[3] && cur.DirectionY == core.MovingDown:
		return core.SideBottom, true
	}
	return core.SideLeft, false
}

func (d *Detector) remember(track *core.Track, cur core.Detection) {
	if d.hasPrev && cur.ID == d.prevDetection.ID {
		return
	}
	d.prev = selection.Previous{
		DirectionX: cur.DirectionX,
		DirectionY: cur.DirectionY,
		CenterX:    cur.CenterX,
		CenterY:    cur.CenterY,
	}
	d.prevDetection = cur
	d.prevTrack = track
	d.hasPrev = true
	if cur.CenterX != d.deps.Table.NetBottom().X {
		d.offNetSide = d.deps.Table.HorizontalSide(cur.CenterX)
		d.hasOffNet = true
	}
}

// armTimeout replaces the pending timeout. A timer that fires after a newer
// detection arrived does nothing.
func (d *Detector) armTimeout(counter uint64) {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.cfg.Timeout, func() {
		d.onTimeout(counter)
	})
}

func (d *Detector) onTimeout(counter uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || counter != d.detections {
		return
	}
	d.leg = newRallyLeg()
	d.publish(core.Event{Kind: core.EventDetectionTimeout, Time: d.deps.Now()})
}

// publish must be called with d.mu held.
func (d *Detector) publish(e core.Event) {
	if err := d.deps.Publisher.Dispatch(e); err != nil {
		d.deps.Logger.Error("event handler failed", "event", string(e.Kind), "error", err)
	}
}
