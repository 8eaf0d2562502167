// Package referee turns detector events into point decisions.
package referee

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/m3ts/referee/pkg/core"
)

// DefaultOutOfFrameDelay is how long the ball may stay out of view before
// the point is decided.
const DefaultOutOfFrameDelay = 1500 * time.Millisecond

const subscriberName = "referee"

// Game keeps the score. Implemented by match.Game and match.Match.
type Game interface {
	OnPoint(side core.Side)
	OnPointDeduction(side core.Side)
	Server() core.Side
	Score(side core.Side) int
}

// Notifier is the display side of the referee.
type Notifier interface {
	ReadyToServe(server core.Side)
	InvalidServe()
	WaitForGesture(server core.Side)
}

// StatsSink receives one record per decided point.
type StatsSink interface {
	RecordPoint(rec core.PointRecord)
}

// EventSource delivers detector events. The referee detaches from it while paused.
type EventSource interface {
	Subscribe(subscriber string, h func(core.Event) error, kinds ...core.EventKind)
	Unsubscribe(subscriber string)
}

// Config holds the referee options.
type Config struct {
	OutOfFrameDelay time.Duration
	// UseGesture makes the referee wait for a ready-to-serve gesture after every point.
	UseGesture bool
}

// Dependencies holds all collaborators of the referee. Notifier and Stats may be nil.
type Dependencies struct {
	Game     Game
	Notifier Notifier
	Stats    StatsSink
	Source   EventSource
	Logger   *slog.Logger
	Now      func() time.Time
}

// Snapshot is a copy of the referee's point state.
type Snapshot struct {
	State        State
	Striker      core.Side
	BallSide     core.Side
	Bounces      int
	AudioBounces int
	Strikes      int
	IntoNet      bool
	LastReason   string
	LastWinner   core.Side
}

// Referee is the per-game state machine.
type Referee struct {
	deps Dependencies
	cfg  Config

	decisions metric.Int64Counter

	mu           sync.Mutex
	state        State
	striker      core.Side
	ballSide     core.Side
	bounces      int
	audioBounces int
	strikes      int
	intoNet      bool
	lastReason   string
	lastWinner   core.Side
	pointStart   time.Time
	tracks       []*core.Track
	subscribed   bool
	timer        *time.Timer
	timerGen     uint64
}

// New creates a referee waiting for the first serve. Call Start to attach it
// to the event source.
func New(deps Dependencies, cfg Config) (*Referee, error) {
	if cfg.OutOfFrameDelay <= 0 {
		cfg.OutOfFrameDelay = DefaultOutOfFrameDelay
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	decisions, err := meter().Int64Counter(
		"referee.decisions",
		metric.WithDescription("Points decided by the referee"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating decisions counter: %w", err)
	}

	server := deps.Game.Server()
	return &Referee{
		deps:       deps,
		cfg:        cfg,
		decisions:  decisions,
		state:      StateWaitForServe,
		striker:    server,
		ballSide:   server,
		pointStart: deps.Now(),
	}, nil
}

// Start subscribes the referee to its event source.
func (r *Referee) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribe()
}

// Stop detaches the referee and cancels its timer.
func (r *Referee) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelTimer()
	r.unsubscribe()
}

// DeactivateReadyToServeGesture makes points restart without a gesture.
func (r *Referee) DeactivateReadyToServeGesture() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.UseGesture = false
}

// Snapshot returns the current point state.
func (r *Referee) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		State:        r.state,
		Striker:      r.striker,
		BallSide:     r.ballSide,
		Bounces:      r.bounces,
		AudioBounces: r.audioBounces,
		Strikes:      r.strikes,
		IntoNet:      r.intoNet,
		LastReason:   r.lastReason,
		LastWinner:   r.lastWinner,
	}
}

// State returns the current state.
func (r *Referee) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Handle processes one detector event.
func (r *Referee) Handle(e core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.subscribed {
		return nil
	}

	switch e.Kind {
	case core.EventStrike:
		r.onStrike(e)
	case core.EventBounce:
		r.onBounce(e.Side)
	case core.EventAudioBounce:
		r.onAudioBounce(e.Side)
	case core.EventStrikerSideChange:
		r.onStrikerSideChange(e.Side)
	case core.EventTableSideChange:
		r.onTableSideChange(e.Side)
	case core.EventNearlyOutOfFrame:
		if r.state == StatePlay && e.Side != core.SideTop {
			r.outOfFrame()
		}
	case core.EventBallDroppedSideways:
		r.onBallDroppedSideways()
	case core.EventBallMovingIntoNet:
		if r.state == StatePlay || r.state == StateServing {
			r.intoNet = true
		}
	case core.EventDetectionTimeout:
		if r.state == StatePlay ||
			(r.state == StateServing && (r.bounces > 0 || r.audioBounces > 0 || r.intoNet)) {
			r.outOfFrame()
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}

// OnPointAddition is a manual correction giving side a point.
func (r *Referee) OnPointAddition(side core.Side) {
	r.mu.Lock()
	defer r.mu.Unlock()
	server := r.deps.Game.Server()
	r.deps.Game.OnPoint(side)
	r.conclude(core.DecisionManualAdd, side, ReasonPointAddition, server)
}

// OnPointDeduction is a manual correction taking a point from side.
func (r *Referee) OnPointDeduction(side core.Side) {
	r.mu.Lock()
	defer r.mu.Unlock()
	server := r.deps.Game.Server()
	r.deps.Game.OnPointDeduction(side)
	r.conclude(core.DecisionDeduction, side, ReasonPointDeduction, server)
}

// Pause stops the referee: timers are cancelled and events are no longer received.
func (r *Referee) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StatePause
	r.cancelTimer()
	r.unsubscribe()
}

// Resume prepares the next serve and reattaches the referee to its events.
func (r *Referee) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waitForServe()
	if r.cfg.UseGesture && r.deps.Notifier != nil {
		r.deps.Notifier.ReadyToServe(r.deps.Game.Server())
	}
	r.pointStart = r.deps.Now()
	r.subscribe()
}

// OnGestureDetected is called when the server shows the ready-to-serve gesture.
func (r *Referee) OnGestureDetected() {
	r.Resume()
}

func (r *Referee) onStrike(e core.Event) {
	switch r.state {
	case StateWaitForServe:
		server := r.deps.Game.Server()
		d := e.Detection
		serveDir := core.MovingRight
		if server == core.SideRight {
			serveDir = core.MovingLeft
		}
		if d.HasPredecessor() && r.ballSide == server && d.DirectionX == serveDir {
			r.state = StateServing
			r.ballSide = server
			r.striker = server
		}
	case StateOutOfFrame:
		// the ball came back in time
		r.cancelTimer()
		r.state = StatePlay
	}

	if r.state != StatePause && e.Track != nil {
		e.Track.SetStriker(r.striker)
		if !slices.Contains(r.tracks, e.Track) {
			r.tracks = append(r.tracks, e.Track)
		}
	}
}

func (r *Referee) onBounce(side core.Side) {
	if side != r.ballSide {
		return
	}
	switch r.state {
	case StateServing:
		r.bounces++
		if r.bounces > 1 && r.ballSide == r.deps.Game.Server() {
			r.fault(r.deps.Game.Server(), ReasonServerDoubleBounce)
		}
	case StatePlay:
		r.bounces++
		switch {
		case r.bounces == 1 && r.striker == r.ballSide:
			r.fault(r.striker, ReasonBounceOnStrikerSide)
		case r.bounces >= 2 && r.striker != r.ballSide:
			r.point(r.striker, ReasonMultipleBounces)
		}
	}
}

func (r *Referee) onAudioBounce(side core.Side) {
	if (r.state == StateServing || r.state == StatePlay) && side == r.ballSide {
		r.audioBounces++
		r.deps.Logger.Debug("audio bounce", "side", side.String(), "state", r.state.String())
	}
}

func (r *Referee) onStrikerSideChange(side core.Side) {
	switch r.state {
	case StatePlay:
		// a ball sent back by the net keeps its striker
		if r.ballSide == side {
			r.bounces = 0
			r.audioBounces = 0
			r.striker = side
			r.strikes++
		}
	case StateServing:
		if side != r.deps.Game.Server() {
			r.bounces = 0
			r.audioBounces = 0
		}
		if r.ballSide == side {
			r.striker = side
		}
	case StatePause:
		if side == r.deps.Game.Server() && r.deps.Notifier != nil {
			r.deps.Notifier.InvalidServe()
		}
		r.striker = side
	default:
		r.striker = side
	}
}

func (r *Referee) onTableSideChange(side core.Side) {
	r.striker = side.Opposite()
	r.ballSide = side
	r.intoNet = false
	switch r.state {
	case StateServing:
		if r.deps.Game.Server() != side {
			r.deps.Logger.Debug("serve crossed the net", "side", side.String())
			r.state = StatePlay
		}
		r.bounces = 0
		r.audioBounces = 0
	case StatePlay:
		r.bounces = 0
		r.audioBounces = 0
	}
}

func (r *Referee) onBallDroppedSideways() {
	if r.state != StatePlay {
		return
	}
	switch r.bounces {
	case 0:
		r.fault(r.striker, ReasonDroppedNoBounce)
	case 1:
		r.point(r.striker, ReasonDroppedAfterBounce)
	}
}

// outOfFrame (re)starts the out-of-frame timer. At most one timer is pending.
func (r *Referee) outOfFrame() {
	r.cancelTimer()
	r.timerGen++
	gen := r.timerGen
	r.timer = time.AfterFunc(r.cfg.OutOfFrameDelay, func() {
		r.onOutOfFrameForTooLong(gen)
	})
	r.state = StateOutOfFrame
}

func (r *Referee) onOutOfFrameForTooLong(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.timerGen || r.state != StateOutOfFrame {
		return
	}
	r.timer = nil

	switch {
	case r.ballSide == r.striker:
		reason := ReasonOutOfFrameNet
		if r.intoNet {
			reason = ReasonOutOfFrameIntoNet
		}
		r.fault(r.striker, reason)
	case r.bounces >= 1 && r.audioBounces >= 1:
		r.point(r.striker, ReasonOutOfFrameAudioAndVideo)
	case r.bounces >= 1:
		r.point(r.striker, ReasonOutOfFrameVideoOnly)
	case r.audioBounces >= 1:
		r.point(r.striker, ReasonOutOfFrameAudioOnly)
	default:
		r.fault(r.striker, ReasonOutOfFrameNoBounce)
	}
}

func (r *Referee) point(side core.Side, reason string) {
	server := r.deps.Game.Server()
	r.deps.Game.OnPoint(side)
	r.conclude(core.DecisionPoint, side, reason, server)
}

func (r *Referee) fault(side core.Side, reason string) {
	server := r.deps.Game.Server()
	r.deps.Game.OnPoint(side.Opposite())
	r.conclude(core.DecisionFault, side.Opposite(), reason, server)
}

// conclude records the decision and prepares the next point.
func (r *Referee) conclude(kind core.DecisionKind, winner core.Side, reason string, server core.Side) {
	now := r.deps.Now()
	r.lastReason = reason
	r.lastWinner = winner

	rec := core.PointRecord{
		Kind:        kind,
		Reason:      reason,
		Winner:      winner,
		ScoreLeft:   r.deps.Game.Score(core.SideLeft),
		ScoreRight:  r.deps.Game.Score(core.SideRight),
		Strikes:     r.strikes,
		Bounces:     r.bounces,
		AudioBounce: r.audioBounces,
		BallSide:    r.ballSide,
		Striker:     r.striker,
		Server:      server,
		Duration:    now.Sub(r.pointStart),
		DecidedAt:   now,
	}
	for _, t := range r.tracks {
		rec.Traces = append(rec.Traces, core.NewTrackTrace(t, r.pointStart))
	}

	r.deps.Logger.Info("point decided",
		"kind", string(kind),
		"winner", winner.String(),
		"reason", reason,
		"score_left", rec.ScoreLeft,
		"score_right", rec.ScoreRight)
	r.decisions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("winner", winner.String()),
	))
	if r.deps.Stats != nil {
		r.deps.Stats.RecordPoint(rec)
	}

	r.strikes = 0
	r.tracks = nil
	r.pointStart = now
	r.initPoint()
}

func (r *Referee) initPoint() {
	r.bounces = 0
	r.audioBounces = 0
	r.intoNet = false
	r.cancelTimer()
	r.initState()
}

func (r *Referee) initState() {
	if r.cfg.UseGesture {
		r.state = StatePause
		if r.deps.Notifier != nil {
			r.deps.Notifier.WaitForGesture(r.deps.Game.Server())
		}
		return
	}
	r.waitForServe()
}

// waitForServe hands the ball to the server.
func (r *Referee) waitForServe() {
	server := r.deps.Game.Server()
	r.state = StateWaitForServe
	r.ballSide = server
	r.striker = server.Opposite()
}

func (r *Referee) cancelTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	// a callback already past Stop sees a new generation and does nothing
	r.timerGen++
}

func (r *Referee) subscribe() {
	if r.subscribed {
		return
	}
	r.subscribed = true
	r.deps.Source.Subscribe(subscriberName, r.Handle)
}

func (r *Referee) unsubscribe() {
	if !r.subscribed {
		return
	}
	r.subscribed = false
	r.deps.Source.Unsubscribe(subscriberName)
}
