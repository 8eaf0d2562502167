package streaming

import (
	"encoding/json"

	"github.com/m3ts/referee/pkg/core"
)

// Message type constants matching the display protocol.
const (
	TypeStartMatch     = "start_match"
	TypeEndMatch       = "end_match"
	TypePoint          = "point"
	TypeScore          = "score"
	TypeGameStart      = "game_start"
	TypeGameWin        = "game_win"
	TypeMatchWin       = "match_win"
	TypeReadyToServe   = "ready_to_serve"
	TypeInvalidServe   = "invalid_serve"
	TypeWaitForGesture = "wait_for_gesture"
	TypeEvent          = "event"
	TypeAck            = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always TypeAck
	For  string `json:"for"`  // the message type being acknowledged
}

// MatchPayload carries the match description for start_match and end_match.
type MatchPayload struct {
	Match *core.Match `json:"match"`
}

// PointPayload is one decided point. Traces are left out, the display only
// needs the decision.
type PointPayload struct {
	Game       int               `json:"game"`
	Kind       core.DecisionKind `json:"kind"`
	Reason     string            `json:"reason"`
	Winner     core.Side         `json:"winner"`
	ScoreLeft  int               `json:"scoreLeft"`
	ScoreRight int               `json:"scoreRight"`
	Server     core.Side         `json:"server"`
	DurationMs int64             `json:"durationMs"`
}

// ScorePayload is sent whenever a score changes.
type ScorePayload struct {
	Scorer core.Side `json:"scorer"`
	Score  int       `json:"score"`
	Server core.Side `json:"server"`
}

// SidePayload names one player, for serve prompts and wins.
type SidePayload struct {
	Side core.Side `json:"side"`
}

// GameStartPayload announces a new game.
type GameStartPayload struct {
	Game        int       `json:"game"`
	FirstServer core.Side `json:"firstServer"`
}

// MatchWinPayload announces the end of the match.
type MatchWinPayload struct {
	Winner     core.Side `json:"winner"`
	GamesLeft  int       `json:"gamesLeft"`
	GamesRight int       `json:"gamesRight"`
}

// EventPayload is one detector event, shown live as the ball moves.
type EventPayload struct {
	Kind   core.EventKind `json:"kind"`
	Side   core.Side      `json:"side"`
	X      float64        `json:"x"`
	Y      float64        `json:"y"`
	TimeMs int64          `json:"timeMs"`
}

// NewEventPayload builds the display form of e.
func NewEventPayload(e core.Event) EventPayload {
	return EventPayload{
		Kind:   e.Kind,
		Side:   e.Side,
		X:      e.Detection.CenterX,
		Y:      e.Detection.CenterY,
		TimeMs: e.Time.UnixMilli(),
	}
}

// NewPointPayload builds the display form of rec.
func NewPointPayload(rec *core.PointRecord) PointPayload {
	return PointPayload{
		Game:       rec.Game,
		Kind:       rec.Kind,
		Reason:     rec.Reason,
		Winner:     rec.Winner,
		ScoreLeft:  rec.ScoreLeft,
		ScoreRight: rec.ScoreRight,
		Server:     rec.Server,
		DurationMs: rec.Duration.Milliseconds(),
	}
}
