// Package websocket streams match data and display prompts to a scoreboard
// server over a WebSocket connection.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/m3ts/referee/pkg/core"
	"github.com/m3ts/referee/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams match data over WebSocket to the scoreboard.
// Besides storage.Backend it implements the referee's Notifier and the
// match observer, so serve prompts and score changes reach the display too.
// OnEvent forwards detector events for the live ball view.
type Backend struct {
	link   *link
	cfg    Config
	logger *slog.Logger
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		link:   newLink(logger),
		cfg:    cfg,
		logger: logger,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.link.open(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.link.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.link.send(data)
	return nil
}

// notify is sendEnvelope for callers that cannot return an error.
func (b *Backend) notify(msgType string, payload any) {
	if err := b.sendEnvelope(msgType, payload); err != nil {
		b.logger.Error("Failed to send display message", "type", msgType, "error", err)
	}
}

// StartMatch announces the match and waits for the scoreboard's ack. The
// announcement is resent on every reconnect until EndMatch.
func (b *Backend) StartMatch(m *core.Match) error {
	data, err := marshalEnvelope(streaming.TypeStartMatch, streaming.MatchPayload{Match: m})
	if err != nil {
		return err
	}
	b.link.setHeader(data)
	b.link.send(data)
	return b.link.await(streaming.TypeStartMatch)
}

// EndMatch sends the final match state and waits for the scoreboard's ack.
func (b *Backend) EndMatch(m *core.Match) error {
	data, err := marshalEnvelope(streaming.TypeEndMatch, streaming.MatchPayload{Match: m})
	if err != nil {
		return err
	}
	defer b.link.setHeader(nil)
	b.link.send(data)
	return b.link.await(streaming.TypeEndMatch)
}

// RecordPoint sends the decision without its traces.
func (b *Backend) RecordPoint(rec *core.PointRecord) error {
	return b.sendEnvelope(streaming.TypePoint, streaming.NewPointPayload(rec))
}

// OnEvent shows a detector event on the live ball view.
func (b *Backend) OnEvent(e core.Event) error {
	return b.sendEnvelope(streaming.TypeEvent, streaming.NewEventPayload(e))
}

func (b *Backend) ReadyToServe(server core.Side) {
	b.notify(streaming.TypeReadyToServe, streaming.SidePayload{Side: server})
}

func (b *Backend) InvalidServe() {
	b.notify(streaming.TypeInvalidServe, struct{}{})
}

func (b *Backend) WaitForGesture(server core.Side) {
	b.notify(streaming.TypeWaitForGesture, streaming.SidePayload{Side: server})
}

func (b *Backend) OnScore(scorer core.Side, score int, server core.Side) {
	b.notify(streaming.TypeScore, streaming.ScorePayload{Scorer: scorer, Score: score, Server: server})
}

func (b *Backend) OnWin(winner core.Side) {
	b.notify(streaming.TypeGameWin, streaming.SidePayload{Side: winner})
}

func (b *Backend) OnGameStart(game int, firstServer core.Side) {
	b.notify(streaming.TypeGameStart, streaming.GameStartPayload{Game: game, FirstServer: firstServer})
}

func (b *Backend) OnMatchWin(winner core.Side, gamesLeft, gamesRight int) {
	b.notify(streaming.TypeMatchWin, streaming.MatchWinPayload{Winner: winner, GamesLeft: gamesLeft, GamesRight: gamesRight})
}
