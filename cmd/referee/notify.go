package main

import (
	"context"
	"log/slog"

	"github.com/m3ts/referee/internal/dispatcher"
	"github.com/m3ts/referee/pkg/core"
)

// displayQueue is the number of events the live view may lag behind.
const displayQueue = 256

// displayedEvents are the events drawn on the live ball view.
var displayedEvents = []core.EventKind{
	core.EventStrike,
	core.EventBounce,
	core.EventTableSideChange,
}

// eventDisplay is a backend with a live ball view.
type eventDisplay interface {
	OnEvent(e core.Event) error
}

// showEvents feeds the display from its own queue, so a slow scoreboard
// never holds up the detector.
func showEvents(bus *dispatcher.Dispatcher, display eventDisplay) {
	for _, kind := range displayedEvents {
		bus.Register("display", kind, display.OnEvent, dispatcher.Buffered(displayQueue))
	}
}

// logNotifier shows the referee's prompts in the log when no display is attached.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) ReadyToServe(server core.Side) {
	n.logger.Info("Ready to serve", "server", server.String())
}

func (n logNotifier) InvalidServe() {
	n.logger.Warn("Invalid serve")
}

func (n logNotifier) WaitForGesture(server core.Side) {
	n.logger.Info("Waiting for ready-to-serve gesture", "server", server.String())
}

// matchEnd stops the replay once the match has a winner.
type matchEnd struct {
	cancel context.CancelFunc
}

func (matchEnd) OnScore(core.Side, int, core.Side) {}
func (matchEnd) OnWin(core.Side) {}
func (matchEnd) OnGameStart(int, core.Side) {}

func (e matchEnd) OnMatchWin(core.Side, int, int) {
	e.cancel()
}
