package match

import (
	"fmt"
	"sync"

	"github.com/m3ts/referee/pkg/core"
)

// GameLength is the number of points needed to win a game.
type GameLength int

const (
	Game11 GameLength = 11
	Game21 GameLength = 21
)

// ServeRule is the number of consecutive serves per player.
type ServeRule int

const (
	Serve2 ServeRule = 2
	Serve5 ServeRule = 5
)

// ParseGameLength accepts 11 or 21.
func ParseGameLength(n int) (GameLength, error) {
	switch GameLength(n) {
	case Game11, Game21:
		return GameLength(n), nil
	}
	return 0, fmt.Errorf("unsupported game length %d", n)
}

// ParseServeRule accepts 2 or 5.
func ParseServeRule(n int) (ServeRule, error) {
	switch ServeRule(n) {
	case Serve2, Serve5:
		return ServeRule(n), nil
	}
	return 0, fmt.Errorf("unsupported serve rule %d", n)
}

// Observer is told about every score change of a game.
type Observer interface {
	OnScore(scorer core.Side, score int, server core.Side)
	OnWin(winner core.Side)
}

// Game is one game of a match.
type Game struct {
	mu       sync.Mutex
	length   GameLength
	serves   ServeRule
	server   core.Side
	scores   *ScoreManager
	observer Observer
	winner   core.Side
	finished bool
}

// NewGame starts a game served first by first. observer may be nil.
func NewGame(length GameLength, serves ServeRule, first core.Side, observer Observer) *Game {
	return &Game{
		length:   length,
		serves:   serves,
		server:   first,
		scores:   NewScoreManager(first),
		observer: observer,
	}
}

// OnPoint awards a point to side.
func (g *Game) OnPoint(side core.Side) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.finished {
		return
	}

	g.scores.Score(side, g.server)
	left, right := g.scores.Points(core.SideLeft), g.scores.Points(core.SideRight)
	if g.isDeuce(left, right) || (left+right)%int(g.serves) == 0 {
		g.server = g.server.Opposite()
	}
	score := g.scores.Points(side)
	if g.observer != nil {
		g.observer.OnScore(side, score, g.server)
	}

	if score >= int(g.length) && score-g.scores.Points(side.Opposite()) >= 2 {
		g.winner = side
		g.finished = true
		if g.observer != nil {
			g.observer.OnWin(side)
		}
	}
}

// OnPointDeduction takes a point from side, if it has any, and restores the
// server of that point.
func (g *Game) OnPointDeduction(side core.Side) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.finished || g.scores.Points(side) == 0 {
		return
	}

	g.server = g.scores.RevertLastScore(side)
	if g.observer != nil {
		g.observer.OnScore(side, g.scores.Points(side), g.server)
	}
}

// Server returns who serves the next point.
func (g *Game) Server() core.Side {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.server
}

// Score returns the points of side.
func (g *Game) Score(side core.Side) int {
	return g.scores.Points(side)
}

// Winner returns the winner once the game is over.
func (g *Game) Winner() (core.Side, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.winner, g.finished
}

func (g *Game) isDeuce(left, right int) bool {
	n := int(g.length) - 1
	return left >= n && right >= n
}
