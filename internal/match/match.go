package match

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3ts/referee/pkg/core"
)

// Type is the number of games a match is played over.
type Type int

const (
	BestOf1 Type = 1
	BestOf3 Type = 3
	BestOf5 Type = 5
	BestOf7 Type = 7
)

// ParseType accepts 1, 3, 5 or 7.
func ParseType(n int) (Type, error) {
	switch Type(n) {
	case BestOf1, BestOf3, BestOf5, BestOf7:
		return Type(n), nil
	}
	return 0, fmt.Errorf("unsupported match type best of %d", n)
}

// Config describes a match.
type Config struct {
	Type        Type
	GameLength  GameLength
	ServeRule   ServeRule
	FirstServer core.Side
	PlayerLeft  string
	PlayerRight string
}

// MatchObserver is told about scores, game wins and the end of the match.
type MatchObserver interface {
	Observer
	OnGameStart(game int, firstServer core.Side)
	OnMatchWin(winner core.Side, gamesLeft, gamesRight int)
}

// Match plays its games one after another. It forwards points to the
// current game and starts the next one once a game is won, with the other
// player serving first.
type Match struct {
	mu       sync.Mutex
	cfg      Config
	info     core.Match
	observer MatchObserver
	game     *Game
	number   int
	wins     map[core.Side]int
	finished bool
}

// NewMatch starts a match and its first game. observer may be nil.
func NewMatch(cfg Config, observer MatchObserver) *Match {
	if cfg.Type == 0 {
		cfg.Type = BestOf1
	}
	if cfg.GameLength == 0 {
		cfg.GameLength = Game11
	}
	if cfg.ServeRule == 0 {
		cfg.ServeRule = Serve2
	}

	m := &Match{
		cfg:      cfg,
		observer: observer,
		wins:     map[core.Side]int{},
		info: core.Match{
			ID:          uuid.New(),
			PlayerLeft:  cfg.PlayerLeft,
			PlayerRight: cfg.PlayerRight,
			StartTime:   time.Now(),
			FirstServer: cfg.FirstServer,
			GameLength:  int(cfg.GameLength),
		},
	}
	m.startGame(cfg.FirstServer)
	return m
}

// Info returns a snapshot of the match description.
func (m *Match) Info() core.Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := m.info
	info.GamesLeft = m.wins[core.SideLeft]
	info.GamesRight = m.wins[core.SideRight]
	return info
}

// GameNumber is the 1-based number of the current game.
func (m *Match) GameNumber() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.number
}

// Finished reports whether the match has a winner.
func (m *Match) Finished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished
}

// OnPoint awards a point in the current game.
func (m *Match) OnPoint(side core.Side) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return
	}

	m.game.OnPoint(side)
	winner, won := m.game.Winner()
	if !won {
		return
	}

	m.wins[winner]++
	if m.wins[winner] > int(m.cfg.Type)/2 {
		m.finished = true
		m.info.EndTime = time.Now()
		if m.observer != nil {
			m.observer.OnMatchWin(winner, m.wins[core.SideLeft], m.wins[core.SideRight])
		}
		return
	}
	m.startGame(m.firstServerOf(m.number + 1))
}

// OnPointDeduction takes a point back in the current game.
func (m *Match) OnPointDeduction(side core.Side) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return
	}
	m.game.OnPointDeduction(side)
}

// Server returns who serves next in the current game.
func (m *Match) Server() core.Side {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.game.Server()
}

// Score returns the points of side in the current game.
func (m *Match) Score(side core.Side) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.game.Score(side)
}

// Games returns the games won by side.
func (m *Match) Games(side core.Side) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wins[side]
}

func (m *Match) firstServerOf(game int) core.Side {
	if game%2 == 0 {
		return m.cfg.FirstServer.Opposite()
	}
	return m.cfg.FirstServer
}

func (m *Match) startGame(first core.Side) {
	m.number++
	var obs Observer
	if m.observer != nil {
		obs = m.observer
	}
	m.game = NewGame(m.cfg.GameLength, m.cfg.ServeRule, first, obs)
	if m.observer != nil {
		m.observer.OnGameStart(m.number, first)
	}
}
