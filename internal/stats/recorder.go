// Package stats collects the decided points of a match, grouped by game, and
// forwards them to a storage backend.
package stats

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/m3ts/referee/internal/storage"
	"github.com/m3ts/referee/pkg/core"
)

// Recorder receives one record per decided point from the referee.
//
// Attached as a match observer it also tracks the score of the game a point
// was decided in, so a game-winning point keeps its final score even though
// the match has already moved on to the next game when the record arrives.
type Recorder struct {
	mu      sync.Mutex
	backend storage.Backend
	logger  *slog.Logger
	match   core.Match

	games [][]core.PointRecord
	game  int

	current   [2]int
	lastScore [2]int
	lastGame  int
	scored    bool
}

// New creates a recorder. backend may be nil to only keep points in memory.
func New(backend storage.Backend, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		backend: backend,
		logger:  logger,
		games:   [][]core.PointRecord{nil},
		game:    1,
	}
}

// StartMatch remembers the match and opens it on the backend.
func (r *Recorder) StartMatch(m core.Match) error {
	r.mu.Lock()
	r.match = m
	r.mu.Unlock()

	if r.backend == nil {
		return nil
	}
	if err := r.backend.StartMatch(&m); err != nil {
		return fmt.Errorf("failed to start match %s: %w", m.ID, err)
	}
	return nil
}

// EndMatch closes the match on the backend.
func (r *Recorder) EndMatch(m core.Match) error {
	r.mu.Lock()
	r.match = m
	r.mu.Unlock()

	if r.backend == nil {
		return nil
	}
	if err := r.backend.EndMatch(&m); err != nil {
		return fmt.Errorf("failed to end match %s: %w", m.ID, err)
	}
	return nil
}

// RecordPoint stamps the record with the match and game, keeps it and
// forwards it to the backend. Backend errors are logged.
func (r *Recorder) RecordPoint(rec core.PointRecord) {
	r.mu.Lock()
	rec.MatchID = r.match.ID
	if r.scored {
		rec.Game = r.lastGame
		rec.ScoreLeft, rec.ScoreRight = r.lastScore[core.SideLeft], r.lastScore[core.SideRight]
		r.scored = false
	} else if rec.Game == 0 {
		rec.Game = r.game
	}
	for len(r.games) < rec.Game {
		r.games = append(r.games, nil)
	}
	r.games[rec.Game-1] = append(r.games[rec.Game-1], rec)
	r.mu.Unlock()

	r.logger.Debug("Point recorded",
		"match", rec.MatchID,
		"game", rec.Game,
		"kind", string(rec.Kind),
		"winner", rec.Winner.String())

	if r.backend == nil {
		return
	}
	if err := r.backend.RecordPoint(&rec); err != nil {
		r.logger.Error("Failed to store point", "match", rec.MatchID, "error", err)
	}
}

// AddGame starts a new group of points.
func (r *Recorder) AddGame() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addGameLocked(r.game + 1)
}

// ResetGame drops the points of the current game.
func (r *Recorder) ResetGame() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[r.game-1] = nil
	r.current = [2]int{}
}

// Stats returns the recorded points per game, first game first.
func (r *Recorder) Stats() [][]core.PointRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]core.PointRecord, len(r.games))
	for i, g := range r.games {
		out[i] = append([]core.PointRecord(nil), g...)
	}
	return out
}

// Game is the number of the current game.
func (r *Recorder) Game() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game
}

func (r *Recorder) addGameLocked(game int) {
	r.game = game
	for len(r.games) < game {
		r.games = append(r.games, nil)
	}
	r.current = [2]int{}
}

// OnScore tracks the score of the current game.
func (r *Recorder) OnScore(scorer core.Side, score int, _ core.Side) {
	if scorer != core.SideLeft && scorer != core.SideRight {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current[scorer] = score
	r.lastScore = r.current
	r.lastGame = r.game
	r.scored = true
}

func (r *Recorder) OnWin(winner core.Side) {
	r.logger.Info("Game won", "game", r.Game(), "winner", winner.String())
}

// OnGameStart opens the group for game. Game 1 starts the recorder over.
func (r *Recorder) OnGameStart(game int, _ core.Side) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if game == 1 {
		r.games = [][]core.PointRecord{nil}
		r.scored = false
	}
	r.addGameLocked(game)
}

func (r *Recorder) OnMatchWin(winner core.Side, gamesLeft, gamesRight int) {
	r.logger.Info("Match won", "winner", winner.String(), "games_left", gamesLeft, "games_right", gamesRight)
}
