package match

import (
	"sync"

	"github.com/m3ts/referee/pkg/core"
)

// ScoreManager keeps the points of one game and the server of every scored
// point, so that a point can be taken back.
type ScoreManager struct {
	mu          sync.Mutex
	points      map[core.Side]int
	servers     []core.Side
	startServer core.Side
}

func NewScoreManager(startServer core.Side) *ScoreManager {
	return &ScoreManager{
		points:      map[core.Side]int{core.SideLeft: 0, core.SideRight: 0},
		startServer: startServer,
	}
}

// Score gives winner a point served by server.
func (s *ScoreManager) Score(winner, server core.Side) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[winner]++
	s.servers = append(s.servers, server)
}

// RevertLastScore undoes the last scored point and takes one point from
// player, never going below zero. It returns the server of the undone point,
// or the starting server if nothing was scored. The caller picks the player.
func (s *ScoreManager) RevertLastScore(player core.Side) core.Side {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.lastServer()
	if len(s.servers) > 0 {
		s.servers = s.servers[:len(s.servers)-1]
		if s.points[player] > 0 {
			s.points[player]--
		}
	}
	return last
}

// Points returns the points of side.
func (s *ScoreManager) Points(side core.Side) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points[side]
}

// LastServer returns who served the last scored point.
func (s *ScoreManager) LastServer() core.Side {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastServer()
}

func (s *ScoreManager) lastServer() core.Side {
	if len(s.servers) == 0 {
		return s.startServer
	}
	return s.servers[len(s.servers)-1]
}
