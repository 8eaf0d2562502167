package match

import "github.com/m3ts/referee/pkg/core"

// Observers fans every callback out to each observer in order. Nil entries are skipped.
type Observers []MatchObserver

func (o Observers) OnScore(scorer core.Side, score int, server core.Side) {
	for _, obs := range o {
		if obs != nil {
			obs.OnScore(scorer, score, server)
		}
	}
}

func (o Observers) OnWin(winner core.Side) {
	for _, obs := range o {
		if obs != nil {
			obs.OnWin(winner)
		}
	}
}

func (o Observers) OnGameStart(game int, firstServer core.Side) {
	for _, obs := range o {
		if obs != nil {
			obs.OnGameStart(game, firstServer)
		}
	}
}

func (o Observers) OnMatchWin(winner core.Side, gamesLeft, gamesRight int) {
	for _, obs := range o {
		if obs != nil {
			obs.OnMatchWin(winner, gamesLeft, gamesRight)
		}
	}
}
