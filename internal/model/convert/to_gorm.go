// Package convert provides functions to convert core models to GORM models
package convert

import (
	"database/sql"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/m3ts/referee/internal/model"
	"github.com/m3ts/referee/pkg/core"
)

// CoreToMatch converts a core.Match to a GORM model.Match.
// A zero EndTime maps to NULL.
func CoreToMatch(m core.Match) model.Match {
	return model.Match{
		ID:          m.ID.String(),
		PlayerLeft:  m.PlayerLeft,
		PlayerRight: m.PlayerRight,
		StartTime:   m.StartTime,
		EndTime:     sql.NullTime{Time: m.EndTime, Valid: !m.EndTime.IsZero()},
		FirstServer: m.FirstServer.String(),
		GameLength:  m.GameLength,
		GamesLeft:   m.GamesLeft,
		GamesRight:  m.GamesRight,
	}
}

// CoreToPoint converts a core.PointRecord and its traces to a GORM model.Point.
func CoreToPoint(rec core.PointRecord) model.Point {
	p := model.Point{
		MatchID:      rec.MatchID.String(),
		Game:         rec.Game,
		Kind:         string(rec.Kind),
		Reason:       rec.Reason,
		Winner:       rec.Winner.String(),
		ScoreLeft:    rec.ScoreLeft,
		ScoreRight:   rec.ScoreRight,
		Strikes:      rec.Strikes,
		Bounces:      rec.Bounces,
		AudioBounces: rec.AudioBounce,
		BallSide:     rec.BallSide.String(),
		Striker:      rec.Striker.String(),
		Server:       rec.Server.String(),
		DurationMs:   rec.Duration.Milliseconds(),
		DecidedAt:    rec.DecidedAt,
	}
	for _, tr := range rec.Traces {
		p.Traces = append(p.Traces, CoreToTrackTrace(tr))
	}
	return p
}

// CoreToTrackTrace converts one trace, storing the detections as JSON.
func CoreToTrackTrace(tr core.TrackTrace) model.TrackTrace {
	return model.TrackTrace{
		TrackID:     tr.TrackID.String(),
		Length:      len(tr.Points),
		AvgVelocity: tr.AvgVelocity,
		Detections:  tracePointsToJSON(tr.Points),
	}
}

// tracePointsToJSON converts trace points to datatypes.JSON for DB storage.
func tracePointsToJSON(points []core.TracePoint) datatypes.JSON {
	if len(points) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(points)
	return datatypes.JSON(data)
}
