package influx

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/m3ts/referee/pkg/core"
)

const (
	measurementMatchStart = "match_start"
	measurementPoint      = "point"
	measurementMatchEnd   = "match_end"
)

// ConnectTimeout bounds the health check done by Init.
var ConnectTimeout = 5 * time.Second

// Backend implements storage.Backend on top of Manager.
type Backend struct {
	manager *Manager
	now     func() time.Time
}

// New creates an InfluxDB storage backend.
func New(cfg Config, logger zerolog.Logger) *Backend {
	return &Backend{manager: NewManager(cfg, logger), now: time.Now}
}

// Init connects to InfluxDB or opens the backup file.
func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
	defer cancel()
	return b.manager.Connect(ctx)
}

// Close flushes pending points.
func (b *Backend) Close() error {
	return b.manager.Close()
}

// Connected reports whether points go to the server rather than the backup file.
func (b *Backend) Connected() bool {
	return b.manager.IsValid
}

// StartMatch writes a match_start point.
func (b *Backend) StartMatch(m *core.Match) error {
	p := influxdb2.NewPointWithMeasurement(measurementMatchStart).
		AddTag("match_id", m.ID.String()).
		AddField("player_left", m.PlayerLeft).
		AddField("player_right", m.PlayerRight).
		AddField("first_server", m.FirstServer.String()).
		AddField("game_length", m.GameLength).
		SetTime(b.timestamp(m.StartTime))
	return b.manager.WritePoint(p)
}

// RecordPoint writes one point per decision.
func (b *Backend) RecordPoint(rec *core.PointRecord) error {
	p := influxdb2.NewPointWithMeasurement(measurementPoint).
		AddTag("match_id", rec.MatchID.String()).
		AddTag("kind", string(rec.Kind)).
		AddTag("winner", rec.Winner.String()).
		AddTag("server", rec.Server.String()).
		AddField("game", rec.Game).
		AddField("score_left", rec.ScoreLeft).
		AddField("score_right", rec.ScoreRight).
		AddField("strikes", rec.Strikes).
		AddField("bounces", rec.Bounces).
		AddField("audio_bounces", rec.AudioBounce).
		AddField("duration_ms", rec.Duration.Milliseconds()).
		SetTime(b.timestamp(rec.DecidedAt))
	if rec.Reason != "" {
		p.AddTag("reason", rec.Reason)
	}
	if len(rec.Traces) > 0 {
		p.AddField("avg_velocity", avgVelocity(rec.Traces))
	}
	return b.manager.WritePoint(p)
}

// EndMatch writes a match_end point and flushes.
func (b *Backend) EndMatch(m *core.Match) error {
	end := b.timestamp(m.EndTime)
	p := influxdb2.NewPointWithMeasurement(measurementMatchEnd).
		AddTag("match_id", m.ID.String()).
		AddField("games_left", m.GamesLeft).
		AddField("games_right", m.GamesRight).
		AddField("duration_s", end.Sub(m.StartTime).Seconds()).
		SetTime(end)
	if err := b.manager.WritePoint(p); err != nil {
		return err
	}
	return b.manager.Flush()
}

// avgVelocity is the mean over the traces, each weighted by its length.
func avgVelocity(traces []core.TrackTrace) float64 {
	v := make([]float64, len(traces))
	w := make([]float64, len(traces))
	for i, tr := range traces {
		v[i] = tr.AvgVelocity
		w[i] = float64(len(tr.Points))
	}
	if floats.Sum(w) == 0 {
		return stat.Mean(v, nil)
	}
	return stat.Mean(v, w)
}

func (b *Backend) timestamp(t time.Time) time.Time {
	if t.IsZero() {
		return b.now()
	}
	return t
}
