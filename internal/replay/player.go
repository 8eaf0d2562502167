package replay

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3ts/referee/pkg/core"
)

// Detector receives ball detections and audio bounces. ResetLeg is called
// before every control that restarts the point.
type Detector interface {
	OnObjectsDetected(raw []core.RawDetection, ts time.Time)
	OnAudioBounce(ts time.Time)
	ResetLeg()
}

// Controls receives the manual inputs of a recording.
type Controls interface {
	OnPointAddition(side core.Side)
	OnPointDeduction(side core.Side)
	Pause()
	Resume()
	OnGestureDetected()
}

// Player feeds records into the pipeline.
type Player struct {
	Detector Detector
	Controls Controls
	Logger   *slog.Logger
	// Speed scales playback; 2 plays twice as fast. Zero or less plays as
	// fast as possible, with timestamps still spaced as recorded.
	Speed float64
	Now   func() time.Time
}

// Play delivers records in order, waiting between them so that timers in the
// pipeline fire as they did live. It returns ctx.Err() when cancelled.
func (p *Player) Play(ctx context.Context, records []Record) error {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := now()
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for _, rec := range records {
		ts := start.Add(rec.Offset())
		if p.Speed > 0 {
			due := start.Add(time.Duration(float64(rec.Offset()) / p.Speed))
			if wait := due.Sub(now()); wait > 0 {
				timer.Reset(wait)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		p.deliver(rec, ts, logger)
	}
	return nil
}

func (p *Player) deliver(rec Record, ts time.Time, logger *slog.Logger) {
	switch rec.Kind {
	case KindFrame:
		if p.Detector != nil {
			p.Detector.OnObjectsDetected(rec.Detections, ts)
		}
		return
	case KindAudio:
		if p.Detector != nil {
			p.Detector.OnAudioBounce(ts)
		}
		return
	}

	if p.Controls == nil {
		return
	}
	logger.Debug("Replaying control", "kind", string(rec.Kind), "line", rec.Line)
	if rec.Kind != KindPause && p.Detector != nil {
		p.Detector.ResetLeg()
	}
	switch rec.Kind {
	case KindPointAdd:
		p.Controls.OnPointAddition(*rec.Side)
	case KindPointDeduct:
		p.Controls.OnPointDeduction(*rec.Side)
	case KindPause:
		p.Controls.Pause()
	case KindResume:
		p.Controls.Resume()
	case KindGesture:
		p.Controls.OnGestureDetected()
	}
}
