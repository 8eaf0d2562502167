// Package zpos estimates how far a ball is from the camera using its apparent radius.
package zpos

import (
	"github.com/m3ts/referee/internal/table"
)

const (
	BallRadiusMM = 20.0
	TableWidthMM = 1525.0
)

// Config holds the camera placement relative to the table.
type Config struct {
	// CameraDistanceMM is the distance from the camera to the near table edge.
	CameraDistanceMM float64
	// Tolerance widens the accepted depth range, as a fraction of the table width.
	Tolerance float64
}

// DefaultConfig matches a camera placed about one and a half metres from the table.
func DefaultConfig() Config {
	return Config{CameraDistanceMM: 1500, Tolerance: 0.1}
}

// Estimator converts apparent ball radii to depth. It is a pinhole model:
// apparent size shrinks linearly with distance.
type Estimator struct {
	mmPerPixelFront float64
	radiusFront     float64
	radiusBack      float64
	cameraDistance  float64
	tolerance       float64
}

func New(t *table.Table, cfg Config) *Estimator {
	if cfg.CameraDistanceMM <= 0 {
		cfg.CameraDistanceMM = DefaultConfig().CameraDistanceMM
	}
	mmPerPx := t.MmPerPixel()
	radiusFront := BallRadiusMM / mmPerPx
	return &Estimator{
		mmPerPixelFront: mmPerPx,
		radiusFront:     radiusFront,
		radiusBack:      radiusFront * cfg.CameraDistanceMM / (cfg.CameraDistanceMM + TableWidthMM),
		cameraDistance:  cfg.CameraDistanceMM,
		tolerance:       cfg.Tolerance,
	}
}

// MmPerPixelFrontEdge is the image scale on the plane of the near table edge.
func (e *Estimator) MmPerPixelFrontEdge() float64 {
	return e.mmPerPixelFront
}

// RadiusRange returns the expected ball radius in px at the near and far edge.
func (e *Estimator) RadiusRange() (front, back float64) {
	return e.radiusFront, e.radiusBack
}

// ZPositionMm is the depth of a ball with the given radius, measured from the
// near table edge towards the far edge.
func (e *Estimator) ZPositionMm(radius float64) float64 {
	if radius <= 0 {
		return 0
	}
	return e.cameraDistance*e.radiusFront/radius - e.cameraDistance
}

// ZPosition is ZPositionMm as a fraction of the table width:
// 0 at the near edge, 1 at the far edge.
func (e *Estimator) ZPosition(radius float64) float64 {
	return e.ZPositionMm(radius) / TableWidthMM
}

// IsOnTable reports whether a ball of the given radius is between the table edges.
func (e *Estimator) IsOnTable(radius float64) bool {
	if radius <= 0 {
		return false
	}
	z := e.ZPosition(radius)
	return z >= -e.tolerance && z <= 1+e.tolerance
}
