package table

import (
	"encoding/json"
	"errors"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/m3ts/referee/pkg/core"
)

// Regulation table dimensions in mm.
const (
	LengthMM    = 2740.0
	NetHeightMM = 152.5
)

// DefaultBounceMargin widens the table surface for bounce tests, in px.
const DefaultBounceMargin = 10.0

// far is used to extend regions beyond any frame.
const far = 1e6

// ErrInvalidCorners is returned when the table corners do not form a usable quadrilateral
var ErrInvalidCorners = errors.New("invalid table corners")

// Point is an image position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Corners of the table as seen from the side camera, in image pixels.
// Top is the far edge, Bottom is the edge closest to the camera.
type Corners struct {
	TopLeft     Point
	TopRight    Point
	BottomRight Point
	BottomLeft  Point
}

// Table is the immutable table geometry of one match setup.
type Table struct {
	corners      Corners
	netBottom    Point
	netTop       Point
	mmPerPixel   float64
	bounceMargin float64

	surface   geom.Polygon
	bounce    geom.Polygon
	onOrAbove geom.Polygon
	below     geom.Polygon
}

// Option customises a Table.
type Option func(*Table)

// WithNetBottom overrides the net bottom point, which defaults to the
// middle of the bottom edge.
func WithNetBottom(p Point) Option {
	return func(t *Table) {
		t.netBottom = p
	}
}

// WithBounceMargin sets how many pixels around the surface still count as a bounce.
func WithBounceMargin(px float64) Option {
	return func(t *Table) {
		t.bounceMargin = px
	}
}

// New builds a table from its corners.
func New(c Corners, opts ...Option) (*Table, error) {
	if c.BottomRight.X <= c.BottomLeft.X || c.TopRight.X <= c.TopLeft.X {
		return nil, fmt.Errorf("%w: right corners must lie right of left corners", ErrInvalidCorners)
	}
	if c.BottomLeft.Y < c.TopLeft.Y || c.BottomRight.Y < c.TopRight.Y {
		return nil, fmt.Errorf("%w: bottom corners must lie below top corners", ErrInvalidCorners)
	}

	t := &Table{
		corners:      c,
		bounceMargin: DefaultBounceMargin,
		netBottom: Point{
			X: (c.BottomLeft.X + c.BottomRight.X) / 2,
			Y: (c.BottomLeft.Y + c.BottomRight.Y) / 2,
		},
	}
	for _, opt := range opts {
		opt(t)
	}

	t.mmPerPixel = LengthMM / (c.BottomRight.X - c.BottomLeft.X)
	t.netTop = Point{X: t.netBottom.X, Y: t.netBottom.Y - NetHeightMM/t.mmPerPixel}

	m := t.bounceMargin
	left := Point{X: c.BottomLeft.X - far, Y: t.bottomEdgeY(c.BottomLeft.X - far)}
	right := Point{X: c.BottomRight.X + far, Y: t.bottomEdgeY(c.BottomRight.X + far)}
	regions := []struct {
		name string
		dst  *geom.Polygon
		pts  []Point
	}{
		{"surface", &t.surface, []Point{c.TopLeft, c.TopRight, c.BottomRight, c.BottomLeft}},
		{"bounce", &t.bounce, []Point{
			{c.TopLeft.X - m, c.TopLeft.Y - m},
			{c.TopRight.X + m, c.TopRight.Y - m},
			{c.BottomRight.X + m, c.BottomRight.Y + m},
			{c.BottomLeft.X - m, c.BottomLeft.Y + m},
		}},
		{"on-or-above", &t.onOrAbove, []Point{
			{c.BottomLeft.X, -far},
			{c.BottomRight.X, -far},
			c.BottomRight,
			c.BottomLeft,
		}},
		{"below", &t.below, []Point{left, right, {right.X, far}, {left.X, far}}},
	}
	for _, r := range regions {
		poly, err := polygon(r.pts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %s region: %w", ErrInvalidCorners, r.name, err)
		}
		*r.dst = poly
	}

	return t, nil
}

// ParseCorners parses a JSON array of four [x,y] pairs ordered top-left,
// top-right, bottom-right, bottom-left.
// Input format: "[[x1,y1],[x2,y2],[x3,y3],[x4,y4]]"
func ParseCorners(input string) (Corners, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return Corners{}, fmt.Errorf("failed to parse table corners JSON: %w", err)
	}
	if len(coords) != 4 {
		return Corners{}, fmt.Errorf("%w: expected 4 corners, got %d", ErrInvalidCorners, len(coords))
	}

	pts := make([]Point, 4)
	for i, coord := range coords {
		if len(coord) < 2 {
			return Corners{}, fmt.Errorf("%w: corner %d has insufficient values", ErrInvalidCorners, i)
		}
		pts[i] = Point{X: coord[0], Y: coord[1]}
	}

	return Corners{TopLeft: pts[0], TopRight: pts[1], BottomRight: pts[2], BottomLeft: pts[3]}, nil
}

func (t *Table) Corners() Corners {
	return t.corners
}

// NetBottom is where the net meets the edge closest to the camera.
func (t *Table) NetBottom() Point {
	return t.netBottom
}

// NetTop is the top of the net above NetBottom.
func (t *Table) NetTop() Point {
	return t.netTop
}

// MmPerPixel is the scale along the bottom edge.
func (t *Table) MmPerPixel() float64 {
	return t.mmPerPixel
}

// HorizontalSide returns the half of the table x belongs to.
func (t *Table) HorizontalSide(x float64) core.Side {
	if x < t.netBottom.X {
		return core.SideLeft
	}
	return core.SideRight
}

// MidlineY is the y of the line halfway between the far and near edges at x.
func (t *Table) MidlineY(x float64) float64 {
	return (t.topEdgeY(x) + t.bottomEdgeY(x)) / 2
}

// IsOnSurface reports whether (x, y) lies on the table quadrilateral.
func (t *Table) IsOnSurface(x, y float64) bool {
	return contains(t.surface, x, y)
}

// IsOnOrAbove reports whether (x, y) is above the near edge, within the table's width.
func (t *Table) IsOnOrAbove(x, y float64) bool {
	return contains(t.onOrAbove, x, y)
}

// IsBelow reports whether (x, y) is under the near edge line, extended to the frame.
func (t *Table) IsBelow(x, y float64) bool {
	return y > t.bottomEdgeY(x) && contains(t.below, x, y)
}

// IsBounceOn reports whether a bounce at (x, y) could have touched the table.
func (t *Table) IsBounceOn(x, y float64) bool {
	return contains(t.bounce, x, y)
}

func (t *Table) bottomEdgeY(x float64) float64 {
	return lineY(t.corners.BottomLeft, t.corners.BottomRight, x)
}

func (t *Table) topEdgeY(x float64) float64 {
	return lineY(t.corners.TopLeft, t.corners.TopRight, x)
}

func lineY(a, b Point, x float64) float64 {
	if b.X == a.X {
		return a.Y
	}
	return a.Y + (b.Y-a.Y)*(x-a.X)/(b.X-a.X)
}

func polygon(pts ...Point) (geom.Polygon, error) {
	flat := make([]float64, 0, 2*len(pts)+2)
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	flat = append(flat, pts[0].X, pts[0].Y)
	ring, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.Polygon{}, err
	}
	return geom.NewPolygon([]geom.LineString{ring})
}

// contains reports whether (x, y) lies in poly. A coordinate that is not a
// valid point (NaN, Inf) lies nowhere.
func contains(poly geom.Polygon, x, y float64) bool {
	pt, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: x, Y: y}, Type: geom.DimXY})
	if err != nil {
		return false
	}
	return geom.Intersects(poly.AsGeometry(), pt.AsGeometry())
}
