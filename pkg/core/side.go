// pkg/core/side.go
package core

import (
	"cmp"
	"fmt"
	"strings"
)

// Side identifies a half of the table (Left, Right) or a frame edge (Top, Bottom).
type Side int

const (
	SideLeft Side = iota
	SideRight
	SideTop
	SideBottom
)

// Opposite returns the side across the net (or across the frame for Top/Bottom).
func (s Side) Opposite() Side {
	switch s {
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	case SideTop:
		return SideBottom
	default:
		return SideTop
	}
}

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	case SideTop:
		return "top"
	case SideBottom:
		return "bottom"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// MarshalText encodes the side as its lowercase name.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a side name, case-insensitive.
func (s *Side) UnmarshalText(text []byte) error {
	parsed, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSide converts "left", "right", "top" or "bottom" to a Side.
func ParseSide(name string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "left":
		return SideLeft, nil
	case "right":
		return SideRight, nil
	case "top":
		return SideTop, nil
	case "bottom":
		return SideBottom, nil
	default:
		return SideLeft, fmt.Errorf("unknown side %q", name)
	}
}

// Direction is the sign of movement along one image axis.
// Image y grows downwards, so MovingDown is Positive.
type Direction int8

const (
	Negative Direction = -1
	None     Direction = 0
	Positive Direction = 1

	MovingLeft  = Negative
	MovingRight = Positive
	MovingUp    = Negative
	MovingDown  = Positive
)

// DirectionOf returns the sign of to - from.
func DirectionOf(from, to float64) Direction {
	return Direction(cmp.Compare(to, from))
}

// StrikerForDirection returns the side a ball moving along dirX was hit from.
// A ball moving right was struck by the left player. ok is false for None.
func StrikerForDirection(dirX Direction) (side Side, ok bool) {
	switch dirX {
	case MovingRight:
		return SideLeft, true
	case MovingLeft:
		return SideRight, true
	default:
		return SideLeft, false
	}
}
