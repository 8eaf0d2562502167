package detector

import "github.com/m3ts/referee/internal/table"

// IntoNet extrapolates the line through prev and cur to the net's x and
// reports whether the ball would pass at or below the net top there.
// Only a ball still travelling towards the net can go into it.
func IntoNet(prev, cur table.Point, t *table.Table) bool {
	dx := cur.X - prev.X
	if dx == 0 {
		return false
	}
	net := t.NetTop()
	ahead := net.X - cur.X
	if ahead*dx < 0 {
		return false
	}
	y := cur.Y + (cur.Y-prev.Y)/dx*ahead
	// image y grows downwards
	return y >= net.Y
}
