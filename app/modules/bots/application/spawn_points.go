package botservice

import (
	"math"

	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// NavSurface snaps positions onto walkable ground.
type NavSurface interface {
	// Snap returns the nearest walkable point within radius of p.
	Snap(p relay.Vector3, radius float64) (relay.Vector3, bool)
}

// FlatSurface is a rectangular floor at height Y.
type FlatSurface struct {
	MinX, MaxX float64
	MinZ, MaxZ float64
	Y          float64
}

// DefaultSurface is the arena floor.
var DefaultSurface = FlatSurface{MinX: -30, MaxX: 30, MinZ: -30, MaxZ: 30}

func (s FlatSurface) Snap(p relay.Vector3, radius float64) (relay.Vector3, bool) {
	clamped := relay.Vector3{
		X: math.Max(s.MinX, math.Min(s.MaxX, p.X)),
		Y: s.Y,
		Z: math.Max(s.MinZ, math.Min(s.MaxZ, p.Z)),
	}
	dx, dz := clamped.X-p.X, clamped.Z-p.Z
	if math.Sqrt(dx*dx+dz*dz) > radius {
		return relay.Vector3{}, false
	}
	return clamped, true
}

// DefaultSpawnPoints is the arena spawn pool.
var DefaultSpawnPoints = []relay.Vector3{
	{X: -24, Z: -24}, {X: 0, Z: -26}, {X: 24, Z: -24},
	{X: -26, Z: 0}, {X: 26, Z: 0},
	{X: -24, Z: 24}, {X: 0, Z: 26}, {X: 24, Z: 24},
	{X: -12, Z: -12}, {X: 12, Z: -12}, {X: -12, Z: 12}, {X: 12, Z: 12},
}
