// Package hex implements axial hex-grid coordinates for a pointy-top layout:
// neighbour lookup, distances, and conversion between axial cells and world
// positions on the ground plane.
package hex

import (
	"errors"
	"fmt"
	"math"
)

// Size is the default hex circumradius (centre to corner) in world units.
const Size = 1.0

// ErrInvalidSize is returned when a layout is built with a non-positive size.
var ErrInvalidSize = errors.New("hex: size must be positive")

// Axial represents axial coordinates (q, r) for pointy-top orientation.
type Axial struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// Cube represents cube coordinates (x, y, z) with x+y+z=0.
type Cube struct {
	X int
	Y int
	Z int
}

// Point is a position on the world ground plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Directions holds the axial offsets of the six neighbours, counter-clockwise
// starting at East: E, NE, NW, W, SW, SE.
var Directions = [6]Axial{
	{+1, 0}, {+1, -1}, {0, -1}, {-1, 0}, {-1, +1}, {0, +1},
}

// String implements fmt.Stringer.
func (a Axial) String() string { return fmt.Sprintf("(%d,%d)", a.Q, a.R) }

// Add returns a+b in axial space.
func (a Axial) Add(b Axial) Axial { return Axial{a.Q + b.Q, a.R + b.R} }

// Mul scales an axial vector by k.
func (a Axial) Mul(k int) Axial { return Axial{a.Q * k, a.R * k} }

// ToCube converts axial to cube.
func (a Axial) ToCube() Cube {
	x := a.Q
	z := a.R
	y := -x - z
	return Cube{X: x, Y: y, Z: z}
}

// ToAxial converts cube to axial.
func (c Cube) ToAxial() Axial { return Axial{Q: c.X, R: c.Z} }

// Direction normalizes d into 0..5.
func Direction(d int) int {
	d %= 6
	if d < 0 {
		d += 6
	}
	return d
}

// Opposite returns the direction pointing back across the shared edge.
func Opposite(d int) int { return Direction(d + 3) }

// Neighbor returns the cell adjacent to a in direction d.
func Neighbor(a Axial, d int) Axial { return a.Add(Directions[Direction(d)]) }

// Neighbors returns all six adjacent cells in direction order.
func (a Axial) Neighbors() [6]Axial {
	var out [6]Axial
	for i, d := range Directions {
		out[i] = a.Add(d)
	}
	return out
}

// DistanceAxial returns hex distance between two axial coords.
func DistanceAxial(a, b Axial) int {
	return DistanceCube(a.ToCube(), b.ToCube())
}

// DistanceCube returns hex distance between two cube coords.
func DistanceCube(a, b Cube) int {
	return max(abs(a.X-b.X), abs(a.Y-b.Y), abs(a.Z-b.Z))
}

// AxialToPixel converts axial to pixel coordinates for pointy-top layout.
// size is the hex radius (corner to center) in pixels.
func AxialToPixel(a Axial, size float64) (x, y float64) {
	// pointy-top: x = size*sqrt(3)*(q + r/2); y = size*3/2*r
	x = size * math.Sqrt(3) * (float64(a.Q) + float64(a.R)/2.0)
	y = size * 1.5 * float64(a.R)
	return
}

// Layout converts between cells and world positions for one hex size.
type Layout struct {
	Size float64
}

// DefaultLayout uses Size.
var DefaultLayout = Layout{Size: Size}

// NewLayout validates size and returns a layout.
func NewLayout(size float64) (Layout, error) {
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		return Layout{}, fmt.Errorf("%w: %v", ErrInvalidSize, size)
	}
	return Layout{Size: size}, nil
}

// ToWorld returns the centre of cell a.
func (l Layout) ToWorld(a Axial) Point {
	x, y := AxialToPixel(a, l.Size)
	return Point{X: x, Y: y}
}

// FromWorld returns the cell containing p. ToWorld(FromWorld(p)) is the
// centre of that cell, not p itself.
func (l Layout) FromWorld(p Point) Axial {
	q := (math.Sqrt(3)/3*p.X - p.Y/3) / l.Size
	r := (2.0 / 3 * p.Y) / l.Size
	return roundCube(q, -q-r, r)
}

// AxialToWorld converts with DefaultLayout.
func AxialToWorld(a Axial) Point { return DefaultLayout.ToWorld(a) }

// WorldToAxial converts with DefaultLayout.
func WorldToAxial(p Point) Axial { return DefaultLayout.FromWorld(p) }

// roundCube snaps fractional cube coordinates to the nearest cell, fixing the
// component with the largest rounding error so that x+y+z stays 0.
func roundCube(x, y, z float64) Axial {
	rx, ry, rz := math.Round(x), math.Round(y), math.Round(z)
	dx, dy, dz := math.Abs(rx-x), math.Abs(ry-y), math.Abs(rz-z)
	switch {
	case dx > dy && dx > dz:
		rx = -ry - rz
	case dy > dz:
		ry = -rx - rz
	default:
		rz = -rx - ry
	}
	return Cube{X: int(rx), Y: int(ry), Z: int(rz)}.ToAxial()
}

// HashCoord mixes a seed with a cell into a stable 64-bit value, so that
// independent callers agree on per-cell choices.
func HashCoord(seed int64, a Axial) uint64 {
	// splitmix-like integer hashing mixed with axial coords
	x := uint64(seed)
	x ^= uint64(uint32(a.Q)) * 0x9E3779B97F4A7C15
	x ^= uint64(uint32(a.R)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	x ^= x >> 31
	return x
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
