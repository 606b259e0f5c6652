package hex

import (
	"errors"
	"math"
	"testing"
)

func TestWorldRoundTrip(t *testing.T) {
	for _, c := range Disk(Axial{3, -7}, 12) {
		if got := WorldToAxial(AxialToWorld(c)); got != c {
			t.Fatalf("round trip of %v gave %v", c, got)
		}
	}
}

func TestWorldRoundTripScaledLayout(t *testing.T) {
	l, err := NewLayout(2.75)
	if err != nil {
		t.Fatalf("unexpected layout error: %v", err)
	}
	for _, c := range Disk(Axial{}, 8) {
		if got := l.FromWorld(l.ToWorld(c)); got != c {
			t.Fatalf("round trip of %v gave %v", c, got)
		}
	}
}

func TestFromWorldSnapsToCellCentre(t *testing.T) {
	c := Axial{2, -1}
	centre := AxialToWorld(c)
	// inner radius of a pointy-top hex is size*sqrt(3)/2
	inner := Size * math.Sqrt(3) / 2
	offsets := []Point{
		{0.4 * inner, 0}, {-0.4 * inner, 0}, {0, 0.4 * inner}, {0, -0.4 * inner},
		{0.3 * inner, 0.3 * inner},
	}
	for _, o := range offsets {
		p := Point{X: centre.X + o.X, Y: centre.Y + o.Y}
		got := WorldToAxial(p)
		if got != c {
			t.Fatalf("point %v mapped to %v, want %v", p, got, c)
		}
		if back := AxialToWorld(got); back != centre {
			t.Fatalf("expected cell centre %v, got %v", centre, back)
		}
	}
}

func TestNeighborInvolution(t *testing.T) {
	for _, c := range Disk(Axial{-4, 9}, 4) {
		for d := 0; d < 6; d++ {
			if got := Neighbor(Neighbor(c, d), Opposite(d)); got != c {
				t.Fatalf("neighbor(%v,%d) and back gave %v", c, d, got)
			}
		}
	}
}

func TestNeighborDirectionsAreAdjacentAndDistinct(t *testing.T) {
	c := Axial{1, 1}
	seen := map[Axial]bool{}
	for d := 0; d < 6; d++ {
		n := Neighbor(c, d)
		if DistanceAxial(c, n) != 1 {
			t.Fatalf("direction %d is not adjacent: %v", d, n)
		}
		seen[n] = true
	}
	if len(seen) != 6 {
		t.Fatalf("expected 6 distinct neighbours, got %d", len(seen))
	}
	if Neighbor(c, -1) != Neighbor(c, 5) || Neighbor(c, 7) != Neighbor(c, 1) {
		t.Fatalf("direction indices must wrap modulo 6")
	}
	if Neighbor(c, 0) != (Axial{2, 1}) {
		t.Fatalf("direction 0 must be east")
	}
}

func TestNewLayoutRejectsBadSize(t *testing.T) {
	for _, size := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := NewLayout(size); !errors.Is(err, ErrInvalidSize) {
			t.Fatalf("size %v: expected ErrInvalidSize, got %v", size, err)
		}
	}
}

func TestHashCoordStable(t *testing.T) {
	a := Axial{5, -3}
	if HashCoord(7, a) != HashCoord(7, a) {
		t.Fatalf("hash must be deterministic")
	}
	if HashCoord(7, a) == HashCoord(8, a) {
		t.Fatalf("hash should depend on seed")
	}
}
