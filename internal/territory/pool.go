package territory

import "github.com/gravitas-games/hexrts/internal/hex"

// Border is the tracked border of one owned tile. Handles are pooled; do not
// keep a *Border after the coordinator reports it removed.
type Border struct {
	Coord   hex.Axial `json:"coord"`
	Mask    EdgeMask  `json:"mask"`
	OwnerID int       `json:"owner_id"`
}

// PoolStats reports border handle reuse.
type PoolStats struct {
	Allocated int // handles ever created
	InUse     int
	Free      int
}

// borderPool is a free list of border handles.
type borderPool struct {
	free      []*Border
	allocated int
	inUse     int
}

func (p *borderPool) acquire() *Border {
	p.inUse++
	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		return b
	}
	p.allocated++
	return &Border{}
}

func (p *borderPool) release(b *Border) {
	*b = Border{}
	p.inUse--
	p.free = append(p.free, b)
}

func (p *borderPool) stats() PoolStats {
	return PoolStats{Allocated: p.allocated, InUse: p.inUse, Free: len(p.free)}
}
