// Package walker implements the per-kangaroo state machine: a current
// curve point, an accumulated scalar distance, and a herd tag, advanced
// one jump-table hop at a time.
package walker

import (
	"math/big"
	"sync/atomic"

	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/curve"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/jumptable"
)

// Herd tags which of the two Kangaroo populations a walker belongs to.
type Herd int

const (
	// Tame walkers satisfy point == distance·G.
	Tame Herd = iota
	// Wild walkers satisfy point == target + distance·G.
	Wild
)

func (h Herd) String() string {
	if h == Tame {
		return "tame"
	}
	return "wild"
}

// State is one walker's position and accumulated distance. Distance is
// kept as an unbounded integer during the walk — it is only reduced
// modulo the group order when a collision is resolved, avoiding a
// modular reduction on every step.
type State struct {
	Point    curve.Point
	Distance *big.Int
	Herd     Herd
}

// NewTame seeds a tame walker at distance d0 = U + o, point = d0·G.
func NewTame(d0 *big.Int) State {
	return State{
		Point:    curve.ScalarBaseMult(d0),
		Distance: new(big.Int).Set(d0),
		Herd:     Tame,
	}
}

// NewWild seeds a wild walker at distance d0 = o, point = target + o·G.
func NewWild(target curve.Point, d0 *big.Int) State {
	return State{
		Point:    curve.AddScalarBaseMult(target, d0),
		Distance: new(big.Int).Set(d0),
		Herd:     Wild,
	}
}

// Step advances the walker by exactly one jump-table hop and increments
// the shared jump counter. No modular reduction is applied to Distance.
func (s *State) Step(table jumptable.Table, totalJumps *uint64) {
	idx := table.Index(s.Point)
	entry := table.At(idx)

	s.Point = curve.Add(s.Point, entry.Point)
	s.Distance = new(big.Int).Add(s.Distance, entry.Delta)

	atomic.AddUint64(totalJumps, 1)
}

// IsDistinguished reports whether a point's compressed encoding ends in
// dpBits trailing zero bits (consuming whole zero bytes once dpBits>=8).
// The solver's working range is [1,24]; dpBits 0 makes every point
// distinguished.
func IsDistinguished(p curve.Point, dpBits int) bool {
	c := p.Compressed()
	return isDistinguishedBytes(c[:], dpBits)
}

func isDistinguishedBytes(b []byte, dpBits int) bool {
	bits := dpBits
	idx := len(b) - 1
	for bits >= 8 {
		if b[idx] != 0 {
			return false
		}
		bits -= 8
		idx--
	}
	if bits > 0 {
		mask := byte(1<<bits - 1)
		if b[idx]&mask != 0 {
			return false
		}
	}
	return true
}
