// Package registry implements the distinguished-point registry: a
// concurrent mapping from compressed point to (distance, herd), and the
// tame/wild collision resolver that turns a cross-herd match into a
// candidate private key.
package registry

import (
	"math/big"
	"sync"

	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/curve"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/walker"
)

// Record is the value stored for each distinguished-point key.
type Record struct {
	Distance *big.Int
	Herd     walker.Herd
}

// Registry guards the distinguished-point map with a single lock. Submit
// is the only mutation point; the lock is held only across the lookup,
// the optional insert, and — on a cross-herd collision — the candidate
// verification, which is a single scalar multiplication and therefore
// cheap enough to do under the lock.
type Registry struct {
	mu sync.Mutex
	m  map[[33]byte]Record
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{m: make(map[[33]byte]Record)}
}

// Len reports the number of distinguished points recorded so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

// Snapshot returns a copy of the registry contents, used by the
// checkpoint writer to dump a point-in-time-consistent view.
func (r *Registry) Snapshot() map[[33]byte]Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[[33]byte]Record, len(r.m))
	for k, v := range r.m {
		out[k] = Record{Distance: new(big.Int).Set(v.Distance), Herd: v.Herd}
	}
	return out
}

// Restore replaces the registry contents wholesale, used when loading a
// checkpoint. It does not attempt to merge with the live map: callers
// that want additive resume should call this before any walkers start.
func (r *Registry) Restore(records map[[33]byte]Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m = records
}

// Submit implements the registry contract:
//   - absent key: insert and return (nil, false).
//   - present, same herd: discard, first-writer-wins, return (nil, false).
//   - present, opposite herd: resolve the collision. If the candidate
//     key's public point matches target, return (candidate, true).
//     Otherwise discard the losing record and return (nil, false).
func (r *Registry) Submit(key [33]byte, distance *big.Int, herd walker.Herd, target curve.Point) (*big.Int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.m[key]
	if !ok {
		r.m[key] = Record{Distance: new(big.Int).Set(distance), Herd: herd}
		return nil, false
	}

	if existing.Herd == herd {
		return nil, false
	}

	var tameDist, wildDist *big.Int
	if herd == walker.Tame {
		tameDist, wildDist = distance, existing.Distance
	} else {
		tameDist, wildDist = existing.Distance, distance
	}

	candidate := new(big.Int).Sub(tameDist, wildDist)
	candidate.Mod(candidate, curve.GroupOrder)

	candidatePoint := curve.ScalarBaseMult(candidate)
	if curve.Equal(candidatePoint, target) {
		return candidate, true
	}
	return nil, false
}
