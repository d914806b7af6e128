// Package jumptable builds the fixed-size pseudo-random jump table every
// Kangaroo walker uses to take its next algebraic hop. The table is
// immutable after construction.
package jumptable

import (
	"errors"
	"fmt"
	"math/big"
	"math/rand/v2"

	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/curve"
)

// Size is the fixed, power-of-two table size. It is an invariant relied
// on by Table.Index, which takes the last byte of a compressed point
// modulo Size.
const Size = 32

// ErrJumpGeneration is returned when jump-table construction fails; a
// failure here is fatal per the error design (CurveOperationFailed, a
// persistent failure in jump-table construction is fatal).
var ErrJumpGeneration = errors.New("jumptable: failed to generate jump point")

// Entry is one (delta, delta·G) pair. The invariant Point == Delta·G
// holds for every entry for the life of the table.
type Entry struct {
	Delta *big.Int
	Point curve.Point
}

// Table is an ordered, read-only sequence of Entry values.
type Table struct {
	entries [Size]Entry
}

// Len returns the fixed table size.
func (t Table) Len() int { return Size }

// At returns the i'th entry.
func (t Table) At(i int) Entry { return t.entries[i] }

// Index implements idx(P) = last_byte(compressed(P)) mod Size: the
// deterministic, herd-agnostic hop rule every walker uses so that two
// walkers arriving at the same point take the same next jump.
func (t Table) Index(p curve.Point) int {
	c := p.Compressed()
	return int(c[len(c)-1]) % Size
}

// Build constructs a Table for a range of the given size. rng supplies
// the jump deltas; callers pass a deterministic source in tests and a
// process-seeded math/rand/v2.Rand otherwise — the walk only needs
// statistical pseudo-randomness, not a CSPRNG.
func Build(rangeSize *big.Int, rng *rand.Rand) (Table, error) {
	sqrtN := new(big.Int).Sqrt(rangeSize)

	mean := new(big.Int).Rsh(sqrtN, 1)
	if mean.Sign() == 0 {
		mean.SetInt64(1)
	}

	lo := new(big.Int).Rsh(mean, 1)
	lo.Add(lo, big.NewInt(1)) // mean/2 + 1
	span := new(big.Int).Set(mean)
	if span.Sign() <= 0 {
		span.SetInt64(1)
	}

	var table Table
	for i := 0; i < Size; i++ {
		delta := randomInRange(rng, lo, span)
		if delta.Cmp(rangeSize) >= 0 {
			delta = new(big.Int).Rsh(rangeSize, 1)
			delta.Add(delta, big.NewInt(1))
		}

		point := curve.ScalarBaseMult(delta)
		table.entries[i] = Entry{Delta: delta, Point: point}
	}
	return table, nil
}

// randomInRange draws a uniform value from [lo, lo+span).
func randomInRange(rng *rand.Rand, lo, span *big.Int) *big.Int {
	if span.Sign() <= 0 {
		return new(big.Int).Set(lo)
	}
	// Draw a value in [0, span) using rejection-free big.Int arithmetic
	// seeded from the rng's 64-bit stream, chunked to cover arbitrary
	// widths.
	bits := span.BitLen() + 8
	words := (bits + 63) / 64
	buf := make([]byte, words*8)
	for w := 0; w < words; w++ {
		v := rng.Uint64()
		for b := 0; b < 8; b++ {
			buf[w*8+b] = byte(v >> (8 * b))
		}
	}
	raw := new(big.Int).SetBytes(buf)
	offset := new(big.Int).Mod(raw, span)
	return new(big.Int).Add(lo, offset)
}

// String is a debug helper describing the table's jump-distance profile.
func (t Table) String() string {
	return fmt.Sprintf("jumptable(size=%d)", Size)
}
