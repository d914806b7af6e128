package walker

import (
	"math/big"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/curve"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/jumptable"
)

func TestHerdString(t *testing.T) {
	assert.Equal(t, "tame", Tame.String())
	assert.Equal(t, "wild", Wild.String())
}

func TestNewTameInvariant(t *testing.T) {
	d0 := big.NewInt(12345)
	s := NewTame(d0)
	want := curve.ScalarBaseMult(d0)
	assert.True(t, curve.Equal(s.Point, want))
	assert.Equal(t, Tame, s.Herd)
}

func TestNewWildInvariant(t *testing.T) {
	target := curve.ScalarBaseMult(big.NewInt(999))
	d0 := big.NewInt(42)
	s := NewWild(target, d0)
	want := curve.AddScalarBaseMult(target, d0)
	assert.True(t, curve.Equal(s.Point, want))
	assert.Equal(t, Wild, s.Herd)
}

func TestStepPreservesTameInvariant(t *testing.T) {
	table, err := jumptable.Build(big.NewInt(1<<20), rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)

	s := NewTame(big.NewInt(7))
	var jumps uint64
	for i := 0; i < 50; i++ {
		s.Step(table, &jumps)
		want := curve.ScalarBaseMult(s.Distance)
		assert.True(t, curve.Equal(s.Point, want), "step %d broke tame invariant", i)
	}
	assert.Equal(t, uint64(50), jumps)
}

func TestStepPreservesWildInvariant(t *testing.T) {
	table, err := jumptable.Build(big.NewInt(1<<20), rand.New(rand.NewPCG(3, 4)))
	require.NoError(t, err)

	target := curve.ScalarBaseMult(big.NewInt(314159))
	s := NewWild(target, big.NewInt(11))
	var jumps uint64
	for i := 0; i < 50; i++ {
		s.Step(table, &jumps)
		want := curve.AddScalarBaseMult(target, s.Distance)
		assert.True(t, curve.Equal(s.Point, want), "step %d broke wild invariant", i)
	}
}

func TestIsDistinguishedZeroBitsAlwaysTrue(t *testing.T) {
	p := curve.Generator()
	assert.True(t, IsDistinguished(p, 0))
}

func TestIsDistinguishedMatchesManualMask(t *testing.T) {
	p := curve.ScalarBaseMult(big.NewInt(55555))
	c := p.Compressed()
	last := c[len(c)-1]

	for bits := 1; bits <= 8; bits++ {
		mask := byte(1<<bits - 1)
		want := last&mask == 0
		assert.Equal(t, want, IsDistinguished(p, bits), "bits=%d", bits)
	}
}

func TestIsDistinguishedHigherBitsAreStricter(t *testing.T) {
	// Passing at dpBits+1 implies passing at dpBits (more trailing zero
	// bits required is a strictly stronger condition).
	found := 0
	for k := int64(0); k < 500 && found < 3; k++ {
		p := curve.ScalarBaseMult(big.NewInt(k))
		for bits := 1; bits < 16; bits++ {
			if IsDistinguished(p, bits+1) {
				assert.True(t, IsDistinguished(p, bits))
				found++
			}
		}
	}
}
