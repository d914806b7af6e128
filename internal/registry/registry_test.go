package registry

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/curve"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/walker"
)

func TestSubmitFirstInsertDoesNotResolve(t *testing.T) {
	r := New()
	target := curve.ScalarBaseMult(big.NewInt(500))

	candidate, ok := r.Submit([33]byte{1}, big.NewInt(10), walker.Tame, target)
	assert.False(t, ok)
	assert.Nil(t, candidate)
	assert.Equal(t, 1, r.Len())
}

func TestSubmitSameHerdDiscards(t *testing.T) {
	r := New()
	target := curve.ScalarBaseMult(big.NewInt(500))

	r.Submit([33]byte{1}, big.NewInt(10), walker.Tame, target)
	candidate, ok := r.Submit([33]byte{1}, big.NewInt(999), walker.Tame, target)

	assert.False(t, ok)
	assert.Nil(t, candidate)
	assert.Equal(t, 1, r.Len())
}

func TestSubmitOppositeHerdResolvesKnownSecret(t *testing.T) {
	r := New()
	secret := big.NewInt(12345)
	target := curve.ScalarBaseMult(secret)

	// A tame walker at distance d_t and a wild walker at distance d_w
	// collide at the same point only when d_t - d_w == secret (mod n),
	// i.e. d_t*G == target + d_w*G.
	dWild := big.NewInt(777)
	dTame := new(big.Int).Add(secret, dWild)

	r.Submit([33]byte{9}, dWild, walker.Wild, target)
	candidate, ok := r.Submit([33]byte{9}, dTame, walker.Tame, target)

	assert.True(t, ok)
	assert.Equal(t, secret, candidate)
}

func TestSubmitOppositeHerdNonMatchingCandidateDiscarded(t *testing.T) {
	r := New()
	target := curve.ScalarBaseMult(big.NewInt(12345))

	// Distances that do not actually satisfy tame-wild==secret: the
	// registry must not fabricate a false candidate.
	r.Submit([33]byte{2}, big.NewInt(1), walker.Wild, target)
	candidate, ok := r.Submit([33]byte{2}, big.NewInt(2), walker.Tame, target)

	assert.False(t, ok)
	assert.Nil(t, candidate)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	r := New()
	target := curve.ScalarBaseMult(big.NewInt(1))
	r.Submit([33]byte{4}, big.NewInt(10), walker.Tame, target)

	snap := r.Snapshot()
	snap[[33]byte{4}].Distance.SetInt64(999999)

	live := r.Snapshot()
	assert.Equal(t, big.NewInt(10), live[[33]byte{4}].Distance)
}

func TestRestoreReplacesContents(t *testing.T) {
	r := New()
	target := curve.ScalarBaseMult(big.NewInt(1))
	r.Submit([33]byte{1}, big.NewInt(1), walker.Tame, target)

	r.Restore(map[[33]byte]Record{
		{2}: {Distance: big.NewInt(2), Herd: walker.Wild},
	})

	assert.Equal(t, 1, r.Len())
	snap := r.Snapshot()
	_, hasOld := snap[[33]byte{1}]
	assert.False(t, hasOld)
}
