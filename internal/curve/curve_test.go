package curve

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorRoundTrip(t *testing.T) {
	g := Generator()
	enc := g.Compressed()

	parsed, err := ParsePoint(enc[:])
	require.NoError(t, err)
	assert.True(t, Equal(g, parsed))
}

func TestScalarBaseMultMatchesAddition(t *testing.T) {
	g := Generator()
	two := ScalarBaseMult(big.NewInt(2))
	sum := Add(g, g)
	assert.True(t, Equal(two, sum))
}

func TestScalarBaseMultReducesModN(t *testing.T) {
	overN := new(big.Int).Add(GroupOrder, big.NewInt(5))
	a := ScalarBaseMult(overN)
	b := ScalarBaseMult(big.NewInt(5))
	assert.True(t, Equal(a, b))
}

func TestAddScalarBaseMult(t *testing.T) {
	target := ScalarBaseMult(big.NewInt(7))
	got := AddScalarBaseMult(target, big.NewInt(3))
	want := ScalarBaseMult(big.NewInt(10))
	assert.True(t, Equal(got, want))
}

func TestXYRoundTrip(t *testing.T) {
	p := ScalarBaseMult(big.NewInt(42))
	x, y := p.XY()

	reconstructed, err := PointFromXY(x, y)
	require.NoError(t, err)
	assert.True(t, Equal(p, reconstructed))
}

func TestScalarBytesRoundTrip(t *testing.T) {
	k := big.NewInt(123456789)
	b := ScalarToBytes(k)
	assert.Equal(t, k, BytesToScalar(b))
}

func TestParsePointRejectsGarbage(t *testing.T) {
	_, err := ParsePoint([]byte{0x01, 0x02, 0x03})
	assert.ErrorIs(t, err, ErrInvalidPoint)
}

func TestUncompressedEncoding(t *testing.T) {
	p := ScalarBaseMult(big.NewInt(99))
	u := p.Uncompressed()
	assert.Equal(t, byte(0x04), u[0])

	parsed, err := ParsePoint(u[:])
	require.NoError(t, err)
	assert.True(t, Equal(p, parsed))
}
