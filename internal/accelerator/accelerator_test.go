package accelerator

import (
	"math/big"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/curve"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/jumptable"
)

func TestNoopAcceleratorAlwaysFails(t *testing.T) {
	var a NoopAccelerator
	assert.ErrorIs(t, a.Init(jumptable.Table{}), ErrGPUUnavailable)

	_, err := a.RunStep(nil, nil, 1, 8)
	assert.ErrorIs(t, err, ErrGPUUnavailable)

	_, err = a.RunMathTest(OpPointAdd, nil, nil)
	assert.ErrorIs(t, err, ErrGPUUnavailable)
}

func buildTable(t *testing.T) jumptable.Table {
	table, err := jumptable.Build(big.NewInt(1<<20), rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	return table
}

func TestHostSIMDRunMathTestPointAdd(t *testing.T) {
	h := NewHostSIMDAccelerator()
	require.NoError(t, h.Init(buildTable(t)))

	g := curve.Generator()
	gx, gy := g.XY()
	ab := append(append([]byte{}, gx[:]...), gy[:]...)

	got, err := h.RunMathTest(OpPointAdd, ab, ab)
	require.NoError(t, err)

	want := curve.Add(g, g)
	wx, wy := want.XY()
	assert.Equal(t, append(wx[:], wy[:]...), got)
}

func TestHostSIMDRunMathTestScalarAddModN(t *testing.T) {
	h := NewHostSIMDAccelerator()
	require.NoError(t, h.Init(buildTable(t)))

	a := curve.ScalarToBytes(big.NewInt(5))
	b := curve.ScalarToBytes(big.NewInt(7))

	got, err := h.RunMathTest(OpScalarAddModN, a[:], b[:])
	require.NoError(t, err)
	assert.Equal(t, curve.BytesToScalar([32]byte(got[:32])).Int64(), int64(12))
}

func TestHostSIMDRunMathTestUnknownOp(t *testing.T) {
	h := NewHostSIMDAccelerator()
	require.NoError(t, h.Init(buildTable(t)))
	_, err := h.RunMathTest(MathOp(999), nil, nil)
	assert.Error(t, err)
}

func TestHostSIMDRunStepRequiresInit(t *testing.T) {
	h := NewHostSIMDAccelerator()
	_, err := h.RunStep(make([]byte, 64), make([]byte, 32), 1, 8)
	assert.Error(t, err)
}

func TestHostSIMDRunStepMatchesWalkerStep(t *testing.T) {
	table := buildTable(t)
	h := NewHostSIMDAccelerator()
	require.NoError(t, h.Init(table))

	start := curve.ScalarBaseMult(big.NewInt(314159))
	x, y := start.XY()
	points := append(append([]byte{}, x[:]...), y[:]...)
	dist := curve.ScalarToBytes(big.NewInt(314159))
	distances := append([]byte{}, dist[:]...)

	// dpBits=0 means every point trivially "hits"; steps=1 advances by
	// exactly one jump-table hop, matching a single walker.Step call.
	found, err := h.RunStep(points, distances, 1, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)

	idx := table.Index(start)
	entry := table.At(idx)
	wantPoint := curve.Add(start, entry.Point)
	wantDist := new(big.Int).Add(big.NewInt(314159), entry.Delta)

	var gotX, gotY [32]byte
	copy(gotX[:], points[:32])
	copy(gotY[:], points[32:64])
	gotPoint, err := curve.PointFromXY(gotX, gotY)
	require.NoError(t, err)

	assert.True(t, curve.Equal(gotPoint, wantPoint))
	var gotDistBytes [32]byte
	copy(gotDistBytes[:], distances[:32])
	assert.Equal(t, wantDist, curve.BytesToScalar(gotDistBytes))
}

func TestHostSIMDRunStepRejectsMalformedBuffers(t *testing.T) {
	h := NewHostSIMDAccelerator()
	require.NoError(t, h.Init(buildTable(t)))
	_, err := h.RunStep(make([]byte, 63), make([]byte, 32), 1, 8)
	assert.Error(t, err)
}
