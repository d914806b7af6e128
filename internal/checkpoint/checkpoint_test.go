package checkpoint

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/walker"
)

func sampleSnapshot() Snapshot {
	var key1, key2 [33]byte
	key1[0] = 0x02
	key1[32] = 0xAA
	key2[0] = 0x03
	key2[32] = 0xBB

	return Snapshot{
		TotalJumps: 4242,
		Duration:   12.5,
		DPBits:     10,
		DistinguishedPoints: []DistinguishedPoint{
			{Key: key1, Distance: big.NewInt(1000), Herd: walker.Tame},
			{Key: key2, Distance: big.NewInt(2000), Herd: walker.Wild},
		},
		GPUPoints: []byte{0xDE, 0xAD, 0xBE, 0xEF},
		GPUDists:  []byte{0x01, 0x02},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	snap := sampleSnapshot()

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, snap))

	got, err := Load(&buf)
	require.NoError(t, err)

	assert.Equal(t, snap.TotalJumps, got.TotalJumps)
	assert.Equal(t, snap.DPBits, got.DPBits)
	assert.InDelta(t, snap.Duration, got.Duration, 1e-9)
	require.Len(t, got.DistinguishedPoints, 2)
	assert.Equal(t, snap.DistinguishedPoints[0].Key, got.DistinguishedPoints[0].Key)
	assert.Equal(t, snap.DistinguishedPoints[0].Distance, got.DistinguishedPoints[0].Distance)
	assert.Equal(t, snap.DistinguishedPoints[0].Herd, got.DistinguishedPoints[0].Herd)
	assert.Equal(t, snap.GPUPoints, got.GPUPoints)
	assert.Equal(t, snap.GPUDists, got.GPUDists)
}

func TestLoadRejectsMissingV1Tag(t *testing.T) {
	_, err := Load(strings.NewReader("TOTAL_JUMPS 1\n"))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadRejectsEmptyFile(t *testing.T) {
	_, err := Load(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadRejectsTruncatedDistinguishedPoints(t *testing.T) {
	in := "V1\nDISTINGUISHED_POINTS 2\n" + strings.Repeat("0", 66) + " a 1\n"
	_, err := Load(strings.NewReader(in))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadRejectsMalformedDistanceHex(t *testing.T) {
	in := "V1\nDISTINGUISHED_POINTS 1\n" + strings.Repeat("0", 66) + " zzzz 1\n"
	_, err := Load(strings.NewReader(in))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadNeverReturnsPartialSnapshotOnError(t *testing.T) {
	in := "V1\nTOTAL_JUMPS 999\nDISTINGUISHED_POINTS 1\nnotavalidline\n"
	snap, err := Load(strings.NewReader(in))
	assert.Error(t, err)
	assert.Equal(t, Snapshot{}, snap)
}

func TestToRecordsAndFromRegistryRoundTrip(t *testing.T) {
	snap := sampleSnapshot()
	records := snap.ToRecords()
	assert.Len(t, records, 2)

	back := FromRegistry(records)
	assert.Len(t, back, 2)
}

func TestReconcileGPUBuffersExactMatch(t *testing.T) {
	points := make([]byte, 2*64)
	dists := make([]byte, 2*32)
	outP, outD, mismatched := ReconcileGPUBuffers(points, dists, 2)
	assert.False(t, mismatched)
	assert.Len(t, outP, 128)
	assert.Len(t, outD, 64)
}

func TestReconcileGPUBuffersTruncatesOversized(t *testing.T) {
	points := make([]byte, 10*64)
	dists := make([]byte, 10*32)
	outP, outD, mismatched := ReconcileGPUBuffers(points, dists, 4)
	assert.True(t, mismatched)
	assert.Len(t, outP, 4*64)
	assert.Len(t, outD, 4*32)
}

func TestReconcileGPUBuffersPadsUndersized(t *testing.T) {
	points := make([]byte, 1*64)
	dists := make([]byte, 1*32)
	outP, outD, mismatched := ReconcileGPUBuffers(points, dists, 4)
	assert.True(t, mismatched)
	assert.Len(t, outP, 4*64)
	assert.Len(t, outD, 4*32)
}
