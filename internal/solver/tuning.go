package solver

import (
	"math"
	"math/big"
)

// autoTuneDPBits implements spec.md §4.2's dpBits auto-tuning:
// dpBits = clamp(floor(log2(sqrt(R) / 1e5)), 1, 24), raised to 16 under
// GPU mode when the expected work exceeds 2^20 operations.
func autoTuneDPBits(rangeSize *big.Int, gpuMode bool) int {
	sqrtR := new(big.Int).Sqrt(rangeSize)
	sqrtRd := bigFloat(sqrtR)

	avgSteps := sqrtRd / 100000.0
	if avgSteps < 1.0 {
		avgSteps = 1.0
	}

	dpBits := int(math.Log2(avgSteps))
	if dpBits < 1 {
		dpBits = 1
	}
	if dpBits > 24 {
		dpBits = 24
	}

	if gpuMode {
		expectedOps := sqrtRd * 2.0
		if expectedOps > float64(int64(1)<<20) && dpBits < 16 {
			dpBits = 16
		}
	}
	return dpBits
}

// expectedTotalOps returns the textbook Lambda expectation 2*sqrt(R)
// for one tame/wild pair, the headline figure getEstimatedSecondsRemaining
// measures progress against.
func expectedTotalOps(rangeSize *big.Int) float64 {
	sqrtR := new(big.Int).Sqrt(rangeSize)
	return bigFloat(sqrtR) * 2.0
}

func bigFloat(v *big.Int) float64 {
	f := new(big.Float).SetInt(v)
	out, _ := f.Float64()
	return out
}

// gpuParams holds the batch/step configuration clampGPUParams tunes.
type gpuParams struct {
	BatchSize       int
	StepsPerLaunch  int
}

// minGPUBatch is the SIMD-width floor spec.md §4.5 imposes when
// shrinking batch size during the safety clamp.
const minGPUBatch = 32

// clampGPUParams enforces batch*steps*2^-dpBits <= DPCap/2 (spec.md
// §4.5's "Parameter safety"), shrinking stepsPerLaunch first and then
// batchSize, with a floor of minGPUBatch.
func clampGPUParams(p gpuParams, dpBits int, dpCap int) gpuParams {
	maxHitsPerLaunch := float64(dpCap) / 2.0
	prob := 1.0 / math.Pow(2, float64(dpBits))
	maxTotalSteps := maxHitsPerLaunch / prob

	total := float64(p.BatchSize) * float64(p.StepsPerLaunch)
	if total <= maxTotalSteps {
		return p
	}

	steps := int(maxTotalSteps / float64(p.BatchSize))
	if steps >= 1 {
		p.StepsPerLaunch = steps
		return p
	}

	p.StepsPerLaunch = 1
	batch := int(maxTotalSteps)
	if batch < minGPUBatch {
		batch = minGPUBatch
	}
	p.BatchSize = batch
	return p
}
