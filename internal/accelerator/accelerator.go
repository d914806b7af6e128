// Package accelerator defines the narrow capability the solver's GPU
// mode drives: a batched walker-step function and an integrity
// self-test, plus a no-op implementation for CPU-only builds and a
// pure-Go reference implementation standing in for a real GPU kernel
// (out of scope for this repository — see spec.md §1).
package accelerator

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/curve"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/jumptable"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/walker"
)

// ErrGPUUnavailable is returned by every NoopAccelerator method.
var ErrGPUUnavailable = errors.New("accelerator: GPU backend not available")

// MathOp identifies a runMathTest operation.
type MathOp int

const (
	OpPointAdd MathOp = iota
	OpPointMul
	OpModularInverse
	OpScalarAddModN
)

// FoundDP is one slot's distinguished-point hit within a RunStep batch.
type FoundDP struct {
	SlotID   uint32
	X        [32]byte
	Y        [32]byte
	Distance [32]byte
}

// Accelerator is the capability the driver consumes in GPU mode.
type Accelerator interface {
	// Init ingests the jump table; subsequent calls may assume it is
	// constant for the life of the accelerator.
	Init(table jumptable.Table) error

	// RunStep advances every slot by steps jumps in place and returns
	// every slot that hit a distinguished point at any point during the
	// batch (first hit only, per slot). points is batch*64 bytes
	// (uncompressed affine X||Y per slot); distances is batch*32 bytes.
	RunStep(points, distances []byte, steps, dpBits int) ([]FoundDP, error)

	// RunMathTest runs a single reference operation, used only by the
	// driver's startup integrity self-test.
	RunMathTest(op MathOp, a, b []byte) ([]byte, error)
}

// NoopAccelerator is the default CPU-only capability: every call fails
// with ErrGPUUnavailable so a CPU build never silently no-ops a solve.
type NoopAccelerator struct{}

func (NoopAccelerator) Init(jumptable.Table) error { return ErrGPUUnavailable }

func (NoopAccelerator) RunStep(points, distances []byte, steps, dpBits int) ([]FoundDP, error) {
	return nil, ErrGPUUnavailable
}

func (NoopAccelerator) RunMathTest(op MathOp, a, b []byte) ([]byte, error) {
	return nil, ErrGPUUnavailable
}

// DPCap bounds the number of distinguished-point hits a single RunStep
// call may return, per spec.md §4.5's DP_CAP parameter-safety rule.
const DPCap = 4096

// HostSIMDAccelerator is a pure-Go reference "accelerator": it performs
// the same jump walk as internal/walker but over flat byte arrays, the
// layout a real GPU kernel would use. It exists so the driver's batched
// code path and its self-test have something real to exercise; the
// actual GPU kernel is out of scope (spec.md §1).
type HostSIMDAccelerator struct {
	table jumptable.Table
	ready bool
}

func NewHostSIMDAccelerator() *HostSIMDAccelerator {
	return &HostSIMDAccelerator{}
}

func (h *HostSIMDAccelerator) Init(table jumptable.Table) error {
	h.table = table
	h.ready = true
	return nil
}

func (h *HostSIMDAccelerator) RunStep(points, distances []byte, steps, dpBits int) ([]FoundDP, error) {
	if !h.ready {
		return nil, fmt.Errorf("accelerator: RunStep called before Init")
	}
	if len(points)%64 != 0 || len(distances)%32 != 0 {
		return nil, fmt.Errorf("accelerator: malformed batch buffers")
	}
	batch := len(points) / 64
	if batch != len(distances)/32 {
		return nil, fmt.Errorf("accelerator: points/distances batch size mismatch")
	}

	var found []FoundDP
	for slot := 0; slot < batch; slot++ {
		var x, y, d [32]byte
		copy(x[:], points[slot*64:slot*64+32])
		copy(y[:], points[slot*64+32:slot*64+64])
		copy(d[:], distances[slot*32:slot*32+32])

		p, err := curve.PointFromXY(x, y)
		if err != nil {
			return nil, fmt.Errorf("accelerator: slot %d: %w", slot, err)
		}
		dist := curve.BytesToScalar(d)

		var hit *FoundDP
		for step := 0; step < steps; step++ {
			idx := h.table.Index(p)
			entry := h.table.At(idx)
			p = curve.Add(p, entry.Point)
			dist = new(big.Int).Add(dist, entry.Delta)

			if hit == nil && walker.IsDistinguished(p, dpBits) {
				nx, ny := p.XY()
				hit = &FoundDP{
					SlotID:   uint32(slot),
					X:        nx,
					Y:        ny,
					Distance: curve.ScalarToBytes(new(big.Int).Set(dist)),
				}
			}
		}

		nx, ny := p.XY()
		copy(points[slot*64:slot*64+32], nx[:])
		copy(points[slot*64+32:slot*64+64], ny[:])
		nd := curve.ScalarToBytes(dist)
		copy(distances[slot*32:slot*32+32], nd[:])

		if hit != nil && len(found) < DPCap {
			found = append(found, *hit)
		}
	}
	return found, nil
}

func (h *HostSIMDAccelerator) RunMathTest(op MathOp, a, b []byte) ([]byte, error) {
	switch op {
	case OpPointAdd:
		pa, err := pointFromUncompressedXY(a)
		if err != nil {
			return nil, err
		}
		pb, err := pointFromUncompressedXY(b)
		if err != nil {
			return nil, err
		}
		sum := curve.Add(pa, pb)
		x, y := sum.XY()
		return append(x[:], y[:]...), nil

	case OpPointMul:
		k := new(big.Int).SetBytes(a)
		p := curve.ScalarBaseMult(k)
		x, y := p.XY()
		return append(x[:], y[:]...), nil

	case OpModularInverse:
		k := new(big.Int).SetBytes(a)
		inv := new(big.Int).ModInverse(k, curve.GroupOrder)
		if inv == nil {
			return nil, fmt.Errorf("accelerator: no modular inverse")
		}
		out := curve.ScalarToBytes(inv)
		return out[:], nil

	case OpScalarAddModN:
		x := new(big.Int).SetBytes(a)
		y := new(big.Int).SetBytes(b)
		sum := new(big.Int).Add(x, y)
		sum.Mod(sum, curve.GroupOrder)
		out := curve.ScalarToBytes(sum)
		return out[:], nil

	default:
		return nil, fmt.Errorf("accelerator: unknown math op %d", op)
	}
}

func pointFromUncompressedXY(b []byte) (curve.Point, error) {
	if len(b) != 64 {
		return curve.Point{}, fmt.Errorf("accelerator: expected 64-byte X||Y, got %d", len(b))
	}
	var x, y [32]byte
	copy(x[:], b[:32])
	copy(y[:], b[32:])
	return curve.PointFromXY(x, y)
}
