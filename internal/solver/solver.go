// Package solver drives the Kangaroo walker fleet: it builds the jump
// table once, seeds the tame/wild herds, advances walkers (CPU
// goroutines or a batched GPU accelerator), and terminates the search
// once a tame/wild collision yields the target private key.
package solver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/accelerator"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/checkpoint"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/curve"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/jumptable"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/registry"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/walker"
)

// DefaultGPUBatchSize and DefaultGPUStepsPerLaunch are this
// implementation's chosen defaults among the three conflicting values
// observed in the original sources (1024/64, 65536/64, 16384/256) —
// see DESIGN.md's Open Questions resolution.
const (
	DefaultGPUBatchSize      = 1024
	DefaultGPUStepsPerLaunch = 64
)

// CheckpointAutoSaveInterval is the monitor's periodic auto-save cadence
// (spec.md §4.6: "periodic 5-minute auto-save by the monitor").
const CheckpointAutoSaveInterval = 5 * time.Minute

// stopCheckInterval is the coarse periodic stop check in the CPU hot
// loop (spec.md §4.2 step 4 / §5), avoiding cache contention on the
// stop flag on every single step.
const stopCheckInterval = 1000

// Config configures a Solver. TargetPubKey must be a 33- or 65-byte
// encoding of the target public key.
type Config struct {
	TargetPubKey []byte
	RangeStart   *big.Int
	RangeEnd     *big.Int

	NumThreads int

	UseGPU            bool
	DPBitsOverride    *int
	GPUBatchSize      int
	GPUStepsPerLaunch int

	Logger *logrus.Logger
	// Rand is the pseudo-random source for jump-table construction and
	// walker seeding. Statistical randomness suffices (spec.md §1
	// Non-goals); tests inject a deterministic source here.
	Rand *rand.Rand
}

// Stats is a read-only snapshot of solver progress.
type Stats struct {
	TotalJumps         uint64
	Duration           time.Duration
	OpsPerSecond       float64
	SecondsRemaining   float64
	SecondsRemainingOK bool
	Found              bool
	PrivateKey         *big.Int
	DistinguishedCount int
}

// Solver is the process-wide driver for one ECDLP search run.
type Solver struct {
	cfg Config

	target     curve.Point
	rangeSize  *big.Int
	table      jumptable.Table
	registry   *registry.Registry
	logger     *logrus.Logger
	rand       *rand.Rand

	dpBits            int
	dpBitsManual      bool
	gpuBatchSize      int
	gpuStepsPerLaunch int

	totalJumps     uint64
	startWallclock time.Time
	loadedDuration float64

	found      atomic.Bool
	shouldStop atomic.Bool

	mu             sync.Mutex
	privateKey     *big.Int
	savedGPUPoints []byte
	savedGPUDists  []byte

	checkpointMu      sync.Mutex
	checkpointPending string
}

// New validates the configuration and builds the jump table. Per
// spec.md §7, a malformed target or range is InvalidInput and fatal at
// startup.
func New(cfg Config) (*Solver, error) {
	if cfg.RangeStart == nil || cfg.RangeEnd == nil {
		return nil, fmt.Errorf("%w: range endpoints required", ErrInvalidInput)
	}
	if cfg.RangeStart.Cmp(cfg.RangeEnd) >= 0 {
		return nil, fmt.Errorf("%w: start range must be less than end range", ErrInvalidInput)
	}

	target, err := curve.ParsePoint(cfg.TargetPubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: target public key: %v", ErrInvalidInput, err)
	}

	numThreads := cfg.NumThreads
	if numThreads <= 0 {
		numThreads = 4
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xC0FFEE))
	}

	rangeSize := new(big.Int).Sub(cfg.RangeEnd, cfg.RangeStart)

	table, err := jumptable.Build(rangeSize, rng)
	if err != nil {
		return nil, fmt.Errorf("%w: jump table construction: %v", ErrCurveOperationFailed, err)
	}

	dpBits := autoTuneDPBits(rangeSize, cfg.UseGPU)
	dpBitsManual := false
	if cfg.DPBitsOverride != nil {
		dpBits = *cfg.DPBitsOverride
		dpBitsManual = true
	}

	batchSize := cfg.GPUBatchSize
	if batchSize <= 0 {
		batchSize = DefaultGPUBatchSize
	}
	steps := cfg.GPUStepsPerLaunch
	if steps <= 0 {
		steps = DefaultGPUStepsPerLaunch
	}

	cfg.NumThreads = numThreads
	s := &Solver{
		cfg:               cfg,
		target:            target,
		rangeSize:         rangeSize,
		table:             table,
		registry:          registry.New(),
		logger:            logger,
		rand:              rng,
		dpBits:            dpBits,
		dpBitsManual:      dpBitsManual,
		gpuBatchSize:      batchSize,
		gpuStepsPerLaunch: steps,
	}
	return s, nil
}

// DPBits returns the effective distinguished-point bit width.
func (s *Solver) DPBits() int { return s.dpBits }

// JumpTable exposes the constructed, read-only jump table (used by the
// accelerator's Init and by tests).
func (s *Solver) JumpTable() jumptable.Table { return s.table }

// RequestStop asks all walkers to stop cooperatively. Safe to call
// concurrently and more than once; the transition is monotonic
// false->true.
func (s *Solver) RequestStop() { s.shouldStop.Store(true) }

// RequestCheckpoint asks the GPU driver loop to write a checkpoint to
// path at its next accelerator call boundary. RunCPU does not act on
// the request; in CPU mode callers call SaveCheckpoint directly since
// there's no batched device state to synchronise with.
func (s *Solver) RequestCheckpoint(path string) {
	s.checkpointMu.Lock()
	s.checkpointPending = path
	s.checkpointMu.Unlock()
}

func (s *Solver) takeRequestedCheckpoint() string {
	s.checkpointMu.Lock()
	defer s.checkpointMu.Unlock()
	path := s.checkpointPending
	s.checkpointPending = ""
	return path
}

// Stats reports the solver's current progress.
func (s *Solver) Stats() Stats {
	duration := s.Duration()
	jumps := atomic.LoadUint64(&s.totalJumps)

	var ops float64
	if duration > 0 {
		ops = float64(jumps) / duration.Seconds()
	}

	remaining, ok := s.estimatedSecondsRemaining(ops, jumps)

	s.mu.Lock()
	pk := s.privateKey
	s.mu.Unlock()

	return Stats{
		TotalJumps:         jumps,
		Duration:           duration,
		OpsPerSecond:       ops,
		SecondsRemaining:   remaining,
		SecondsRemainingOK: ok,
		Found:              s.found.Load(),
		PrivateKey:         pk,
		DistinguishedCount: s.registry.Len(),
	}
}

// Duration returns wall-clock elapsed since the run started plus any
// duration carried over from a loaded checkpoint.
func (s *Solver) Duration() time.Duration {
	elapsed := 0.0
	if !s.startWallclock.IsZero() {
		elapsed = time.Since(s.startWallclock).Seconds()
	}
	return time.Duration((elapsed + s.loadedDuration) * float64(time.Second))
}

func (s *Solver) estimatedSecondsRemaining(opsPerSec float64, jumps uint64) (float64, bool) {
	if opsPerSec <= 0 {
		return 0, false
	}
	expected := expectedTotalOps(s.rangeSize)
	remainingOps := expected - float64(jumps)
	if remainingOps < 0 {
		remainingOps = 0
	}
	return remainingOps / opsPerSec, true
}

// submit funnels a distinguished-point hit into the registry and
// applies a resulting collision to solver state.
func (s *Solver) submit(key [33]byte, distance *big.Int, herd walker.Herd) {
	candidate, found := s.registry.Submit(key, distance, herd, s.target)
	if !found {
		return
	}
	s.mu.Lock()
	s.privateKey = candidate
	s.mu.Unlock()
	s.found.Store(true)
	s.shouldStop.Store(true)
}

// RunCPU implements spec.md §4.4: a fleet of numThreads walkers, split
// into tame/wild herds, each advancing until shouldStop is observed.
func (s *Solver) RunCPU(ctx context.Context) error {
	if s.startWallclock.IsZero() {
		s.startWallclock = time.Now()
	}

	numThreads := s.cfg.NumThreads
	tameCount := (numThreads + 1) / 2
	if tameCount < 1 {
		tameCount = 1
	}
	wildCount := numThreads - tameCount
	if wildCount < 0 {
		wildCount = 0
	}

	s.logger.Infof("starting %d tame and %d wild kangaroos", tameCount, wildCount)

	offsetBound := new(big.Int).Div(s.rangeSize, big.NewInt(100))
	offsetBound.Add(offsetBound, big.NewInt(1))

	var wg sync.WaitGroup
	go func() {
		<-ctx.Done()
		s.RequestStop()
	}()

	for i := 0; i < numThreads; i++ {
		isTame := i < tameCount
		wg.Add(1)
		go func(isTame bool) {
			defer wg.Done()
			s.runCPUWalker(isTame, offsetBound)
		}(isTame)
	}
	wg.Wait()
	return nil
}

func (s *Solver) runCPUWalker(isTame bool, offsetBound *big.Int) {
	offset := randomBigInt(s.rand, offsetBound)

	var st walker.State
	if isTame {
		d0 := new(big.Int).Add(s.cfg.RangeEnd, offset)
		st = walker.NewTame(d0)
	} else {
		st = walker.NewWild(s.target, offset)
	}

	var steps uint64
	for {
		st.Step(s.table, &s.totalJumps)
		steps++

		if walker.IsDistinguished(st.Point, s.dpBits) {
			key := st.Point.Compressed()
			s.submit(key, st.Distance, st.Herd)
			if s.shouldStop.Load() {
				return
			}
		}

		if steps%stopCheckInterval == 0 && s.shouldStop.Load() {
			return
		}
	}
}

// randomBigInt draws a uniform value in [0, bound).
func randomBigInt(rng *rand.Rand, bound *big.Int) *big.Int {
	if bound.Sign() <= 0 {
		return big.NewInt(0)
	}
	bits := bound.BitLen() + 8
	words := (bits + 63) / 64
	buf := make([]byte, words*8)
	for w := 0; w < words; w++ {
		v := rng.Uint64()
		for b := 0; b < 8; b++ {
			buf[w*8+b] = byte(v >> (8 * b))
		}
	}
	raw := new(big.Int).SetBytes(buf)
	return new(big.Int).Mod(raw, bound)
}

// SaveCheckpoint writes a point-in-time consistent checkpoint to path.
func (s *Solver) SaveCheckpoint(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()
	return s.WriteCheckpoint(f)
}

// WriteCheckpoint writes the current snapshot to w.
func (s *Solver) WriteCheckpoint(w io.Writer) error {
	records := s.registry.Snapshot()

	s.mu.Lock()
	gpuPoints := append([]byte(nil), s.savedGPUPoints...)
	gpuDists := append([]byte(nil), s.savedGPUDists...)
	s.mu.Unlock()

	snap := checkpoint.Snapshot{
		TotalJumps:          atomic.LoadUint64(&s.totalJumps),
		Duration:            s.Duration().Seconds(),
		DPBits:              s.dpBits,
		DistinguishedPoints: checkpoint.FromRegistry(records),
		GPUPoints:           gpuPoints,
		GPUDists:            gpuDists,
	}
	return checkpoint.Save(w, snap)
}

// LoadCheckpoint restores solver state from a checkpoint file. A
// corrupt checkpoint abandons the resume and leaves the solver
// untouched (spec.md §7: "must not partially overwrite the live
// registry").
func (s *Solver) LoadCheckpoint(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()

	snap, err := checkpoint.Load(f)
	if err != nil {
		return err
	}

	atomic.StoreUint64(&s.totalJumps, snap.TotalJumps)
	s.loadedDuration += snap.Duration
	if !s.dpBitsManual {
		s.dpBits = snap.DPBits
	}
	s.registry.Restore(snap.ToRecords())

	s.mu.Lock()
	s.savedGPUPoints = snap.GPUPoints
	s.savedGPUDists = snap.GPUDists
	s.mu.Unlock()

	return nil
}

// RunGPU implements spec.md §4.5: a single host thread dispatching
// batched walker steps to acc, honouring the DP_CAP safety clamp and
// processing returned distinguished points through the registry.
func (s *Solver) RunGPU(ctx context.Context, acc accelerator.Accelerator) error {
	if s.startWallclock.IsZero() {
		s.startWallclock = time.Now()
	}

	if err := acc.Init(s.table); err != nil {
		return fmt.Errorf("%w: accelerator init: %v", ErrCurveOperationFailed, err)
	}

	if err := s.SelfTest(acc); err != nil {
		s.logger.Warnf("accelerator integrity self-test failed, continuing: %v", err)
	}

	params := clampGPUParams(gpuParams{BatchSize: s.gpuBatchSize, StepsPerLaunch: s.gpuStepsPerLaunch}, s.dpBits, accelerator.DPCap)
	s.gpuBatchSize, s.gpuStepsPerLaunch = params.BatchSize, params.StepsPerLaunch

	points, dists, err := s.seedGPUBatch()
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.RequestStop()
	}()

	for !s.shouldStop.Load() {
		if path := s.takeRequestedCheckpoint(); path != "" {
			s.mu.Lock()
			s.savedGPUPoints = append([]byte(nil), points...)
			s.savedGPUDists = append([]byte(nil), dists...)
			s.mu.Unlock()
			if err := s.SaveCheckpoint(path); err != nil {
				s.logger.Warnf("checkpoint save failed: %v", err)
			}
		}

		found, err := acc.RunStep(points, dists, s.gpuStepsPerLaunch, s.dpBits)
		if err != nil {
			return fmt.Errorf("%w: accelerator RunStep: %v", ErrCurveOperationFailed, err)
		}

		atomic.AddUint64(&s.totalJumps, uint64(s.gpuBatchSize)*uint64(s.gpuStepsPerLaunch))

		for _, dp := range found {
			p, err := curve.PointFromXY(dp.X, dp.Y)
			if err != nil {
				s.logger.Warnf("accelerator returned unparsable point for slot %d: %v", dp.SlotID, err)
				continue
			}
			if !walker.IsDistinguished(p, s.dpBits) {
				// Accelerator is untrusted for correctness of rarely-hit
				// conditions; re-verify the DP predicate on the host.
				continue
			}

			herd := walker.Tame
			if dp.SlotID%2 == 1 {
				herd = walker.Wild
			}
			distance := curve.BytesToScalar(dp.Distance)
			key := p.Compressed()
			s.submit(key, distance, herd)
			if s.found.Load() {
				break
			}
		}

		if s.found.Load() {
			s.shouldStop.Store(true)
			break
		}
	}

	s.mu.Lock()
	s.savedGPUPoints = append([]byte(nil), points...)
	s.savedGPUDists = append([]byte(nil), dists...)
	s.mu.Unlock()
	return nil
}

func (s *Solver) seedGPUBatch() (points, dists []byte, err error) {
	s.mu.Lock()
	savedPoints, savedDists := s.savedGPUPoints, s.savedGPUDists
	s.mu.Unlock()

	if len(savedPoints) > 0 && len(savedDists) > 0 {
		points, dists, mismatched := checkpoint.ReconcileGPUBuffers(savedPoints, savedDists, s.gpuBatchSize)
		if mismatched {
			s.logger.Warnf("checkpoint GPU batch size mismatch, resized to batch=%d", s.gpuBatchSize)
		}
		return points, dists, nil
	}

	points = make([]byte, s.gpuBatchSize*64)
	dists = make([]byte, s.gpuBatchSize*32)

	for i := 0; i < s.gpuBatchSize; i++ {
		offset := randomBigInt(s.rand, s.rangeSize)
		isTame := i%2 == 0

		var st walker.State
		if isTame {
			d0 := new(big.Int).Add(s.cfg.RangeEnd, offset)
			st = walker.NewTame(d0)
		} else {
			st = walker.NewWild(s.target, offset)
		}

		x, y := st.Point.XY()
		copy(points[i*64:i*64+32], x[:])
		copy(points[i*64+32:i*64+64], y[:])

		db := curve.ScalarToBytes(st.Distance)
		copy(dists[i*32:i*32+32], db[:])
	}
	return points, dists, nil
}

// SelfTest runs the driver's startup integrity check (spec.md §6.2): a
// point-add self-test against a single CPU-computed reference jump, and
// a scalar-add-mod-n self-test.
func (s *Solver) SelfTest(acc accelerator.Accelerator) error {
	entry := s.table.At(0)
	base := curve.Generator()
	want := curve.Add(base, entry.Point)
	wx, wy := want.XY()

	bx, by := base.XY()
	ex, ey := entry.Point.XY()
	a := append(append([]byte{}, bx[:]...), by[:]...)
	b := append(append([]byte{}, ex[:]...), ey[:]...)

	got, err := acc.RunMathTest(accelerator.OpPointAdd, a, b)
	if err != nil {
		return fmt.Errorf("%w: point-add test: %v", ErrAcceleratorIntegrity, err)
	}
	if len(got) != 64 || !bytes.Equal(got[:32], wx[:]) || !bytes.Equal(got[32:], wy[:]) {
		return fmt.Errorf("%w: point-add mismatch", ErrAcceleratorIntegrity)
	}

	sa := curve.ScalarToBytes(big.NewInt(12345))
	sb := curve.ScalarToBytes(big.NewInt(67890))
	wantSum := new(big.Int).Add(big.NewInt(12345), big.NewInt(67890))
	wantSum.Mod(wantSum, curve.GroupOrder)
	wantBytes := curve.ScalarToBytes(wantSum)

	gotSum, err := acc.RunMathTest(accelerator.OpScalarAddModN, sa[:], sb[:])
	if err != nil {
		return fmt.Errorf("%w: scalar-add test: %v", ErrAcceleratorIntegrity, err)
	}
	if len(gotSum) != 32 || !bytes.Equal(gotSum, wantBytes[:]) {
		return fmt.Errorf("%w: scalar-add mismatch", ErrAcceleratorIntegrity)
	}
	return nil
}
