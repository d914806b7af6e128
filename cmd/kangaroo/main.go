// Command kangaroo solves the elliptic-curve discrete logarithm for a
// target secp256k1 public key known to lie within a caller-supplied
// scalar range, using Pollard's Lambda (Kangaroo) algorithm.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/accelerator"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/cliutil"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/config"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/curve"
	"github.com/mahdiidarabi/kangaroo-ecdlp/internal/solver"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kangaroo",
		Short:         "Solve secp256k1 ECDLP within a known interval via Pollard's Lambda",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newSolveCmd())
	root.AddCommand(newSelftestCmd())
	return root
}

func newSolveCmd() *cobra.Command {
	var flags *config.SolveFlags
	cmd := &cobra.Command{
		Use:   "solve <target_pub_hex> <start_range> <end_range>",
		Short: "Search for the private key of a target public key within [start,end)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, args, flags)
		},
	}
	flags = config.BindSolveFlags(cmd)
	return cmd
}

func newSelftestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Run the accelerator math self-test against the CPU reference implementation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelftest(cmd)
		},
	}
}

func runSolve(cmd *cobra.Command, args []string, flags *config.SolveFlags) error {
	logger := logrus.StandardLogger()

	v, err := config.LoadViper(cmd, flags.ConfigFile)
	if err != nil {
		return err
	}

	targetBytes, err := cliutil.HexToBytes(args[0])
	if err != nil {
		return fmt.Errorf("invalid target public key: %w", err)
	}
	startRange, err := cliutil.ParseRange(args[1])
	if err != nil {
		return fmt.Errorf("invalid start range: %w", err)
	}
	endRange, err := cliutil.ParseRange(args[2])
	if err != nil {
		return fmt.Errorf("invalid end range: %w", err)
	}

	threads := v.GetInt("threads")
	if threads <= 0 {
		threads = runtime.NumCPU()
		if threads == 0 {
			threads = 4
		}
	}

	var dpOverride *int
	if dp := v.GetInt("dp"); dp != 0 {
		dpOverride = &dp
	}

	cfg := solver.Config{
		TargetPubKey:      targetBytes,
		RangeStart:        startRange,
		RangeEnd:          endRange,
		NumThreads:        threads,
		UseGPU:            v.GetBool("gpu"),
		DPBitsOverride:    dpOverride,
		GPUBatchSize:      v.GetInt("batch"),
		GPUStepsPerLaunch: v.GetInt("steps"),
		Logger:            logger,
	}

	s, err := solver.New(cfg)
	if err != nil {
		return err
	}

	checkpointPath := v.GetString("checkpoint")
	if checkpointPath == "" {
		checkpointPath = config.DefaultCheckpointPath
	}

	if resume := v.GetString("resume"); resume != "" {
		if err := s.LoadCheckpoint(resume); err != nil {
			logger.Warnf("failed to load checkpoint %s, starting fresh: %v", resume, err)
		} else {
			logger.Infof("resumed from checkpoint %s", resume)
		}
	}

	logger.Infof("dpBits=%d threads=%d gpu=%v", s.DPBits(), threads, cfg.UseGPU)

	if dump, err := config.DumpEffectiveConfig(config.EffectiveConfig{
		Threads:    threads,
		GPU:        cfg.UseGPU,
		DPBits:     v.GetInt("dp"),
		Batch:      v.GetInt("batch"),
		Steps:      v.GetInt("steps"),
		Resume:     v.GetString("resume"),
		Checkpoint: checkpointPath,
	}); err != nil {
		logger.Warnf("failed to render effective config: %v", err)
	} else {
		logger.Debugf("effective configuration:\n%s", dump)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitorGroup, monitorCtx := errgroup.WithContext(ctx)
	monitorGroup.Go(func() error { return monitorProgress(monitorCtx, s, logger) })
	monitorGroup.Go(func() error { return autoCheckpoint(monitorCtx, s, checkpointPath, cfg.UseGPU, logger) })

	sigCh := make(chan os.Signal, 3)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	interrupts := 0
	go func() {
		for range sigCh {
			interrupts++
			switch interrupts {
			case 1:
				logger.Warn("interrupt received, requesting graceful stop and a final checkpoint")
				s.RequestStop()
				if cfg.UseGPU {
					s.RequestCheckpoint(checkpointPath)
				} else if err := s.SaveCheckpoint(checkpointPath); err != nil {
					logger.Warnf("checkpoint save failed: %v", err)
				}
			case 2:
				logger.Warn("second interrupt received, accelerating shutdown")
				cancel()
			default:
				logger.Error("third interrupt received, forcing immediate exit")
				os.Exit(130)
			}
		}
	}()

	var runErr error
	if cfg.UseGPU {
		runErr = s.RunGPU(ctx, accelerator.NewHostSIMDAccelerator())
	} else {
		runErr = s.RunCPU(ctx)
	}

	cancel()
	_ = monitorGroup.Wait()

	if runErr != nil {
		return runErr
	}

	if err := s.SaveCheckpoint(checkpointPath); err != nil {
		logger.Warnf("final checkpoint save failed: %v", err)
	}

	stats := s.Stats()
	if stats.Found {
		logger.Infof("private key found: %s", stats.PrivateKey.Text(16))
		fmt.Printf("[+] private key: 0x%s\n", stats.PrivateKey.Text(16))
		return nil
	}

	logger.Info("search stopped without finding the key")
	return nil
}

func monitorProgress(ctx context.Context, s *solver.Solver, logger *logrus.Logger) error {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st := s.Stats()
			line := cliutil.ProgressLine(st.TotalJumps, expectedOpsFor(s), st.OpsPerSecond, secondsToDuration(st.SecondsRemaining), st.SecondsRemainingOK)
			logger.Info(line)
		}
	}
}

func autoCheckpoint(ctx context.Context, s *solver.Solver, path string, gpuMode bool, logger *logrus.Logger) error {
	ticker := time.NewTicker(solver.CheckpointAutoSaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if gpuMode {
				s.RequestCheckpoint(path)
				continue
			}
			if err := s.SaveCheckpoint(path); err != nil {
				logger.Warnf("periodic checkpoint save failed: %v", err)
			}
		}
	}
}

func expectedOpsFor(s *solver.Solver) float64 {
	// DistinguishedCount/TotalJumps already reflect live progress; the
	// monitor only needs a rough denominator for the percentage figure.
	st := s.Stats()
	if st.OpsPerSecond <= 0 || !st.SecondsRemainingOK {
		return 0
	}
	return float64(st.TotalJumps) + st.SecondsRemaining*st.OpsPerSecond
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

func runSelftest(cmd *cobra.Command) error {
	logger := logrus.StandardLogger()

	// The target key is irrelevant to a math self-test; the generator
	// point is a valid 33-byte compressed public key the solver accepts.
	genKey := curve.Generator().Compressed()
	cfg := solver.Config{
		TargetPubKey: genKey[:],
		RangeStart:   big.NewInt(0x1000),
		RangeEnd:     big.NewInt(0x2000),
		NumThreads:   1,
		UseGPU:       true,
		Logger:       logger,
	}

	s, err := solver.New(cfg)
	if err != nil {
		return err
	}

	acc := accelerator.NewHostSIMDAccelerator()
	if err := acc.Init(s.JumpTable()); err != nil {
		return fmt.Errorf("selftest: accelerator init failed: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.SelfTest(acc) }()

	logger.Info("accelerator math self-test: running")
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("selftest: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("selftest: %w", ctx.Err())
	}

	fmt.Println("accelerator math self-test: reference HostSIMDAccelerator checks out")
	return nil
}
