package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tliron/commonlog"

	"github.com/limitly-lang/limitly/internal/cli"
	"github.com/limitly-lang/limitly/internal/config"
	"github.com/limitly-lang/limitly/internal/runtime"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version information")
		showHelp    = flag.Bool("help", false, "show help information")
		jsonOutput  = flag.Bool("json", false, "output report in JSON format")
		configPath  = flag.String("config", "", "runtime configuration file (YAML)")
		workers     = flag.Int("workers", 4, "concurrent workload goroutines")
		iterations  = flag.Int("iterations", 1000, "workload rounds per worker")
		audit       = flag.Bool("audit", false, "force audit mode on regardless of configuration")
		leak        = flag.Int("leak", 0, "intentionally leak N allocations per worker")
		serve       = flag.String("serve", "", "serve metrics on this address until interrupted (overrides configuration)")
		snapshot    = flag.String("snapshot", "", "write a CBOR analyzer snapshot to this file")
		verbose     = flag.Bool("verbose", false, "verbose output")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Limitly memory subsystem stress and diagnostic tool.\n\n")
		fmt.Fprintf(os.Stderr, "Runs a mixed allocation workload (raw blocks, region slots, linear\n")
		fmt.Fprintf(os.Stderr, "moves, counted references) against a configured memory manager and\n")
		fmt.Fprintf(os.Stderr, "prints the resulting statistics and leak report.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s -workers 8 -iterations 5000        # Heavy concurrent workload\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config limitly.yaml -audit         # Audited run with custom config\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -audit -leak 3                      # Exercise the leak report\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -serve localhost:9187               # Keep serving metrics after the run\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -snapshot run.cbor -json            # Machine-readable output\n", os.Args[0])
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		cli.PrintVersion("Limitly Memory Profiler", *jsonOutput)
		os.Exit(0)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			cli.ExitWithError("%v", err)
		}
		cfg = loaded
	}
	if *audit {
		cfg.Audit.Enabled = true
	}
	if *serve != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = *serve
	}

	commonlog.Configure(cfg.Verbosity(), nil)

	stress := &Stress{
		Config:       cfg,
		Workers:      *workers,
		Iterations:   *iterations,
		Leak:         *leak,
		Serve:        *serve != "" || cfg.Metrics.Enabled,
		SnapshotFile: *snapshot,
		JSON:         *jsonOutput,
		Verbose:      *verbose,
	}

	if err := stress.Run(); err != nil {
		cli.ExitWithError("memory profiling failed: %v", err)
	}
}

type Stress struct {
	Config       *config.Config
	Workers      int
	Iterations   int
	Leak         int
	Serve        bool
	SnapshotFile string
	JSON         bool
	Verbose      bool
}

type Report struct {
	AllocatorKind string       `json:"allocator_kind"`
	AuditMode     bool         `json:"audit_mode"`
	Workers       int          `json:"workers"`
	Iterations    int          `json:"iterations"`
	Duration      string       `json:"duration"`
	Allocations   uint64       `json:"allocations"`
	Frees         uint64       `json:"frees"`
	BytesInUse    uint64       `json:"bytes_in_use"`
	PeakLiveBytes int64        `json:"peak_live_bytes"`
	Regions       int          `json:"regions"`
	LiveObjects   int          `json:"live_objects"`
	DoubleFrees   uint64       `json:"double_frees"`
	Leaks         []LeakReport `json:"leaks,omitempty"`
	SnapshotFile  string       `json:"snapshot_file,omitempty"`
}

type LeakReport struct {
	Address string `json:"address"`
	Size    uint64 `json:"size_bytes"`
	Age     string `json:"age"`
}

func (s *Stress) Run() error {
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}
	if s.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", s.Iterations)
	}

	manager, err := runtime.NewManager(
		runtime.WithAllocatorKind(s.Config.AllocatorKind()),
		runtime.WithAllocatorOptions(s.Config.AllocatorOptions()...),
		runtime.WithAuditMode(s.Config.Audit.Enabled),
	)
	if err != nil {
		return fmt.Errorf("building memory manager: %w", err)
	}

	for _, name := range s.Config.Regions.Preopen {
		manager.OpenRegion(name)
	}

	var stopMetrics func(ctx context.Context) error
	if s.Serve {
		bound, stop, err := runtime.StartMetricsServer(s.Config.Metrics.Address, runtime.ManagerCollectors(manager))
		if err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}
		stopMetrics = stop
		fmt.Printf("Serving metrics at http://%s/metrics\n", bound)
	}

	if s.Verbose {
		fmt.Printf("Running %d workers x %d iterations (allocator: %s, audit: %v)\n",
			s.Workers, s.Iterations, s.Config.Allocator.Kind, s.Config.Audit.Enabled)
	}

	start := time.Now()
	if err := s.workload(manager); err != nil {
		return err
	}
	elapsed := time.Since(start)

	if s.Serve {
		fmt.Printf("\nWorkload complete, metrics still being served. Press Ctrl+C to stop.\n")
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		signal.Stop(sig)
	}

	report := s.buildReport(manager, elapsed)

	if s.SnapshotFile != "" {
		if err := s.writeSnapshot(manager); err != nil {
			return err
		}
		report.SnapshotFile = s.SnapshotFile
	}

	if err := s.printReport(report); err != nil {
		return err
	}

	if stopMetrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stopMetrics(ctx); err != nil {
			return fmt.Errorf("stopping metrics server: %w", err)
		}
	}

	return manager.Shutdown()
}

// workload spreads a mixed allocation pattern across Workers goroutines.
// Every worker exercises the raw allocator, region slots with scopes,
// linear moves, and counted references. The first worker error wins.
func (s *Stress) workload(manager *runtime.MemoryManager) error {
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}

	for w := 0; w < s.Workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := s.worker(manager, id); err != nil {
				fail(fmt.Errorf("worker %d: %w", id, err))
			}
		}(w)
	}

	wg.Wait()

	return firstErr
}

func (s *Stress) worker(manager *runtime.MemoryManager, id int) error {
	rng := rand.New(rand.NewSource(int64(id)*7919 + 1))
	region := manager.OpenRegion(fmt.Sprintf("stress-%d", id))

	leakBudget := s.Leak

	for i := 0; i < s.Iterations; i++ {
		switch i % 4 {
		case 0:
			size := uintptr(8 + rng.Intn(504))
			ptr, err := manager.Allocate(size)
			if err != nil {
				return err
			}
			if leakBudget > 0 {
				leakBudget--

				continue
			}
			if err := manager.Deallocate(ptr); err != nil {
				return err
			}

		case 1:
			region.EnterScope()
			handles := make([]runtime.Handle, 0, 8)
			for j := 0; j < 8; j++ {
				h, err := region.Create(rng.Intn(1 << 16))
				if err != nil {
					return err
				}
				handles = append(handles, h)
			}
			for _, h := range handles[:4] {
				if _, err := region.Get(h); err != nil {
					return err
				}
				if err := region.Set(h, rng.Intn(1<<16)); err != nil {
					return err
				}
			}
			region.ExitScope()

		case 2:
			lin, err := runtime.NewLinear(region, fmt.Sprintf("payload-%d-%d", id, i))
			if err != nil {
				return err
			}
			moved, err := lin.Move()
			if err != nil {
				return err
			}
			if _, err := moved.Value(); err != nil {
				return err
			}
			moved.Release()

		case 3:
			ref, err := runtime.NewRef(region, i)
			if err != nil {
				return err
			}
			clone := ref.Clone()
			if clone == nil {
				return fmt.Errorf("clone of live reference returned nil")
			}
			if _, err := clone.Deref(); err != nil {
				return err
			}
			ref.Release()
			clone.Release()
		}
	}

	if _, err := manager.CloseRegion(region.ID()); err != nil {
		return err
	}

	return nil
}

func (s *Stress) buildReport(manager *runtime.MemoryManager, elapsed time.Duration) *Report {
	stats := manager.Stats()

	report := &Report{
		AllocatorKind: s.Config.Allocator.Kind,
		AuditMode:     manager.AuditMode(),
		Workers:       s.Workers,
		Iterations:    s.Iterations,
		Duration:      elapsed.String(),
		Allocations:   stats.Allocator.AllocationCount,
		Frees:         stats.Allocator.FreeCount,
		BytesInUse:    uint64(stats.Allocator.BytesInUse),
		PeakLiveBytes: stats.Analyzer.PeakLiveBytes,
		Regions:       stats.Regions,
		LiveObjects:   stats.LiveObjects,
		DoubleFrees:   stats.Analyzer.DoubleFrees,
	}

	now := time.Now()
	for _, rec := range manager.CheckLeaks() {
		report.Leaks = append(report.Leaks, LeakReport{
			Address: fmt.Sprintf("0x%x", rec.Address),
			Size:    uint64(rec.Size),
			Age:     now.Sub(time.Unix(0, rec.Timestamp)).Round(time.Millisecond).String(),
		})
	}

	return report
}

func (s *Stress) writeSnapshot(manager *runtime.MemoryManager) error {
	snap := manager.Analyzer().Snapshot()

	data, err := runtime.MarshalSnapshot(&snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	if err := os.WriteFile(s.SnapshotFile, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	return nil
}

func (s *Stress) printReport(report *Report) error {
	if s.JSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))

		return nil
	}

	fmt.Printf("\nWorkload completed in %s\n", report.Duration)
	fmt.Printf("Allocator: %s (audit: %v)\n", report.AllocatorKind, report.AuditMode)
	fmt.Printf("Workers: %d x %d iterations\n", report.Workers, report.Iterations)
	fmt.Printf("Allocations: %d, frees: %d\n", report.Allocations, report.Frees)
	fmt.Printf("Bytes in use: %d (peak live: %d)\n", report.BytesInUse, report.PeakLiveBytes)
	fmt.Printf("Open regions: %d, live objects: %d\n", report.Regions, report.LiveObjects)

	if report.DoubleFrees > 0 {
		fmt.Printf("Double frees detected: %d\n", report.DoubleFrees)
	}

	if len(report.Leaks) == 0 {
		fmt.Printf("No leaked allocations.\n")
	} else {
		fmt.Printf("\nLeaked allocations (%d):\n", len(report.Leaks))
		for _, leak := range report.Leaks {
			fmt.Printf("  %s  %6d bytes  age %s\n", leak.Address, leak.Size, leak.Age)
		}
	}

	if report.SnapshotFile != "" {
		fmt.Printf("\nSnapshot written to: %s\n", report.SnapshotFile)
	}

	return nil
}
