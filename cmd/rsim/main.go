// Package main provides the entry point for RSIM, a cycle-accurate
// multiprocessor simulator for out-of-order SPARC-V9 nodes connected by
// a wormhole-routed mesh with a coherent cache/directory hierarchy.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/sarchlab/rsim/config"
	"github.com/sarchlab/rsim/emu"
	"github.com/sarchlab/rsim/loader"
	"github.com/sarchlab/rsim/system"
)

var (
	configPath = flag.String("config", "", "path to a JSON configuration file overriding the defaults")
	numProcs   = flag.Int("num-procs", 0, "override the configured processor count (0 keeps the config/default value)")
	maxCycles  = flag.Uint64("max-cycles", 1_000_000, "stop after this many simulated cycles if the program has not halted")
	verbose    = flag.Bool("v", false, "verbose logging")
)

func main() {
	flag.Parse()
	if flag.NArg() < 2 {
		fmt.Fprintf(os.Stderr, "Usage: rsim [options] <instructions.bin> <image.bin>\n\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("loading configuration", slog.String("err", err.Error()))
		os.Exit(1)
	}
	if *numProcs > 0 {
		cfg.NumProcs = *numProcs
	}

	exitCode, err := run(cfg, flag.Arg(0), flag.Arg(1))
	if err != nil {
		slog.Error("simulation aborted", slog.String("err", err.Error()))
		os.Exit(1)
	}
	os.Exit(exitCode)
}

func loadConfig() (*config.Config, error) {
	if *configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(*configPath)
}

func run(cfg *config.Config, instrPath, imagePath string) (int, error) {
	prog, err := loader.LoadInstructions(instrPath)
	if err != nil {
		return 0, err
	}
	img, err := loader.LoadImage(imagePath)
	if err != nil {
		return 0, err
	}

	mem := emu.NewMemory(img.LowShared, img.InitialSP)
	for _, seg := range img.Segments {
		mem.MapSegment(seg.VirtAddr, seg.Data)
	}

	sys, err := system.New(cfg, prog, mem)
	if err != nil {
		return 0, err
	}

	slog.Info("starting simulation",
		slog.Int("num_procs", cfg.NumProcs),
		slog.String("consistency_model", string(cfg.ConsistencyModel)),
		slog.Uint64("max_cycles", *maxCycles))

	if err := sys.Run(*maxCycles); err != nil {
		return 0, err
	}

	printReport(sys)

	exitCode := 0
	for _, p := range sys.Procs {
		if p.LastException() != nil {
			exitCode = 1
		} else if p.ExitCode() != 0 {
			exitCode = p.ExitCode()
		}
	}
	return exitCode, nil
}

// printReport renders the textual statistics report spec.md §6 Outputs
// names: per-processor counters, per-cache hit rate and latency, plus
// the shared directory, bus, and network counters.
func printReport(sys *system.System) {
	fmt.Printf("\nSimulated cycles: %g\n", sys.Cycles())

	for _, p := range sys.Procs {
		st := p.Stats()
		var ipc float64
		if st.CyclesElapsed > 0 {
			ipc = float64(st.InstructionsRetired) / float64(st.CyclesElapsed)
		}
		fmt.Printf("\nProcessor %d:\n", p.ID)
		fmt.Printf("  Instructions retired: %d\n", st.InstructionsRetired)
		fmt.Printf("  IPC:                  %.3f\n", ipc)
		fmt.Printf("  Branch mispredicts:   %d\n", st.BranchMispredicts)
		fmt.Printf("  Squashes:             %d\n", st.Squashes)
		fmt.Printf("  Window overflows:     %d\n", st.WindowOverflows)
		fmt.Printf("  Exceptions:           %d\n", st.Exceptions)
		if exc := p.LastException(); exc != nil {
			fmt.Printf("  Halted on exception:  %v\n", exc)
		}

		cstat := p.L1.Stats()
		total := cstat.Hits + cstat.Misses
		var hitRate float64
		if total > 0 {
			hitRate = float64(cstat.Hits) / float64(total)
		}
		fmt.Printf("  L1 hit rate:          %.3f (%d hits / %d accesses)\n", hitRate, cstat.Hits, total)
		fmt.Printf("  L1 mean latency:      %.2f cycles\n", p.L1.LatencyStats().Mean())
		fmt.Printf("  L1 prefetched late:   %d\n", cstat.PrefetchedLate)
	}

	dstat := sys.Dir.Stats()
	fmt.Printf("\nDirectory:\n")
	fmt.Printf("  Requests:      %d\n", dstat.Requests)
	fmt.Printf("  Invalidations: %d\n", dstat.Invalidations)
	fmt.Printf("  Forwards:      %d\n", dstat.Forwards)
	fmt.Printf("  Upgrades:      %d\n", dstat.Upgrades)

	fmt.Printf("\nBus:\n")
	fmt.Printf("  Mean lanes in use: %.2f\n", sys.Bus.Occupancy.Mean())

	fmt.Printf("\nNetwork:\n")
	fmt.Printf("  Packets delivered: %d\n", sys.Mesh.Delivered)
	fmt.Printf("  Hops traveled:     %d\n", sys.Mesh.HopsTraveled)
	fmt.Printf("  Mean packet size:  %.2f flits\n", sys.Mesh.SizeHist.Mean())
	fmt.Printf("  Mean hop count:    %.2f\n", sys.Mesh.HopHist.Mean())
}
