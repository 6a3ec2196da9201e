// Command rv32sim runs an RV32IMBAC ELF executable against the
// instruction-set simulator in pkg/rv32, bridging its console and HTIF
// MMIO surface to the host terminal via pkg/hostio.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bassosimone/rv32/pkg/hostio"
	"github.com/bassosimone/rv32/pkg/loader"
	"github.com/bassosimone/rv32/pkg/rv32"
	"github.com/bassosimone/rv32/pkg/tracelog"
)

func main() {
	var (
		debug         bool
		quiet         bool
		branchPenalty uint64
		staticPredict bool
		logPath       string
		memBase       uint32
		memSize       uint32
		singleRAM     bool
		regNum        int
		xv6           bool
		netConsole    bool
	)

	root := &cobra.Command{
		Use:   "rv32sim [flags] <elf-file>",
		Short: "RV32IMBAC instruction-set simulator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(runConfig{
				elfPath:       args[0],
				debug:         debug,
				quiet:         quiet,
				branchPenalty: branchPenalty,
				staticPredict: staticPredict,
				logPath:       logPath,
				memBase:       memBase,
				memSize:       memSize,
				singleRAM:     singleRAM,
				regNum:        regNum,
				xv6:           xv6,
				netConsole:    netConsole,
			})
		},
	}

	flags := root.Flags()
	flags.BoolVarP(&debug, "debug", "d", false, "enable verbose debug logging")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress the simulation summary on exit")
	flags.Uint64VarP(&branchPenalty, "branch", "b", rv32.BranchPenaltyDefault, "cycles charged when control flow leaves the sequential path")
	flags.BoolVarP(&staticPredict, "predict", "p", false, "static branch prediction: backward taken branches cost no penalty, forward taken branches do")
	flags.StringVarP(&logPath, "log", "l", "", "write a per-retirement trace log to this file")
	flags.Uint32VarP(&memBase, "membase", "m", rv32.DefaultDMemBase, "base address of the data memory region")
	flags.Uint32VarP(&memSize, "memsize", "n", rv32.DefaultDMemSize, "size in bytes of the data memory region")
	flags.BoolVarP(&singleRAM, "single", "s", false, "charge the single-port-RAM contention surcharge")
	flags.IntVar(&regNum, "regnum", rv32.REGNUM, "register file size: 32 (RV32I) or 16 (RV32E)")
	flags.BoolVar(&xv6, "xv6", false, "enable the supervisor-shadow CSR group")
	flags.BoolVar(&netConsole, "net", false, "serve the console over a loopback TCP socket instead of the host terminal")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rv32sim:", err)
		os.Exit(1)
	}
}

type runConfig struct {
	elfPath       string
	debug, quiet  bool
	branchPenalty uint64
	staticPredict bool
	logPath       string
	memBase       uint32
	memSize       uint32
	singleRAM     bool
	regNum        int
	xv6           bool
	netConsole    bool
}

// consoleIO is the subset of hostio.Console/hostio.NetConsole that
// run needs, so it can pick either transport behind a single variable.
type consoleIO interface {
	PutChar(b byte)
	GetChar() int32
}

func run(cfg runConfig) error {
	img, err := loader.Load(cfg.elfPath, rv32.DefaultIMemBase, rv32.DefaultIMemSize, cfg.memBase, cfg.memSize)
	if err != nil {
		return err
	}

	var console consoleIO
	if cfg.netConsole {
		nc, err := hostio.ListenNetConsole()
		if err != nil {
			return err
		}
		defer nc.Stop()
		console = nc
	} else {
		c := hostio.NewConsole(os.Stdin, os.Stdout)
		if err := c.Start(); err != nil {
			return err
		}
		defer c.Stop()
		console = c
	}
	htif := hostio.NewHTIF(console, cfg.memBase)

	m := rv32.New(rv32.Config{
		IMemBase:      rv32.DefaultIMemBase,
		DMemBase:      cfg.memBase,
		IMemSize:      rv32.DefaultIMemSize,
		DMemSize:      cfg.memSize,
		RegNum:        cfg.regNum,
		XV6Shadow:     cfg.xv6,
		BranchPenalty: cfg.branchPenalty,
		SingleRAM:     cfg.singleRAM,
		StaticPredict: cfg.staticPredict,
		Host:          htif,
	})
	copy(m.IMem, img.IMem)
	copy(m.DMem, img.DMem)
	m.PC = img.Entry

	if cfg.logPath != "" {
		f, err := os.Create(cfg.logPath)
		if err != nil {
			return fmt.Errorf("rv32sim: opening trace log: %w", err)
		}
		defer f.Close()
		tracer := tracelog.New(tracelog.NewHandler(f))
		m.Trace = func(pc, word, rd, val uint32, wrote bool) {
			name, v := "-", uint32(0)
			if wrote {
				name, v = tracelog.RegName(rd), val
			}
			tracer.Retire(m.CSR.Cycle, pc, word, name, v)
		}
	}

	if cfg.debug {
		fmt.Fprintf(os.Stderr, "rv32sim: loaded %s, entry 0x%08x\n", cfg.elfPath, img.Entry)
	}

	start := time.Now()
	htif.SetBeforeExit(func(code int32) {
		if cfg.quiet {
			return
		}
		printStats(m.Stats(), time.Since(start), code)
	})

	for {
		if err := m.Step(); err != nil {
			return fmt.Errorf("rv32sim: %w", err)
		}
	}
}

// printStats reports the simulation-statistics block of spec.md §7,
// mirroring prog_exit's output in original_source/tools/rvsim.c.
func printStats(s rv32.Stats, elapsed time.Duration, code int32) {
	cpi := float64(s.Cycle) / float64(s.Instret)
	overhead := 100 * float64(s.Overhead) / float64(s.Cycle)
	seconds := elapsed.Seconds()
	mhz := float64(s.Cycle) / seconds / 1e6

	fmt.Fprintf(os.Stderr, "Program terminate\n")
	fmt.Fprintf(os.Stderr, "Excuting %d instructions, %d cycles, %1.3f CPI, %1.3f%% overhead\n",
		s.Instret, s.Cycle, cpi, overhead)
	fmt.Fprintf(os.Stderr, "Simulation statistics:\n")
	fmt.Fprintf(os.Stderr, "  Simulation time:  %1.3f s\n", seconds)
	fmt.Fprintf(os.Stderr, "  Simulation cycles: %d\n", s.Cycle)
	fmt.Fprintf(os.Stderr, "  Simulation speed: %1.3f MHz\n", mhz)
	fmt.Fprintf(os.Stderr, "  Exit code: %d\n", code)
}
