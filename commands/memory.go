package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"corp/sysrecon/core"
	"corp/sysrecon/memory"
	"corp/sysrecon/modules"
	"corp/sysrecon/report"
)

var (
	memPID  uint32
	memName string
	memDump string
	memFull bool
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Analyze the memory of one process",
	Long: `Walks the address space of one process, classifies every region, runs the
injection heuristics and the signature matcher, and optionally writes a raw
memory dump.

Examples:
  sysrecon memory --pid 4242
  sysrecon memory --pid 4242 --dump suspect.bin`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if memPID == 0 {
			return usagef("--pid is required")
		}
		return runMemory(cmd.Context())
	},
}

func init() {
	f := memoryCmd.Flags()
	f.Uint32VarP(&memPID, "pid", "p", 0, "process id")
	f.StringVar(&memName, "name", "", "process name for the report (optional)")
	f.StringVarP(&memDump, "dump", "d", "", "write the readable memory of the process to this file")
	f.BoolVar(&memFull, "full", true, "also match signatures in region contents")
	rootCmd.AddCommand(memoryCmd)
}

func runMemory(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg, os.Stderr, time.Now())
	defer log.Close()

	if !core.IsElevated() {
		pterm.Warning.Println("Not running elevated: protected processes cannot be opened.")
	} else if err := core.EnableDebugPrivilege(); err != nil {
		log.Debug("debug privilege unavailable", "reason", err)
	}

	a, err := modules.NewMemoryAnalyzer(cfg, cfg.NewWhitelist(), log)
	if err != nil {
		return err
	}
	mode := core.ScanQuick
	if memFull {
		mode = core.ScanFull
	}
	name := memName
	if name == "" {
		name = "pid " + strconv.FormatUint(uint64(memPID), 10)
	}

	spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start("Analyzing " + name)
	snap, findings, indicators, err := a.AnalyzeProcess(ctx, memPID, name, mode)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return fmt.Errorf("analyze pid %d: %w", memPID, err)
	}

	printSnapshot(snap)
	report.SortFindings(findings)
	r := report.Report{Findings: findings, Indicators: indicators}
	r.Summary.MinSeverity = core.LevelLow.String()
	if err := report.PrintFindings(os.Stdout, r); err != nil {
		return err
	}

	if memDump != "" {
		res, err := a.Dump(ctx, memPID, memDump)
		if err != nil {
			return fmt.Errorf("dump pid %d: %w", memPID, err)
		}
		printDump(res)
	}
	return nil
}

func printSnapshot(s *memory.ProcessMemorySnapshot) {
	if s == nil {
		return
	}
	pterm.DefaultSection.Println(s.Label())
	data := [][]string{
		{"Regions", strconv.Itoa(len(s.Regions))},
		{"Image base", fmt.Sprintf("0x%x", s.ImageBase)},
		{"Executable bytes", strconv.FormatUint(s.ExecutableBytes(), 10)},
		{"Suspicious regions", strconv.Itoa(len(s.SuspiciousRegions()))},
		{"Overall risk", s.OverallRisk().String()},
	}
	pterm.DefaultTable.WithData(data).Render()

	if sus := s.SuspiciousRegions(); len(sus) > 0 {
		rows := [][]string{{"Region", "Level"}}
		for _, sr := range sus {
			rows = append(rows, []string{sr.Region.String(), sr.Level.String()})
		}
		pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	}
}

func printDump(res memory.DumpResult) {
	msg := fmt.Sprintf("Dump written to %s (%d regions, %d bytes)", res.Path, res.Regions, res.Bytes)
	if res.Truncated {
		pterm.Warning.Println(msg + ", truncated at memory.max_dump_size_mb")
		return
	}
	pterm.Success.Println(msg)
}
