package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"corp/sysrecon/config"
	"corp/sysrecon/core"
	"corp/sysrecon/modules"
	"corp/sysrecon/report"
)

type scanFlags struct {
	quick   bool
	modules string
	memory  bool
	timeout int
	formats string
}

var scanOpts scanFlags

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a full or quick audit of this host",
	Long: `Runs the enabled modules in order (accounts, services, processes, network,
registry, memory), then writes the report to the output directory.

Examples:
  sysrecon scan
  sysrecon scan --quick
  sysrecon scan --modules services,registry --format json
  sysrecon scan --memory --timeout 900 -o C:\audit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd.Context(), scanOpts)
	},
}

func init() {
	f := scanCmd.Flags()
	f.BoolVarP(&scanOpts.quick, "quick", "q", false, "quick scan (reduced per-module workload)")
	f.StringVarP(&scanOpts.modules, "modules", "m", "", "comma separated modules to run: "+moduleNames())
	f.BoolVar(&scanOpts.memory, "memory", false, "enable the memory analyzer")
	f.IntVarP(&scanOpts.timeout, "timeout", "t", 0, "scan time budget in seconds (overrides general.timeout_seconds)")
	f.StringVarP(&scanOpts.formats, "format", "f", "", "comma separated report formats: json,csv,html")
	rootCmd.AddCommand(scanCmd)
}

func moduleNames() string {
	names := make([]string, 0, len(core.AllModules()))
	for _, k := range core.AllModules() {
		names = append(names, k.String())
	}
	return strings.Join(names, ",")
}

// parseModuleList: "services, registry" -> kinds, unknown name = usage error.
func parseModuleList(s string) ([]core.ModuleKind, error) {
	var out []core.ModuleKind
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := core.ParseModuleKind(part)
		if err != nil {
			return nil, usagef("--modules: %v (valid: %s)", err, moduleNames())
		}
		out = append(out, k)
	}
	if len(out) == 0 {
		return nil, usagef("--modules: no module given")
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// applyScanFlags menimpa konfigurasi dengan flag scan lalu memvalidasi ulang.
func applyScanFlags(cfg *config.Config, f scanFlags) error {
	if f.modules != "" {
		kinds, err := parseModuleList(f.modules)
		if err != nil {
			return err
		}
		cfg.EnableOnly(kinds...)
	}
	if f.memory {
		cfg.Memory.Enabled = true
	}
	if f.timeout != 0 {
		cfg.General.TimeoutSeconds = f.timeout
	}
	if f.formats != "" {
		cfg.Output.Formats = splitList(f.formats)
	}
	if err := cfg.Validate(); err != nil {
		return usageError{msg: err.Error()}
	}
	return nil
}

func runScan(ctx context.Context, f scanFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyScanFlags(cfg, f); err != nil {
		return err
	}

	printBanner()
	start := time.Now()
	log := newLogger(cfg, os.Stderr, start)
	defer log.Close()

	if cfg.General.RequireAdmin && !core.IsElevated() {
		pterm.Warning.Println("Not running elevated: protected processes, services and keys will be skipped and the report will be partial.")
	}

	sc := core.NewScanner(core.Options{
		OutputDir: cfg.Output.Directory,
		Timeout:   cfg.Timeout(),
		Factories: modules.Factories(cfg, cfg.NewWhitelist(), log),
		Logger:    log,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	// Ctrl+C -> cancel kooperatif, report parsial tetap ditulis
	stopCancel := context.AfterFunc(ctx, sc.Cancel)
	defer stopCancel()

	if err := sc.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize scanner: %w", err)
	}
	if len(sc.Modules()) == 0 {
		return errors.New("no module could be initialized on this host")
	}

	events, unsubscribe := sc.Subscribe(32)
	var sum core.ScanSummary
	g := new(errgroup.Group)
	g.Go(func() error {
		defer unsubscribe()
		var err error
		if f.quick {
			sum, err = sc.RunQuickScan(ctx)
		} else {
			sum, err = sc.RunFullScan(ctx)
		}
		return err
	})
	g.Go(func() error {
		return renderProgress(events, len(sc.Modules()))
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	r := report.Generate(sum, sc.Results(), sc.Indicators(), sc.Skipped(),
		report.CollectMetadata(Version, sum.StartedAt), cfg.MinSeverity())
	paths, werr := report.WriteFiles(cfg.Output.Directory, r, cfg.Output.Formats, cfg.Output.Pretty)

	pterm.DefaultSection.Println("Findings")
	if err := report.PrintFindings(os.Stdout, r); err != nil {
		return err
	}
	pterm.DefaultSection.Println("Summary")
	if err := report.PrintSummary(os.Stdout, r); err != nil {
		return err
	}
	for _, p := range paths {
		pterm.Info.Println("Report written to " + p)
	}
	if werr != nil {
		return werr
	}
	if n := log.Dropped(); n > 0 {
		pterm.Warning.Printfln("%d log lines dropped", n)
	}
	return nil
}

// renderProgress menggambar spinner dari event progress orchestrator sampai
// channel ditutup.
func renderProgress(events <-chan core.ProgressEvent, total int) error {
	spinner, err := pterm.DefaultSpinner.
		WithRemoveWhenDone(true).
		Start(fmt.Sprintf("Scanning 0/%d modules", total))
	if err != nil {
		// terminal tanpa spinner: cukup kuras event-nya
		for range events {
		}
		return nil
	}
	for ev := range events {
		if ev.Done {
			break
		}
		line := fmt.Sprintf("%s %s", ev.Module, ev.Status)
		switch ev.Status {
		case core.StatusOK:
			pterm.Success.Println(line)
		case core.StatusSkipped:
			pterm.Info.Println(line)
		default:
			pterm.Warning.Println(line)
		}
		spinner.UpdateText(fmt.Sprintf("Scanning %d/%d modules (%.0f%%)", ev.Completed, ev.Total, ev.Percent))
	}
	for range events {
	}
	return spinner.Stop()
}
