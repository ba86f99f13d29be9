package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"corp/sysrecon/config"
	"corp/sysrecon/core"
	"corp/sysrecon/logger"
)

var (
	cfgFile   string
	outputDir string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "sysrecon",
	Short: "SysRecon audits a host for security misconfigurations and compromise indicators",
	Long: `SysRecon enumerates accounts, services, processes, network endpoints and
registry persistence, inspects process memory for injected code, and writes a
prioritized report (JSON, CSV, HTML).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// tanpa argumen (mis. double-click di Explorer) -> interactive shell
	RunE: func(cmd *cobra.Command, args []string) error {
		return shellCmd.RunE(cmd, args)
	},
}

// Execute menjalankan root command. Exit code 2 untuk flag / konfigurasi
// yang salah, 1 untuk error lain.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		if isUsage(err) || errors.Is(err, core.ErrConfigurationInvalid) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "configuration file (default ./"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "report output directory (overrides output.directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{msg: err.Error()}
	})
}

// loadConfig: --config, lalu ./sysrecon.yaml kalau ada, lalu default.
// Flag global ditimpa di atasnya.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat(config.DefaultFile); err == nil {
			path = config.DefaultFile
		}
	}
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if outputDir != "" {
		cfg.Output.Directory = outputDir
	}
	if verbose {
		cfg.General.Verbose = true
	}
	if cfg.General.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, cfg.Validate()
}

// newLogger builds the console logger plus the optional JSON log file. A log
// file that cannot be opened is reported and the console logger is kept.
func newLogger(cfg *config.Config, console io.Writer, now time.Time) *logger.Logger {
	opts := logger.Options{Level: cfg.LogLevel(), Console: console}
	if cfg.Log.ToFile {
		opts.File = logger.FileName(cfg.Output.Directory, now)
	}
	log, err := logger.New(opts)
	if err != nil {
		log.Warn("log file disabled", "reason", err)
	}
	return log
}

// usageError marks bad flag values so they are not confused with scan failures.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func isUsage(err error) bool {
	var u usageError
	return errors.As(err, &u)
}
