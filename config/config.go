package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"corp/sysrecon/core"
	"corp/sysrecon/logger"
)

// DefaultFile is looked up in the working directory when --config is not given.
const DefaultFile = "sysrecon.yaml"

type Config struct {
	General   GeneralConfig   `yaml:"general"`
	Accounts  AccountsConfig  `yaml:"accounts"`
	Services  ServicesConfig  `yaml:"services"`
	Processes ProcessesConfig `yaml:"processes"`
	Network   NetworkConfig   `yaml:"network"`
	Registry  RegistryConfig  `yaml:"registry"`
	Memory    MemoryConfig    `yaml:"memory"`
	Output    OutputConfig    `yaml:"output"`
	Whitelist WhitelistConfig `yaml:"whitelist"`
	Log       LogConfig       `yaml:"log"`
}

type GeneralConfig struct {
	Verbose        bool `yaml:"verbose"`
	RequireAdmin   bool `yaml:"require_admin"`
	Workers        int  `yaml:"workers"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
}

type AccountsConfig struct {
	Enabled         bool `yaml:"enabled"`
	EnumerateGroups bool `yaml:"enumerate_groups"`
}

type ServicesConfig struct {
	Enabled          bool `yaml:"enabled"`
	AnalyzeStartup   bool `yaml:"analyze_startup"`
	CheckPermissions bool `yaml:"check_permissions"`
}

type ProcessesConfig struct {
	Enabled         bool `yaml:"enabled"`
	AnalyzeMemory   bool `yaml:"analyze_memory"`
	CheckDLLs       bool `yaml:"check_dlls"`
	DetectInjection bool `yaml:"detect_injection"`
}

type NetworkConfig struct {
	Enabled            bool  `yaml:"enabled"`
	ScanListeningPorts bool  `yaml:"scan_listening_ports"`
	AnalyzeConnections bool  `yaml:"analyze_connections"`
	BackdoorPorts      []int `yaml:"backdoor_ports"`
}

type RegistryConfig struct {
	Enabled         bool     `yaml:"enabled"`
	ScanStartupKeys bool     `yaml:"scan_startup_keys"`
	AnalyzePolicies bool     `yaml:"analyze_policies"`
	CustomKeys      []string `yaml:"custom_keys"`
}

type MemoryConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CreateDumps     bool   `yaml:"create_dumps"`
	ScanForMalware  bool   `yaml:"scan_for_malware"`
	DetectInjection bool   `yaml:"detect_injection"`
	MaxDumpSizeMB   int    `yaml:"max_dump_size_mb"`
	SignaturesFile  string `yaml:"signatures_file"`
}

type OutputConfig struct {
	Directory   string   `yaml:"directory"`
	Formats     []string `yaml:"formats"`
	Pretty      bool     `yaml:"pretty"`
	MinSeverity string   `yaml:"min_severity"`
}

// WhitelistConfig extends the built-in system whitelist.
type WhitelistConfig struct {
	Processes    []string `yaml:"processes"`
	Services     []string `yaml:"services"`
	DLLs         []string `yaml:"dlls"`
	Paths        []string `yaml:"paths"`
	Persistence  []string `yaml:"persistence"`
	SafeUnquoted []string `yaml:"safe_unquoted"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// ToFile writes a JSON copy to <output>/sysrecon_<host>_<ts>.log.
	ToFile bool `yaml:"to_file"`
}

// Default mirrors the built-in scan profile.
func Default() *Config {
	return &Config{
		General:  GeneralConfig{RequireAdmin: true, Workers: 4, TimeoutSeconds: 300},
		Accounts: AccountsConfig{Enabled: true, EnumerateGroups: true},
		Services: ServicesConfig{Enabled: true, AnalyzeStartup: true, CheckPermissions: true},
		Processes: ProcessesConfig{
			Enabled: true, CheckDLLs: true, DetectInjection: true,
		},
		Network: NetworkConfig{
			Enabled: true, ScanListeningPorts: true, AnalyzeConnections: true,
			BackdoorPorts: []int{1337, 4444, 5555, 6666, 6667, 12345, 31337, 54321},
		},
		Registry: RegistryConfig{Enabled: true, ScanStartupKeys: true, AnalyzePolicies: true},
		Memory: MemoryConfig{
			ScanForMalware: true, DetectInjection: true, MaxDumpSizeMB: 100,
		},
		Output: OutputConfig{
			Directory:   "./reports",
			Formats:     []string{"json", "csv", "html"},
			Pretty:      true,
			MinSeverity: "low",
		},
		Log: LogConfig{Level: "info", ToFile: true},
	}
}

// Load reads path on top of Default. A missing file is an error here; the
// command layer decides whether an absent default file is acceptable.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config file: %v", core.ErrConfigurationInvalid, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config file: %v", core.ErrConfigurationInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func (c *Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

var validFormats = map[string]bool{"json": true, "csv": true, "html": true}

// Validate collects every problem and returns them joined, wrapped in
// core.ErrConfigurationInvalid.
func (c *Config) Validate() error {
	var errs []error
	if c.General.Workers < 1 || c.General.Workers > 32 {
		errs = append(errs, fmt.Errorf("general.workers must be 1..32, got %d", c.General.Workers))
	}
	if c.General.TimeoutSeconds < 10 || c.General.TimeoutSeconds > 3600 {
		errs = append(errs, fmt.Errorf("general.timeout_seconds must be 10..3600, got %d", c.General.TimeoutSeconds))
	}
	if len(c.EnabledModules()) == 0 {
		errs = append(errs, errors.New("at least one module must be enabled"))
	}
	if c.Memory.MaxDumpSizeMB < 1 || c.Memory.MaxDumpSizeMB > 1024 {
		errs = append(errs, fmt.Errorf("memory.max_dump_size_mb must be 1..1024, got %d", c.Memory.MaxDumpSizeMB))
	}
	if strings.TrimSpace(c.Output.Directory) == "" {
		errs = append(errs, errors.New("output.directory is empty"))
	}
	if len(c.Output.Formats) == 0 {
		errs = append(errs, errors.New("at least one output format must be enabled"))
	}
	for _, f := range c.Output.Formats {
		if !validFormats[strings.ToLower(f)] {
			errs = append(errs, fmt.Errorf("invalid output format %q", f))
		}
	}
	if _, err := core.ParseLevel(c.Output.MinSeverity); err != nil {
		errs = append(errs, fmt.Errorf("output.min_severity: %v", err))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %v", err))
	}
	for _, p := range c.Network.BackdoorPorts {
		if p < 1 || p > 65535 {
			errs = append(errs, fmt.Errorf("network.backdoor_ports: %d out of range", p))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", core.ErrConfigurationInvalid, errors.Join(errs...))
}

// MemoryEnabled: the memory module runs when memory.enabled or
// processes.analyze_memory is set.
func (c *Config) MemoryEnabled() bool {
	return c.Memory.Enabled || (c.Processes.Enabled && c.Processes.AnalyzeMemory)
}

// EnabledModules lists enabled modules in execution order.
func (c *Config) EnabledModules() []core.ModuleKind {
	var out []core.ModuleKind
	for _, k := range core.AllModules() {
		if c.ModuleEnabled(k) {
			out = append(out, k)
		}
	}
	return out
}

func (c *Config) ModuleEnabled(k core.ModuleKind) bool {
	switch k {
	case core.ModuleAccounts:
		return c.Accounts.Enabled
	case core.ModuleServices:
		return c.Services.Enabled
	case core.ModuleProcesses:
		return c.Processes.Enabled
	case core.ModuleNetwork:
		return c.Network.Enabled
	case core.ModuleRegistry:
		return c.Registry.Enabled
	case core.ModuleMemory:
		return c.MemoryEnabled()
	}
	return false
}

// EnableOnly turns off every module not in kinds.
func (c *Config) EnableOnly(kinds ...core.ModuleKind) {
	want := map[core.ModuleKind]bool{}
	for _, k := range kinds {
		want[k] = true
	}
	c.Accounts.Enabled = want[core.ModuleAccounts]
	c.Services.Enabled = want[core.ModuleServices]
	c.Processes.Enabled = want[core.ModuleProcesses]
	c.Network.Enabled = want[core.ModuleNetwork]
	c.Registry.Enabled = want[core.ModuleRegistry]
	c.Memory.Enabled = want[core.ModuleMemory]
	if !c.Memory.Enabled {
		c.Processes.AnalyzeMemory = false
	}
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.General.TimeoutSeconds) * time.Second
}

// MinSeverity falls back to Low; Validate rejects bad values earlier.
func (c *Config) MinSeverity() core.SecurityLevel {
	l, _ := core.ParseLevel(c.Output.MinSeverity)
	return l
}

func (c *Config) LogLevel() logger.Level {
	l, _ := logger.ParseLevel(c.Log.Level)
	return l
}

func (c *Config) MaxDumpBytes() uint64 {
	return uint64(c.Memory.MaxDumpSizeMB) << 20
}

// NewWhitelist builds the system whitelist with this file's extensions.
func (c *Config) NewWhitelist() *core.SystemWhitelist {
	w := core.NewSystemWhitelist()
	w.AddProcesses(c.Whitelist.Processes...)
	w.AddServices(c.Whitelist.Services...)
	w.AddDLLs(c.Whitelist.DLLs...)
	w.AddPaths(c.Whitelist.Paths...)
	w.AddPersistence(c.Whitelist.Persistence...)
	w.AddSafeUnquoted(c.Whitelist.SafeUnquoted...)
	return w
}
