package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
	"github.com/tree-dbscan/tdbscan-launcher/launch/proc"
	"github.com/tree-dbscan/tdbscan-launcher/launch/stats"
)

// EnvHome is the install prefix; relative tool names resolve under its bin/.
const EnvHome = "TDBSCAN_HOME"

// defaultConfigPath is read when --config is not given. Its absence is not
// an error.
const defaultConfigPath = "tdbscan.yaml"

// ToolsConfig names the external executables.
type ToolsConfig struct {
	TopologyGenerator string   `yaml:"topology_generator"`
	FrontEnd          string   `yaml:"front_end"`
	Backend           string   `yaml:"backend"`
	Launcher          []string `yaml:"launcher"` // parallel launcher argv template
	DistanceTool      string   `yaml:"distance_tool"`
	SequenceTool      string   `yaml:"sequence_tool"`
}

// Config represents the full tdbscan.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Tools          ToolsConfig   `yaml:"tools"`
	HostSuffix     string        `yaml:"host_suffix"`
	AttachDelay    time.Duration `yaml:"attach_delay"`
	StartupTimeout time.Duration `yaml:"startup_timeout"`
	WorkDir        string        `yaml:"work_dir"`
	SortColumn     int           `yaml:"sort_column"`
}

// DefaultConfig matches a stock install.
func DefaultConfig() Config {
	return Config{
		Tools: ToolsConfig{
			TopologyGenerator: "mrnet_topgen",
			FrontEnd:          "TDBSCAN_FE",
			Backend:           "TDBSCAN_BE",
			Launcher:          append([]string(nil), proc.DefaultLauncher...),
			DistanceTool:      "ClustersDiff",
			SequenceTool:      "ClustersSequenceScore",
		},
		AttachDelay:    proc.DefaultAttachDelay,
		StartupTimeout: 60 * time.Second,
		WorkDir:        ".",
		SortColumn:     stats.DefaultSortColumn,
	}
}

// LoadConfig overlays the YAML file at path on DefaultConfig. When required
// is false a missing file yields the defaults.
func LoadConfig(path string, required bool) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			logrus.Debugf("No config file at '%s', using defaults", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("%w: reading config: %v", launch.ErrConfiguration, err)
	}

	// Strict field checking: typos must cause errors
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: parsing config '%s': %v", launch.ErrConfiguration, path, err)
	}
	return cfg, nil
}

// Validate checks the values LoadConfig cannot reject on its own.
func (c *Config) Validate() error {
	var problems []string
	if c.Tools.TopologyGenerator == "" {
		problems = append(problems, "tools.topology_generator is empty")
	}
	if c.Tools.FrontEnd == "" {
		problems = append(problems, "tools.front_end is empty")
	}
	if len(c.Tools.Launcher) == 0 {
		problems = append(problems, "tools.launcher is empty")
	}
	if c.AttachDelay < 0 {
		problems = append(problems, fmt.Sprintf("attach_delay must be >= 0, got %v", c.AttachDelay))
	}
	if c.StartupTimeout < time.Second {
		problems = append(problems, fmt.Sprintf("startup_timeout must be >= 1s, got %v", c.StartupTimeout))
	}
	if c.SortColumn < 1 {
		problems = append(problems, fmt.Sprintf("sort_column must be >= 1, got %d", c.SortColumn))
	}
	if c.WorkDir == "" {
		problems = append(problems, "work_dir is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", launch.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// ResolveTools rewrites bare tool names to home/bin/<name>. Names containing
// a path separator are left alone, as is everything when home is empty.
func (c *Config) ResolveTools(home string) {
	if home == "" {
		return
	}
	resolve := func(name *string) {
		if *name != "" && !strings.ContainsRune(*name, filepath.Separator) {
			*name = filepath.Join(home, "bin", *name)
		}
	}
	resolve(&c.Tools.TopologyGenerator)
	resolve(&c.Tools.FrontEnd)
	resolve(&c.Tools.Backend)
	resolve(&c.Tools.DistanceTool)
	resolve(&c.Tools.SequenceTool)
}

// Scorer builds the comparison scorer from the configured tools.
func (c *Config) Scorer() *stats.Scorer {
	return &stats.Scorer{
		DistanceTool: c.Tools.DistanceTool,
		SequenceTool: c.Tools.SequenceTool,
		SortColumn:   c.SortColumn,
		WorkDir:      c.WorkDir,
	}
}

// loadEnvFile loads KEY=VALUE pairs from path without overriding variables
// already set. A missing file is skipped.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logrus.Debugf("Skipping %s: %v", path, err)
			return nil
		}
		return fmt.Errorf("%w: loading %s: %v", launch.ErrConfiguration, path, err)
	}
	logrus.Debugf("Loaded environment from %s", path)
	return nil
}

// loadConfig resolves, loads and validates the configuration for a command.
func loadConfig() (Config, error) {
	path, required := configPath, true
	if path == "" {
		path, required = defaultConfigPath, false
	}
	cfg, err := LoadConfig(path, required)
	if err != nil {
		return cfg, err
	}
	cfg.ResolveTools(os.Getenv(EnvHome))
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
