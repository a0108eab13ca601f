// Package config loads and validates the triggeroor configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultResultsDir is the default directory for discovery artifacts.
	DefaultResultsDir = "./results"

	// DefaultPatchesDir is the default directory holding per-candidate
	// fix-reverting patches.
	DefaultPatchesDir = "./patches"

	// DefaultBuildSystem is the default build-system adapter.
	DefaultBuildSystem = "defects4j"

	// DefaultWorkers is the default number of candidate workers.
	DefaultWorkers = 1

	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "TRIGGEROOR"
)

// Config is the root configuration for triggeroor.
type Config struct {
	Global    GlobalConfig    `yaml:"global" mapstructure:"global"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// DiscoveryConfig contains discovery pipeline settings.
type DiscoveryConfig struct {
	ResultsDir   string `yaml:"results_dir" mapstructure:"results_dir"`
	PatchesDir   string `yaml:"patches_dir" mapstructure:"patches_dir"`
	WorkspaceDir string `yaml:"workspace_dir,omitempty" mapstructure:"workspace_dir"`
	ResultsOwner string `yaml:"results_owner,omitempty" mapstructure:"results_owner"`
	BuildSystem  string `yaml:"build_system" mapstructure:"build_system"`
	Workers      int    `yaml:"workers,omitempty" mapstructure:"workers"`

	// BuildSystems defines additional build systems from command
	// templates; keys are registered alongside the built-ins.
	BuildSystems map[string]BuildSystemConfig `yaml:"build_systems,omitempty" mapstructure:"build_systems"`
}

// BuildSystemConfig defines a build system via argv templates. Placeholders
// {project}, {candidate}, {workdir}, {patch} and {test} are substituted per
// invocation.
type BuildSystemConfig struct {
	Checkout          []string `yaml:"checkout" mapstructure:"checkout"`
	ApplyPatch        []string `yaml:"apply_patch" mapstructure:"apply_patch"`
	Compile           []string `yaml:"compile" mapstructure:"compile"`
	TestSuite         []string `yaml:"test_suite" mapstructure:"test_suite"`
	TestSingle        []string `yaml:"test_single" mapstructure:"test_single"`
	FailureExitOK     bool     `yaml:"failure_exit_ok,omitempty" mapstructure:"failure_exit_ok"`
	FailingTestPrefix string   `yaml:"failing_test_prefix,omitempty" mapstructure:"failing_test_prefix"`
}

// DatabaseConfig contains the candidate/outcome store settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteConfig contains SQLite settings.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"sslmode,omitempty" mapstructure:"sslmode"`
}

// Load reads the configuration file at path, applying defaults and
// environment variable overrides in TRIGGEROOR_SECTION_KEY form.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults double as the known-key set for env overrides.
	v.SetDefault("global.log_level", DefaultLogLevel)
	v.SetDefault("discovery.results_dir", DefaultResultsDir)
	v.SetDefault("discovery.patches_dir", DefaultPatchesDir)
	v.SetDefault("discovery.workspace_dir", "")
	v.SetDefault("discovery.results_owner", "")
	v.SetDefault("discovery.build_system", DefaultBuildSystem)
	v.SetDefault("discovery.workers", DefaultWorkers)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", "./triggeroor.db")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.sslmode", "disable")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Discovery.ResultsDir == "" {
		return fmt.Errorf("discovery.results_dir is required")
	}

	if c.Discovery.PatchesDir == "" {
		return fmt.Errorf("discovery.patches_dir is required")
	}

	if _, err := os.Stat(c.Discovery.PatchesDir); os.IsNotExist(err) {
		return fmt.Errorf("patches directory %q does not exist", c.Discovery.PatchesDir)
	}

	if c.Discovery.BuildSystem == "" {
		return fmt.Errorf("discovery.build_system is required")
	}

	if c.Discovery.Workers < 1 {
		return fmt.Errorf("discovery.workers must be >= 1, got %d", c.Discovery.Workers)
	}

	for name, bs := range c.Discovery.BuildSystems {
		if len(bs.Checkout) == 0 || len(bs.ApplyPatch) == 0 || len(bs.Compile) == 0 ||
			len(bs.TestSuite) == 0 || len(bs.TestSingle) == 0 {
			return fmt.Errorf(
				"build system %q: checkout, apply_patch, compile, test_suite and test_single are required",
				name,
			)
		}
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" || c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.host and database are required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	dir := filepath.Dir(c.Discovery.ResultsDir)
	if dir != "." && dir != ".." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("results directory parent %q does not exist", dir)
		}
	}

	return nil
}
