// Package config layers the solver's command-line flags over an
// optional config file and KANGAROO_* environment variables, using
// viper the way other_examples/Ribengame-hunter layers its Config
// struct over file/env/flag sources.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// SolveFlags is the flag set for spec.md §6.1's `solve` command.
type SolveFlags struct {
	Threads    int
	GPU        bool
	DPBits     int // 0 means "not overridden"
	Batch      int
	Steps      int
	Resume     string
	Checkpoint string
	ConfigFile string
}

// DefaultCheckpointPath is the CLI's default auto-save target.
const DefaultCheckpointPath = "kangaroo.checkpoint"

// BindSolveFlags registers spec.md §6.1's solve flags on cmd and
// returns the struct they populate into once flags are parsed.
func BindSolveFlags(cmd *cobra.Command) *SolveFlags {
	f := &SolveFlags{}
	cmd.Flags().IntVar(&f.Threads, "threads", 0, "CPU worker count (default: hardware concurrency, fallback 4)")
	cmd.Flags().BoolVar(&f.GPU, "gpu", false, "Enable GPU back end")
	cmd.Flags().IntVar(&f.DPBits, "dp", 0, "Override dpBits (1..24)")
	cmd.Flags().IntVar(&f.Batch, "batch", 0, "GPU batch size")
	cmd.Flags().IntVar(&f.Steps, "steps", 0, "GPU steps per launch")
	cmd.Flags().StringVar(&f.Resume, "resume", "", "Load checkpoint before starting")
	cmd.Flags().StringVar(&f.Checkpoint, "checkpoint", DefaultCheckpointPath, "Auto-save target")
	cmd.Flags().StringVar(&f.ConfigFile, "config", "", "Optional config file (yaml/json/toml)")
	return f
}

// LoadViper builds a viper instance layering, in increasing priority,
// an optional config file, KANGAROO_*-prefixed environment variables,
// and the flags already bound to cmd. Call after cmd.Flags() are
// parsed so flag values take precedence over file/env defaults.
func LoadViper(cmd *cobra.Command, configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("KANGAROO")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", configFile, err)
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("config: failed to bind flags: %w", err)
	}
	return v, nil
}

// EffectiveConfig is the fully-resolved run configuration — after
// file/env/flag layering — in the same shape an on-disk config file
// would take. DumpEffectiveConfig renders it for startup logging so a
// run is reproducible from its log alone.
type EffectiveConfig struct {
	Threads    int    `yaml:"threads"`
	GPU        bool   `yaml:"gpu"`
	DPBits     int    `yaml:"dp,omitempty"`
	Batch      int    `yaml:"batch,omitempty"`
	Steps      int    `yaml:"steps,omitempty"`
	Resume     string `yaml:"resume,omitempty"`
	Checkpoint string `yaml:"checkpoint"`
}

// DumpEffectiveConfig renders cfg as YAML, the same format the optional
// --config file is read in.
func DumpEffectiveConfig(cfg EffectiveConfig) (string, error) {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("config: failed to render effective config: %w", err)
	}
	return string(b), nil
}
