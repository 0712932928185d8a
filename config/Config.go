// Package config implements the run configuration of the gotrpo
// command, loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samuelfneumann/gotrpo/agent"
	"github.com/samuelfneumann/gotrpo/agent/trpo"
	"github.com/samuelfneumann/gotrpo/initwfn"
	"github.com/samuelfneumann/gotrpo/solver"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables overriding
// configuration values, e.g. GOTRPO_TRPO_MAXKL overrides trpo.maxKL.
const EnvPrefix = "GOTRPO"

// Config is the configuration of a training run
type Config struct {
	Seed   uint64 `mapstructure:"seed" yaml:"seed"`
	RunDir string `mapstructure:"runDir" yaml:"runDir"`

	// Dimensions of states and actions. For Categorical policies,
	// Actions is the number of actions.
	Features int `mapstructure:"features" yaml:"features"`
	Actions  int `mapstructure:"actions" yaml:"actions"`

	// Init is the weight initializer of the policy and value networks
	Init string `mapstructure:"init" yaml:"init"`

	Policy PolicyConfig `mapstructure:"policy" yaml:"policy"`
	Value  ValueConfig  `mapstructure:"value" yaml:"value"`
	TRPO   TRPOConfig   `mapstructure:"trpo" yaml:"trpo"`

	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// CheckpointEvery is the number of updates between checkpoints of
	// the policy and value parameters, 0 to only checkpoint at the end
	CheckpointEvery int `mapstructure:"checkpointEvery" yaml:"checkpointEvery"`

	// Restore is a checkpoint to load the policy and value parameters
	// from before training, empty to start from fresh parameters
	Restore string `mapstructure:"restore" yaml:"restore"`
}

// PolicyConfig configures the policy network
type PolicyConfig struct {
	Type        string   `mapstructure:"type" yaml:"type"`
	Layers      []int    `mapstructure:"layers" yaml:"layers"`
	Activations []string `mapstructure:"activations" yaml:"activations"`
	InitLogStd  float64  `mapstructure:"initLogStd" yaml:"initLogStd"`
}

// ValueConfig configures the value network and its regression
type ValueConfig struct {
	Layers      []int    `mapstructure:"layers" yaml:"layers"`
	Activations []string `mapstructure:"activations" yaml:"activations"`
	Solver      string   `mapstructure:"solver" yaml:"solver"`
	StepSize    float64  `mapstructure:"stepSize" yaml:"stepSize"`
	Iterations  int      `mapstructure:"iterations" yaml:"iterations"`
	L2          float64  `mapstructure:"l2" yaml:"l2"`
}

// TRPOConfig configures the TRPO update
type TRPOConfig struct {
	Gamma               float64 `mapstructure:"gamma" yaml:"gamma"`
	Tau                 float64 `mapstructure:"tau" yaml:"tau"`
	MaxKL               float64 `mapstructure:"maxKL" yaml:"maxKL"`
	Damping             float64 `mapstructure:"damping" yaml:"damping"`
	CGIterations        int     `mapstructure:"cgIterations" yaml:"cgIterations"`
	CGTolerance         float64 `mapstructure:"cgTolerance" yaml:"cgTolerance"`
	MaxBacktracks       int     `mapstructure:"maxBacktracks" yaml:"maxBacktracks"`
	BacktrackDecay      float64 `mapstructure:"backtrackDecay" yaml:"backtrackDecay"`
	NormalizeAdvantages bool    `mapstructure:"normalizeAdvantages" yaml:"normalizeAdvantages"`
}

// MetricsConfig determines where per-update statistics are recorded.
// Relative paths are relative to the run directory and empty paths
// disable the corresponding sink.
type MetricsConfig struct {
	Log    bool   `mapstructure:"log" yaml:"log"`
	Gob    string `mapstructure:"gob" yaml:"gob"`
	SQLite string `mapstructure:"sqlite" yaml:"sqlite"`
}

// setDefaults registers the default value of every configuration key
func setDefaults(vp *viper.Viper) {
	online := trpo.DefaultOnlineConfig()
	t := online.TRPO

	vp.SetDefault("seed", 0)
	vp.SetDefault("runDir", "runs")
	vp.SetDefault("features", 0)
	vp.SetDefault("actions", 0)
	vp.SetDefault("init", string(online.Init))

	vp.SetDefault("policy.type", string(online.Policy))
	vp.SetDefault("policy.layers", online.PolicyLayers)
	vp.SetDefault("policy.activations", online.PolicyActivations)
	vp.SetDefault("policy.initLogStd", online.InitLogStd)

	vp.SetDefault("value.layers", online.ValueLayers)
	vp.SetDefault("value.activations", online.ValueActivations)
	vp.SetDefault("value.solver", string(online.ValueSolver))
	vp.SetDefault("value.stepSize", online.ValueStepSize)
	vp.SetDefault("value.iterations", online.ValueIterations)
	vp.SetDefault("value.l2", online.ValueL2)

	vp.SetDefault("trpo.gamma", t.Gamma)
	vp.SetDefault("trpo.tau", t.Tau)
	vp.SetDefault("trpo.maxKL", t.MaxKL)
	vp.SetDefault("trpo.damping", t.Damping)
	vp.SetDefault("trpo.cgIterations", t.CGIterations)
	vp.SetDefault("trpo.cgTolerance", t.CGTolerance)
	vp.SetDefault("trpo.maxBacktracks", t.MaxBacktracks)
	vp.SetDefault("trpo.backtrackDecay", t.BacktrackDecay)
	vp.SetDefault("trpo.normalizeAdvantages", t.NormalizeAdvantages)

	vp.SetDefault("metrics.log", true)
	vp.SetDefault("metrics.gob", "stats.bin")
	vp.SetDefault("metrics.sqlite", "stats.db")

	vp.SetDefault("checkpointEvery", 0)
	vp.SetDefault("restore", "")
}

// Load reads the configuration in the YAML file at path. Keys missing
// from the file take their default values and every key can be
// overridden by an environment variable. If path is empty, only
// defaults and environment variables are used.
func Load(path string) (*Config, error) {
	vp := viper.New()
	setDefaults(vp)

	vp.SetEnvPrefix(EnvPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	if path != "" {
		vp.SetConfigFile(path)
		vp.SetConfigType("yaml")
		if err := vp.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load: %v", err)
		}
	}

	c := &Config{}
	if err := vp.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("load: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("load: %v", err)
	}
	return c, nil
}

// Validate returns an error if the configuration is invalid
func (c *Config) Validate() error {
	if c.Features <= 0 {
		return fmt.Errorf("validate: features must be positive")
	}
	if c.Actions <= 0 {
		return fmt.Errorf("validate: actions must be positive")
	}
	if c.CheckpointEvery < 0 {
		return fmt.Errorf("validate: checkpointEvery must be non-negative")
	}
	return c.Online().Validate()
}

// Online returns the agent configuration described by c
func (c *Config) Online() trpo.OnlineConfig {
	return trpo.OnlineConfig{
		Policy:            agent.PolicyType(c.Policy.Type),
		PolicyLayers:      c.Policy.Layers,
		PolicyActivations: c.Policy.Activations,
		InitLogStd:        c.Policy.InitLogStd,
		Init:              initwfn.Type(c.Init),
		ValueLayers:       c.Value.Layers,
		ValueActivations:  c.Value.Activations,
		ValueSolver:       solver.Type(c.Value.Solver),
		ValueStepSize:     c.Value.StepSize,
		ValueIterations:   c.Value.Iterations,
		ValueL2:           c.Value.L2,
		EpochLength:       1,
		TRPO: trpo.Config{
			Gamma:               c.TRPO.Gamma,
			Tau:                 c.TRPO.Tau,
			MaxKL:               c.TRPO.MaxKL,
			Damping:             c.TRPO.Damping,
			CGIterations:        c.TRPO.CGIterations,
			CGTolerance:         c.TRPO.CGTolerance,
			MaxBacktracks:       c.TRPO.MaxBacktracks,
			BacktrackDecay:      c.TRPO.BacktrackDecay,
			NormalizeAdvantages: c.TRPO.NormalizeAdvantages,
		},
	}
}

// Path resolves a path relative to the run directory
func (c *Config) Path(runID, name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.RunDir, runID, name)
}

// Dump writes the configuration as YAML to filename
func (c *Config) Dump(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("dump: %v", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("dump: %v", err)
	}
	return nil
}
