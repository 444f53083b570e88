package types

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
)

type BalancerConfig struct {
	Neighbors int `yaml:"neighbors" json:"neighbors"`
}

type ForestConfig struct {
	Trees           int `yaml:"trees" json:"trees"`
	MaxDepth        int `yaml:"max_depth" json:"max_depth"`
	MinSamplesSplit int `yaml:"min_samples_split" json:"min_samples_split"`
	MinSamplesLeaf  int `yaml:"min_samples_leaf" json:"min_samples_leaf"`
	// MaxFeatures 0 means floor(sqrt(number of features)).
	MaxFeatures int `yaml:"max_features" json:"max_features"`
	Workers     int `yaml:"workers" json:"workers"`
}

type SyntheticConfig struct {
	Samples int   `yaml:"samples" json:"samples"`
	Seed    int64 `yaml:"seed" json:"seed"`
}

// TrainingConfig drives one data-load and train cycle.
type TrainingConfig struct {
	Weights   WeightTable     `yaml:"weights" json:"weights"`
	TestRatio float64         `yaml:"test_ratio" json:"test_ratio"`
	Seed      int64           `yaml:"seed" json:"seed"`
	Balancer  BalancerConfig  `yaml:"balancer" json:"balancer"`
	Forest    ForestConfig    `yaml:"forest" json:"forest"`
	Synthetic SyntheticConfig `yaml:"synthetic" json:"synthetic"`
}

func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Weights:   DefaultWeights(),
		TestRatio: 0.2,
		Seed:      42,
		Balancer:  BalancerConfig{Neighbors: 3},
		Forest: ForestConfig{
			Trees:           200,
			MaxDepth:        15,
			MinSamplesSplit: 5,
			MinSamplesLeaf:  2,
		},
		Synthetic: SyntheticConfig{Samples: 500, Seed: 42},
	}
}

// LoadTrainingConfig overlays the YAML file at path onto the defaults. An empty
// path yields the defaults. A weights section replaces the default table.
func LoadTrainingConfig(path string) (TrainingConfig, error) {
	cfg := DefaultTrainingConfig()
	if path == "" {
		return cfg, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read training config: %w", err)
	}
	return ParseTrainingConfig(buf)
}

func ParseTrainingConfig(buf []byte) (TrainingConfig, error) {
	cfg := DefaultTrainingConfig()
	cfg.Weights = nil
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if cfg.Weights == nil {
		cfg.Weights = DefaultWeights()
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (cfg TrainingConfig) Validate() error {
	if err := cfg.Weights.Validate(); err != nil {
		return err
	}
	if cfg.TestRatio < 0 || cfg.TestRatio >= 1 {
		return fmt.Errorf("%w: test_ratio must be in [0, 1), got %v", ErrConfig, cfg.TestRatio)
	}
	if cfg.Balancer.Neighbors < 1 {
		return fmt.Errorf("%w: balancer.neighbors must be at least 1", ErrConfig)
	}
	if cfg.Forest.Trees < 1 {
		return fmt.Errorf("%w: forest.trees must be at least 1", ErrConfig)
	}
	if cfg.Forest.MinSamplesLeaf < 1 || cfg.Forest.MinSamplesSplit < 2 {
		return fmt.Errorf("%w: forest min_samples_leaf >= 1 and min_samples_split >= 2 required", ErrConfig)
	}
	if cfg.Synthetic.Samples < 1 {
		return fmt.Errorf("%w: synthetic.samples must be at least 1", ErrConfig)
	}
	return nil
}
