package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"meridian/native/rewards"
)

// Config carries the deployment parameters for the accrual engine.
type Config struct {
	DataDir string `toml:"DataDir"`
	// Flavor selects the bonus policy: "staking" or "liquidity".
	Flavor string `toml:"Flavor"`
	// MaxMultiplier and Smoothing shape the loyalty curve (staking flavor).
	MaxMultiplier float64 `toml:"MaxMultiplier"`
	Smoothing     float64 `toml:"Smoothing"`
	// EarlyWithdrawThresholdSeconds is the penalty window (liquidity flavor).
	EarlyWithdrawThresholdSeconds uint64 `toml:"EarlyWithdrawThresholdSeconds"`
}

func defaultConfig() *Config {
	return &Config{
		DataDir:                       "./meridian-data",
		Flavor:                        string(rewards.FlavorStaking),
		MaxMultiplier:                 4,
		Smoothing:                     30,
		EarlyWithdrawThresholdSeconds: 14 * 24 * 60 * 60,
	}
}

// Load reads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultConfig().DataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the flavor selection and the bounds of the active policy's
// parameters.
func (c *Config) Validate() error {
	switch rewards.Flavor(c.Flavor) {
	case rewards.FlavorStaking:
		if c.MaxMultiplier < 1 || c.MaxMultiplier > 10 {
			return fmt.Errorf("config: MaxMultiplier %v outside [1, 10]", c.MaxMultiplier)
		}
		if c.Smoothing < 10 || c.Smoothing > 100 {
			return fmt.Errorf("config: Smoothing %v outside [10, 100]", c.Smoothing)
		}
	case rewards.FlavorLiquidity:
		if c.EarlyWithdrawThresholdSeconds == 0 {
			return fmt.Errorf("config: EarlyWithdrawThresholdSeconds must be positive")
		}
	default:
		return fmt.Errorf("config: unknown flavor %q", c.Flavor)
	}
	return nil
}

// BonusParams converts the configured values into the engine's wad-scaled
// parameter set.
func (c *Config) BonusParams() rewards.BonusParams {
	return rewards.BonusParams{
		MaxMultiplier:          wadFromFloat(c.MaxMultiplier),
		Smoothing:              wadFromFloat(c.Smoothing),
		EarlyWithdrawThreshold: c.EarlyWithdrawThresholdSeconds,
	}
}

// Policy constructs the bonus policy the configured flavor selects.
func (c *Config) Policy() (rewards.BonusPolicy, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	params := c.BonusParams()
	if rewards.Flavor(c.Flavor) == rewards.FlavorLiquidity {
		return rewards.NewEarlyWithdrawalPolicy(params)
	}
	return rewards.NewLoyaltyMultiplierPolicy(params)
}

func wadFromFloat(v float64) *big.Int {
	r := new(big.Rat).SetFloat64(v)
	if r == nil {
		return big.NewInt(0)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(scale))
	return new(big.Int).Quo(scaled.Num(), scaled.Denom())
}
