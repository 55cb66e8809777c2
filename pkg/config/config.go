// Package config provides a reusable loader for the compiler driver's own
// configuration files and environment variables, viper-backed with an
// environment-named overlay.
//
// Version: v0.1.0
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"vmc/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the driver-level configuration: optimization level, parallelism
// cap, debug-profile metadata hashing, and the compilation target. It
// mirrors the structure of the YAML files under cmd/config.
type Config struct {
	Optimizer struct {
		Level int `mapstructure:"level" json:"level"`
		DebugProfile bool `mapstructure:"debug_profile" json:"debug_profile"`
		MaxSpillRounds int `mapstructure:"max_spill_rounds" json:"max_spill_rounds"`
	} `mapstructure:"optimizer" json:"optimizer"`

	Driver struct {
		MaxParallelPackages int `mapstructure:"max_parallel_packages" json:"max_parallel_packages"`
		Target              string `mapstructure:"target" json:"target"`
		Offline             bool `mapstructure:"offline" json:"offline"`
	} `mapstructure:"driver" json:"driver"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	setDefaults()
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from.env via godotenv in cmd/vmc

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

func setDefaults() {
	viper.SetDefault("optimizer.level", 1)
	viper.SetDefault("optimizer.debug_profile", false)
	viper.SetDefault("optimizer.max_spill_rounds", 4)
	viper.SetDefault("driver.max_parallel_packages", 4)
	viper.SetDefault("driver.target", "fuel-vm")
	viper.SetDefault("logging.level", "info")
}

// LoadFromEnv loads configuration using the VMC_ENV environment variable to
// select the environment overlay.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("VMC_ENV", ""))
}
