// Package config provides the env-var-plus-override configuration
// surface described for the ucg core: every option is readable as
// <PREFIX>_<OPTION> and writable at runtime through Modify, mirroring
// config_modify.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix every core option is
// bound under, e.g. UCG_PLANC, UCG_LOG_LEVEL.
const EnvPrefix = "UCG"

// Config holds the core-level configuration table of §6. PlanAttr
// carries the per-collective <COLL>_ATTR override strings, parsed
// further by pkg/planattr.
type Config struct {
	PlanC       string            `mapstructure:"planc"`
	LogLevel    string            `mapstructure:"log_level"`
	UseMTMutex  bool              `mapstructure:"use_mt_mutex"`
	PlanCPath   string            `mapstructure:"planc_path"`
	PlanAttr    map[string]string `mapstructure:"plan_attr"`
	v           *viper.Viper
}

var validLogLevels = map[string]bool{
	"fatal": true, "error": true, "warn": true,
	"info": true, "debug": true, "trace": true,
}

// Load reads configuration from defaults, the given file path and
// UCG_-prefixed environment variables, each overriding the one before
// it. configPath may be empty, in which case only env vars and
// defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				fmt.Printf("config file %s not found, using defaults and environment\n", configPath)
			} else if os.IsNotExist(err) {
				fmt.Printf("config file %s not found, using defaults and environment\n", configPath)
			} else {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFromReader loads configuration of the given viper config type
// (e.g. "yaml") from in-memory content, useful for tests.
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.PlanAttr == nil {
		cfg.PlanAttr = map[string]string{}
	}
	// UCG_<COLL>_ATTR environment variables land in PlanAttr[coll].
	for _, kv := range os.Environ() {
		name, value, _ := strings.Cut(kv, "=")
		rest := strings.TrimPrefix(strings.ToUpper(name), EnvPrefix+"_")
		if rest == strings.ToUpper(name) || !strings.HasSuffix(rest, "_ATTR") {
			continue
		}
		if coll := strings.ToLower(strings.TrimSuffix(rest, "_ATTR")); coll != "" && coll != "plan" {
			cfg.PlanAttr[coll] = value
		}
	}
	cfg.v = v
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("planc", "all")
	v.SetDefault("log_level", "warn")
	v.SetDefault("use_mt_mutex", false)
	v.SetDefault("planc_path", defaultPlanCPath())
	v.SetDefault("plan_attr", map[string]string{})
}

// defaultPlanCPath mirrors "discovered from own library dir": absent a
// shared-library loader, the core looks next to its own executable.
func defaultPlanCPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return exe + ".plugins"
}

// Validate checks the loaded configuration for internal consistency.
func (c *Config) Validate() error {
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q: must be one of fatal,error,warn,info,debug,trace", c.LogLevel)
	}
	if c.PlanC == "" {
		return fmt.Errorf("planc must not be empty")
	}
	return nil
}

// Modify applies a single runtime override, mirroring config_modify(name,
// value). name is matched case-insensitively against the option table;
// <COLL>_ATTR updates PlanAttr[COLL] instead of a scalar field.
func (c *Config) Modify(name, value string) error {
	key := strings.ToLower(name)
	switch key {
	case "planc":
		c.PlanC = value
	case "log_level":
		if !validLogLevels[strings.ToLower(value)] {
			return fmt.Errorf("invalid log_level %q", value)
		}
		c.LogLevel = strings.ToLower(value)
	case "use_mt_mutex":
		c.UseMTMutex = value == "y" || value == "yes" || value == "true"
	case "planc_path":
		c.PlanCPath = value
	default:
		if strings.HasSuffix(key, "_attr") {
			coll := strings.TrimSuffix(key, "_attr")
			if c.PlanAttr == nil {
				c.PlanAttr = map[string]string{}
			}
			c.PlanAttr[coll] = value
			return nil
		}
		return fmt.Errorf("unknown config option %q", name)
	}
	return nil
}

// AttrFor returns the plan-attribute override string configured for
// collective coll, and whether one was set.
func (c *Config) AttrFor(coll string) (string, bool) {
	v, ok := c.PlanAttr[coll]
	return v, ok
}
