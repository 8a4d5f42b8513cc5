package config

import (
	stderrors "errors"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/rzzdr/option-hedging-sim/pkg/utils/errors"
)

// Config for the whole application
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Market  MarketConfig  `mapstructure:"market"`
	Pricing PricingConfig `mapstructure:"pricing"`
	Hedging HedgingConfig `mapstructure:"hedging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// General application configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// Default Black-Scholes market, overridable per run from the command line
type MarketConfig struct {
	Spot       float64 `mapstructure:"spot"`
	Rate       float64 `mapstructure:"rate"`
	Volatility float64 `mapstructure:"volatility"`
	Dividend   float64 `mapstructure:"dividend"`
}

// Configuration for the Monte Carlo engine
type PricingConfig struct {
	NumPaths  int    `mapstructure:"num_paths"`
	Steps     int    `mapstructure:"steps"`
	Workers   int    `mapstructure:"workers"`
	ChunkSize int    `mapstructure:"chunk_size"`
	Seed      uint64 `mapstructure:"seed"`
}

// Configuration for the hedging simulator
type HedgingConfig struct {
	NumPaths        int     `mapstructure:"num_paths"`
	Steps           int     `mapstructure:"steps"`
	BumpRatio       float64 `mapstructure:"bump_ratio"`
	Runs            int     `mapstructure:"runs"`
	Workers         int     `mapstructure:"workers"`
	ConfidenceLevel float64 `mapstructure:"confidence_level"`
}

// Configuration for metrics
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads the configuration from path (if it exists), the environment
// and the built-in defaults, in decreasing order of precedence. An empty
// path looks for config.yaml in ./config and the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PRICER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case path != "":
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		case stderrors.As(err, &notFound):
			// Defaults and environment only.
		default:
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects non-positive counts and ratios
func (c *Config) Validate() error {
	switch {
	case c.Pricing.NumPaths <= 0:
		return errors.InvalidConfigurationf("pricing.num_paths must be positive, got %d", c.Pricing.NumPaths)
	case c.Pricing.Steps <= 0:
		return errors.InvalidConfigurationf("pricing.steps must be positive, got %d", c.Pricing.Steps)
	case c.Pricing.Workers <= 0:
		return errors.InvalidConfigurationf("pricing.workers must be positive, got %d", c.Pricing.Workers)
	case c.Pricing.ChunkSize <= 0:
		return errors.InvalidConfigurationf("pricing.chunk_size must be positive, got %d", c.Pricing.ChunkSize)
	case c.Hedging.NumPaths <= 0:
		return errors.InvalidConfigurationf("hedging.num_paths must be positive, got %d", c.Hedging.NumPaths)
	case c.Hedging.Steps <= 0:
		return errors.InvalidConfigurationf("hedging.steps must be positive, got %d", c.Hedging.Steps)
	case !(c.Hedging.BumpRatio > 0 && c.Hedging.BumpRatio < 1):
		return errors.InvalidConfigurationf("hedging.bump_ratio must be in (0, 1), got %v", c.Hedging.BumpRatio)
	case c.Hedging.Runs <= 0:
		return errors.InvalidConfigurationf("hedging.runs must be positive, got %d", c.Hedging.Runs)
	case c.Hedging.Workers <= 0:
		return errors.InvalidConfigurationf("hedging.workers must be positive, got %d", c.Hedging.Workers)
	case !(c.Hedging.ConfidenceLevel > 0 && c.Hedging.ConfidenceLevel < 1):
		return errors.InvalidConfigurationf("hedging.confidence_level must be in (0, 1), got %v", c.Hedging.ConfidenceLevel)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "option-hedging-sim")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Market defaults
	v.SetDefault("market.spot", 100.0)
	v.SetDefault("market.rate", 0.05)
	v.SetDefault("market.volatility", 0.2)
	v.SetDefault("market.dividend", 0.0)

	// Pricing defaults
	v.SetDefault("pricing.num_paths", 10000)
	v.SetDefault("pricing.steps", 100)
	v.SetDefault("pricing.workers", runtime.NumCPU())
	v.SetDefault("pricing.chunk_size", 1024)
	v.SetDefault("pricing.seed", 0)

	// Hedging defaults
	v.SetDefault("hedging.num_paths", 10000)
	v.SetDefault("hedging.steps", 100)
	v.SetDefault("hedging.bump_ratio", 0.01)
	v.SetDefault("hedging.runs", 1)
	v.SetDefault("hedging.workers", runtime.NumCPU())
	v.SetDefault("hedging.confidence_level", 0.99)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
}

// GetConfigPath returns PRICER_CONFIG_PATH, or empty to search the defaults
func GetConfigPath() string {
	return os.Getenv("PRICER_CONFIG_PATH")
}
