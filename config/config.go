package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Gauge    GaugeConfig    `mapstructure:"gauge"`
	Usage    UsageConfig    `mapstructure:"usage"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type GaugeConfig struct {
	REST RESTConfig `mapstructure:"rest"`
	WS   WSConfig   `mapstructure:"ws"`
}

type RESTConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WSConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// UsageConfig holds the tuning constants of the usage normalization
// engine. Defaults are calibrated for ~275-gallon residential tanks;
// override per deployment rather than editing code.
type UsageConfig struct {
	FillThresholdGal    float64       `mapstructure:"fill_threshold_gal"`    // level jump that counts as a delivery
	NoiseThresholdGal   float64       `mapstructure:"noise_threshold_gal"`   // small rise treated as sensor noise
	StabilityWindow     time.Duration `mapstructure:"stability_window"`      // post-fill settling period
	NearFullFraction    float64       `mapstructure:"near_full_fraction"`    // fraction of capacity where readings get erratic
	HighTankLevelGal    float64       `mapstructure:"high_tank_level_gal"`   // absolute level above which day summaries are unreliable
	SummerCapGal        float64       `mapstructure:"summer_cap_gal"`        // daily cap when HDD < 5
	WinterCapGal        float64       `mapstructure:"winter_cap_gal"`        // daily cap otherwise
	BaseLoadGal         float64       `mapstructure:"base_load_gal"`         // non-heating load (hot water)
	DefaultKFactor      float64       `mapstructure:"default_k_factor"`      // gallons per HDD with no history
	MaxKFactor          float64       `mapstructure:"max_k_factor"`          // upper clamp on measured k-factor
	DefaultTankCapacity float64       `mapstructure:"default_tank_capacity"` // gallons, when the location has none set
}

// DefaultUsageConfig returns the stock tuning values. Tests and callers
// that skip viper start from here.
func DefaultUsageConfig() UsageConfig {
	return UsageConfig{
		FillThresholdGal:    30.0,
		NoiseThresholdGal:   2.0,
		StabilityWindow:     48 * time.Hour,
		NearFullFraction:    0.85,
		HighTankLevelGal:    230.0,
		SummerCapGal:        2.0,
		WinterCapGal:        15.0,
		BaseLoadGal:         0.5,
		DefaultKFactor:      0.15,
		MaxKFactor:          0.4,
		DefaultTankCapacity: 275.0,
	}
}

type ScheduleConfig struct {
	Hour       int `mapstructure:"hour"`        // UTC hour of the nightly run
	WindowDays int `mapstructure:"window_days"` // rolling recalculation window
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		v.AddConfigPath(filepath.Join(pwd, "../../config"))
	} else {
		v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
	}

	// Support environment variables with dot notation (e.g., POSTGRES_HOST)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setUsageDefaults(v)
	v.SetDefault("schedule.hour", 2)
	v.SetDefault("schedule.window_days", 45)

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	return &cfg
}

func setUsageDefaults(v *viper.Viper) {
	d := DefaultUsageConfig()
	v.SetDefault("usage.fill_threshold_gal", d.FillThresholdGal)
	v.SetDefault("usage.noise_threshold_gal", d.NoiseThresholdGal)
	v.SetDefault("usage.stability_window", d.StabilityWindow)
	v.SetDefault("usage.near_full_fraction", d.NearFullFraction)
	v.SetDefault("usage.high_tank_level_gal", d.HighTankLevelGal)
	v.SetDefault("usage.summer_cap_gal", d.SummerCapGal)
	v.SetDefault("usage.winter_cap_gal", d.WinterCapGal)
	v.SetDefault("usage.base_load_gal", d.BaseLoadGal)
	v.SetDefault("usage.default_k_factor", d.DefaultKFactor)
	v.SetDefault("usage.max_k_factor", d.MaxKFactor)
	v.SetDefault("usage.default_tank_capacity", d.DefaultTankCapacity)
}
