package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Circulation CirculationConfig `mapstructure:"circulation"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

// CirculationConfig carries the lending policy constants. All durations
// are whole days; money values are parsed into decimals once at startup.
type CirculationConfig struct {
	BorrowDurationDays  int     `mapstructure:"borrow_duration_days"`
	RenewalDurationDays int     `mapstructure:"renewal_duration_days"`
	MaxRenewals         int     `mapstructure:"max_renewals"`
	FinePerDay          float64 `mapstructure:"fine_per_day"`
	MaxFineAmount       float64 `mapstructure:"max_fine_amount"`
	PickupWindowDays    int     `mapstructure:"pickup_window_days"`
	MaxConcurrentLoans  int     `mapstructure:"max_concurrent_loans"`
}

// FinePerDayDecimal returns the per-day fine as a decimal
func (c CirculationConfig) FinePerDayDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.FinePerDay)
}

// MaxFineDecimal returns the fine cap as a decimal
func (c CirculationConfig) MaxFineDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxFineAmount)
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("$HOME/.circulation")
	viper.AddConfigPath("/etc/circulation")

	viper.SetEnvPrefix("CIRC")
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("circulation.borrow_duration_days", 14)
	viper.SetDefault("circulation.renewal_duration_days", 7)
	viper.SetDefault("circulation.max_renewals", 2)
	viper.SetDefault("circulation.fine_per_day", 0.50)
	viper.SetDefault("circulation.max_fine_amount", 50.00)
	viper.SetDefault("circulation.pickup_window_days", 3)
	viper.SetDefault("circulation.max_concurrent_loans", 5)

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Override with environment variables
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		viper.Set("redis.url", redisURL)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Circulation.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c CirculationConfig) validate() error {
	if c.BorrowDurationDays <= 0 {
		return fmt.Errorf("circulation.borrow_duration_days must be positive, got %d", c.BorrowDurationDays)
	}
	if c.RenewalDurationDays <= 0 {
		return fmt.Errorf("circulation.renewal_duration_days must be positive, got %d", c.RenewalDurationDays)
	}
	if c.MaxRenewals < 0 {
		return fmt.Errorf("circulation.max_renewals must not be negative, got %d", c.MaxRenewals)
	}
	if c.FinePerDay < 0 {
		return fmt.Errorf("circulation.fine_per_day must not be negative, got %f", c.FinePerDay)
	}
	if c.MaxFineAmount < 0 {
		return fmt.Errorf("circulation.max_fine_amount must not be negative, got %f", c.MaxFineAmount)
	}
	if c.PickupWindowDays <= 0 {
		return fmt.Errorf("circulation.pickup_window_days must be positive, got %d", c.PickupWindowDays)
	}
	if c.MaxConcurrentLoans <= 0 {
		return fmt.Errorf("circulation.max_concurrent_loans must be positive, got %d", c.MaxConcurrentLoans)
	}
	return nil
}
