package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`

	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		Path           string `mapstructure:"PATH"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`

	Matching struct {
		Threshold      int `mapstructure:"THRESHOLD"`
		DateWindowDays int `mapstructure:"DATE_WINDOW_DAYS"`
	} `mapstructure:"MATCHING"`

	Domains struct {
		Partner       []string `mapstructure:"PARTNER"`
		MassProviders []string `mapstructure:"MASS_PROVIDERS"`
	} `mapstructure:"DOMAINS"`

	Products []ProductConfig `mapstructure:"PRODUCTS"`

	Deal struct {
		NameTemplate string `mapstructure:"NAME_TEMPLATE"`
	} `mapstructure:"DEAL"`

	Reconcile struct {
		SourcePath       string `mapstructure:"SOURCE_PATH"`
		ApplyConcurrency int    `mapstructure:"APPLY_CONCURRENCY"`
	} `mapstructure:"RECONCILE"`
}

// ProductConfig describes one marketplace product the engine may encounter.
// A product referenced by a license but absent here (or present without a
// platform) is a configuration fault, reported with the exact key to fix.
type ProductConfig struct {
	Key      string `mapstructure:"KEY"`
	Platform string `mapstructure:"PLATFORM"`
	Archived bool   `mapstructure:"ARCHIVED"`
}

// MatchingThreshold falls back to the engine default when unset.
func (c *Config) MatchingThreshold() int {
	if c.Matching.Threshold == 0 {
		return 130
	}
	return c.Matching.Threshold
}

func (c *Config) MatchingDateWindow() time.Duration {
	days := c.Matching.DateWindowDays
	if days == 0 {
		days = 90
	}
	return time.Duration(days) * 24 * time.Hour
}

// PartnerDomains returns the configured reseller/partner email domains,
// lowercased, as a lookup set.
func (c *Config) PartnerDomains() map[string]bool {
	return domainSet(c.Domains.Partner)
}

// MassProviderDomains returns the configured free/disposable email provider
// domains, lowercased, as a lookup set.
func (c *Config) MassProviderDomains() map[string]bool {
	return domainSet(c.Domains.MassProviders)
}

func (c *Config) ApplyConcurrency() int {
	if c.Reconcile.ApplyConcurrency <= 0 {
		return 4
	}
	return c.Reconcile.ApplyConcurrency
}

func domainSet(domains []string) map[string]bool {
	set := make(map[string]bool, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			set[d] = true
		}
	}
	return set
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() (*Config, error) {
	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			zap.L().Error("failed to read config", zap.Error(err))
			return nil, err
		}
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		return nil, err
	}

	return &cfg, nil
}
