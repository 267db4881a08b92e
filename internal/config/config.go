package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chxlky/contract-kanban/database"
	"github.com/chxlky/contract-kanban/internal/models"
	"github.com/chxlky/contract-kanban/internal/storage"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Database database.Config `mapstructure:"database"`
	Storage  storage.Config  `mapstructure:"storage"`
	Session  SessionConfig   `mapstructure:"session"`
	Cards    CardsConfig     `mapstructure:"cards"`
	Activity ActivityConfig  `mapstructure:"activity"`
	Import   ImportConfig    `mapstructure:"import"`
	Uploads  UploadsConfig   `mapstructure:"uploads"`
	Google   GoogleConfig    `mapstructure:"google"`
	Log      LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	AppURL   string `mapstructure:"app_url"`
	FrontURL string `mapstructure:"front_url"`
}

type SessionConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	CookieName string        `mapstructure:"cookie_name"`
	Secure     bool          `mapstructure:"secure"`
	RedisAddr  string        `mapstructure:"redis_addr"`
}

// CardsConfig holds the stage vocabulary. LaneStages keys are matched
// case-insensitively since viper lowercases them.
type CardsConfig struct {
	AllowLaneChange bool                `mapstructure:"allow_lane_change"`
	Stages          []string            `mapstructure:"stages"`
	LaneStages      map[string][]string `mapstructure:"lane_stages"`
}

type ActivityConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

type ImportConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Attempts uint          `mapstructure:"attempts"`
}

type UploadsConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type GoogleConfig struct {
	CalendarID     string         `mapstructure:"calendar_id"`
	ServiceAccount map[string]any `mapstructure:"service_account"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var DefaultAllowedTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/pjpeg",
	"image/png",
	"image/gif",
	"application/pdf",
	"application/zip",
	"application/x-zip-compressed",
	"multipart/x-zip",
	"application/x-compressed",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.app_url", "http://localhost:8080")
	v.SetDefault("server.front_url", "http://localhost:3000")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "contracts.db")
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.dir", "tmp")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.trash_bucket", "")
	v.SetDefault("storage.s3.use_ssl", false)
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.gcs.trash_bucket", "")
	v.SetDefault("storage.gcs.credentials_file", "")
	v.SetDefault("session.ttl", "4h")
	v.SetDefault("session.cookie_name", "sid")
	v.SetDefault("session.secure", false)
	v.SetDefault("session.redis_addr", "")
	v.SetDefault("cards.allow_lane_change", false)
	v.SetDefault("cards.stages", models.DefaultStages)
	v.SetDefault("activity.queue_size", 256)
	v.SetDefault("import.timeout", "30s")
	v.SetDefault("import.attempts", 3)
	v.SetDefault("uploads.max_size", 10*1024*1024)
	v.SetDefault("uploads.allowed_types", DefaultAllowedTypes)
	v.SetDefault("google.calendar_id", "")
	v.SetDefault("log.level", "debug")
}

// Flags registers the command line flags understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("contract-kanban", pflag.ContinueOnError)
	fs.String("config", "", "path to the TOML config file (default ./config.toml)")
	fs.String("port", "", "HTTP port, overrides server.port")
	return fs
}

// Load reads config.toml, then CONTRACTS_* environment variables, then flags.
// A missing default config file is not an error.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	path, _ := fs.GetString("config")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CONTRACTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("log.level", "CONTRACTS_LOG_LEVEL", "LOG_LEVEL")

	if f := fs.Lookup("port"); f != nil && f.Changed {
		if err := v.BindPFlag("server.port", f); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Cards.Stages) == 0 {
		cfg.Cards.Stages = models.DefaultStages
	}
	return &cfg, nil
}
