// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"vip-key-shop/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"` // empty disables the bot
	Mode     string  `yaml:"mode"`  // polling only
	Username string  `yaml:"username"`
	Workers  int     `yaml:"workers"` // polling workers
	AdminIDs []int64 `yaml:"admin_ids"`
	Language string  `yaml:"language"` // vi | en
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type AdminConfig struct {
	Password     string        `yaml:"password"`      // plain, compared in constant time
	PasswordHash string        `yaml:"password_hash"` // bcrypt; preferred over password
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty disables locking, rate limits and pending orders
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"` // MinIO / R2; empty for AWS
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

type StorageConfig struct {
	Backend string        `yaml:"backend"` // file | s3 | postgres
	Dir     string        `yaml:"dir"`     // file backend root
	S3      S3Config      `yaml:"s3"`
	LockTTL time.Duration `yaml:"lock_ttl"`
}

type BankConfig struct {
	Provider   string        `yaml:"provider"` // http | static
	URL        string        `yaml:"url"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout"`
	StaticFile string        `yaml:"static_file"` // static provider: JSON file in feed format
}

type TierConfig struct {
	Name         string `yaml:"name"`
	MinAmount    int64  `yaml:"min_amount"`
	DurationDays int    `yaml:"duration_days"`
	MaxUses      int    `yaml:"max_uses"`
}

type OrdersConfig struct {
	MinReferenceLength int           `yaml:"min_reference_length"`
	PendingTTL         time.Duration `yaml:"pending_ttl"`
	ReconcileInterval  time.Duration `yaml:"reconcile_interval"`
	ReconcileWorkers   int           `yaml:"reconcile_workers"`
	ReconcileBatch     int           `yaml:"reconcile_batch"`
}

type VPNConfig struct {
	DefaultPlanDays int   `yaml:"default_plan_days"`
	MinAmount       int64 `yaml:"min_amount"` // 0 accepts any matched transfer
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Bank     BankConfig     `yaml:"bank"`
	Tiers    []TierConfig   `yaml:"tiers"`
	Orders   OrdersConfig   `yaml:"orders"`
	VPN      VPNConfig      `yaml:"vpn"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads .env (if present) into the environment, then parses the
// YAML file at path with ${VAR} placeholders expanded.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse builds a Config from raw YAML, applying defaults and validation.
func Parse(raw []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 4
	}
	if cfg.Bot.Language == "" {
		cfg.Bot.Language = "vi"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 3000
	}
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"*"}
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = time.Hour
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "public/data"
	}
	if cfg.Storage.LockTTL <= 0 {
		cfg.Storage.LockTTL = 10 * time.Second
	}

	cfg.Bank.Provider = strings.ToLower(strings.TrimSpace(cfg.Bank.Provider))
	if cfg.Bank.Provider == "" {
		cfg.Bank.Provider = "http"
	}
	if cfg.Bank.Timeout <= 0 {
		cfg.Bank.Timeout = 10 * time.Second
	}

	if cfg.Orders.MinReferenceLength <= 0 {
		cfg.Orders.MinReferenceLength = 4
	}
	if cfg.Orders.PendingTTL <= 0 {
		cfg.Orders.PendingTTL = 2 * time.Hour
	}
	if cfg.Orders.ReconcileInterval <= 0 {
		cfg.Orders.ReconcileInterval = time.Minute
	}
	if cfg.Orders.ReconcileWorkers <= 0 {
		cfg.Orders.ReconcileWorkers = 2
	}
	if cfg.Orders.ReconcileBatch <= 0 {
		cfg.Orders.ReconcileBatch = 100
	}
	if cfg.VPN.DefaultPlanDays <= 0 {
		cfg.VPN.DefaultPlanDays = 30
	}
}

// Minimal validation
func (cfg *Config) validate() error {
	switch cfg.Storage.Backend {
	case "file":
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 backend")
		}
	case "postgres":
		if cfg.Database.URL == "" {
			return errors.New("database.url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", cfg.Storage.Backend)
	}

	switch cfg.Bank.Provider {
	case "http":
		if cfg.Bank.URL == "" {
			return errors.New("bank.url is required")
		}
	case "static":
		if cfg.Bank.StaticFile == "" {
			return errors.New("bank.static_file is required for the static provider")
		}
	default:
		return fmt.Errorf("bank.provider %q is not supported", cfg.Bank.Provider)
	}

	if cfg.AdminEnabled() && len(cfg.Admin.JWTSecret) < 16 {
		return errors.New("admin.jwt_secret must be at least 16 bytes when an admin password is set")
	}
	if _, err := model.NewTierTable(cfg.TierList()); err != nil {
		return fmt.Errorf("tiers: %w", err)
	}
	return nil
}

// AdminEnabled reports whether the HTTP admin surface can be logged into.
func (cfg *Config) AdminEnabled() bool {
	return cfg.Admin.Password != "" || cfg.Admin.PasswordHash != ""
}

// TierList converts configured tiers, falling back to the built-in table.
func (cfg *Config) TierList() []model.Tier {
	if len(cfg.Tiers) == 0 {
		return model.DefaultTiers()
	}
	out := make([]model.Tier, 0, len(cfg.Tiers))
	for _, t := range cfg.Tiers {
		out = append(out, model.Tier{
			Name:         t.Name,
			MinAmount:    t.MinAmount,
			DurationDays: t.DurationDays,
			MaxUses:      t.MaxUses,
		})
	}
	return out
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
