package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the portfolio backend
type Config struct {
	General     GeneralConfig     `mapstructure:"general"`
	Auth        AuthConfig        `mapstructure:"auth"`
	GitHub      GitHubConfig      `mapstructure:"github"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Collections CollectionsConfig `mapstructure:"collections"`
	Limits      LimitsConfig      `mapstructure:"limits"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Tasks       TasksConfig       `mapstructure:"tasks"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Listen    string `mapstructure:"listen"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // text or json
	Env       string `mapstructure:"env"`
}

// AuthConfig describes the single operator credential and token lifetimes.
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	RefreshThreshold  time.Duration `mapstructure:"refresh_threshold"`
	AdminUsername     string        `mapstructure:"admin_username"`
	AdminPassword     string        `mapstructure:"admin_password"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"` // bcrypt, wins over admin_password
}

func (a AuthConfig) Validate() error {
	if strings.TrimSpace(a.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret required")
	}
	if strings.TrimSpace(a.AdminUsername) == "" {
		return fmt.Errorf("auth.admin_username required")
	}
	if a.AdminPassword == "" && a.AdminPasswordHash == "" {
		return fmt.Errorf("auth.admin_password or auth.admin_password_hash required")
	}
	if a.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if a.RefreshThreshold < 0 || a.RefreshThreshold >= a.TokenTTL {
		return fmt.Errorf("auth.refresh_threshold must be in [0, token_ttl)")
	}
	return nil
}

// GitHubConfig maps content types onto repository paths.
// Every *_directory / *_path value has the form owner/repo/path/to/target.
type GitHubConfig struct {
	Token                  string        `mapstructure:"token"`
	Branch                 string        `mapstructure:"branch"`
	BaseURL                string        `mapstructure:"base_url"`
	Timeout                time.Duration `mapstructure:"timeout"`
	ProjectsDirectory      string        `mapstructure:"projects_directory"`
	ContactsDirectory      string        `mapstructure:"contacts_directory"`
	ImagesDirectory        string        `mapstructure:"images_directory"`
	KnowledgeDirectory     string        `mapstructure:"knowledge_directory"`
	SystemInstructionsPath string        `mapstructure:"system_instructions_path"`
	ImagesPublicPrefix     string        `mapstructure:"images_public_prefix"`
	ImageMaxBytes          int64         `mapstructure:"image_max_bytes"`
	ImageMaxEdge           int           `mapstructure:"image_max_edge"`
	ImageMaxPixels         int64         `mapstructure:"image_max_pixels"`
}

func (g GitHubConfig) Validate() error {
	if strings.TrimSpace(g.Token) == "" {
		return fmt.Errorf("github.token required")
	}
	if _, err := ParseRepoPath(g.ProjectsDirectory); err != nil {
		return fmt.Errorf("github.projects_directory: %w", err)
	}
	if _, err := ParseRepoPath(g.ContactsDirectory); err != nil {
		return fmt.Errorf("github.contacts_directory: %w", err)
	}
	for key, v := range map[string]string{
		"images_directory":         g.ImagesDirectory,
		"knowledge_directory":      g.KnowledgeDirectory,
		"system_instructions_path": g.SystemInstructionsPath,
	} {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, err := ParseRepoPath(v); err != nil {
			return fmt.Errorf("github.%s: %w", key, err)
		}
	}
	if g.ImageMaxBytes <= 0 {
		return fmt.Errorf("github.image_max_bytes must be positive")
	}
	if g.ImageMaxEdge <= 0 {
		return fmt.Errorf("github.image_max_edge must be positive")
	}
	if g.ImageMaxPixels <= 0 {
		return fmt.Errorf("github.image_max_pixels must be positive")
	}
	return nil
}

// StorageConfig contains storage backends
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// RedisConfig is optional; without a host the in-memory rate limiter is used.
type RedisConfig struct {
	Host    string        `mapstructure:"host"`
	Port    string        `mapstructure:"port"`
	Pass    string        `mapstructure:"pass"`
	DB      int           `mapstructure:"db"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

func (r RedisConfig) Validate() error {
	if r.Enabled() && strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required when host is set")
	}
	return nil
}

// CollectionsConfig names documents that other processes write.
type CollectionsConfig struct {
	CountersDocument string `mapstructure:"counters_document"`
	WeeklyWindowDays int    `mapstructure:"weekly_window_days"`
}

type LimitsConfig struct {
	LogDefaultLimit        int `mapstructure:"log_default_limit"`
	LogMaxLimit            int `mapstructure:"log_max_limit"`
	KnowledgeMaxContent    int `mapstructure:"knowledge_max_content"`
	SysInsMaxContent       int `mapstructure:"sys_ins_max_content"`
	SysInsMaxMessage       int `mapstructure:"sys_ins_max_message"`
	CommunicationListLimit int `mapstructure:"communication_list_limit"`
}

func (l LimitsConfig) Validate() error {
	if l.LogDefaultLimit <= 0 || l.LogMaxLimit <= 0 {
		return fmt.Errorf("limits.log_default_limit and limits.log_max_limit must be positive")
	}
	if l.LogDefaultLimit > l.LogMaxLimit {
		return fmt.Errorf("limits.log_default_limit cannot exceed limits.log_max_limit")
	}
	return nil
}

// RateLimitConfig holds "<count>/<period>" rules per endpoint bucket.
type RateLimitConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Default string `mapstructure:"default"`
	Login   string `mapstructure:"login"`
	Save    string `mapstructure:"save"`
}

type TasksConfig struct {
	Workers int           `mapstructure:"workers"`
	Buffer  int           `mapstructure:"buffer"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (t TasksConfig) Normalize() TasksConfig {
	if t.Workers <= 0 {
		t.Workers = 2
	}
	if t.Buffer <= 0 {
		t.Buffer = 64
	}
	if t.Timeout <= 0 {
		t.Timeout = 30 * time.Second
	}
	return t
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.listen", ":8000")
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "text")
	v.SetDefault("auth.token_ttl", "60m")
	v.SetDefault("auth.refresh_threshold", "15m")
	v.SetDefault("github.branch", "main")
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.timeout", "60s")
	v.SetDefault("github.images_public_prefix", "/projects/")
	v.SetDefault("github.image_max_bytes", 10<<20)
	v.SetDefault("github.image_max_edge", 1200)
	v.SetDefault("github.image_max_pixels", 50_000_000)
	v.SetDefault("collections.counters_document", "counters")
	v.SetDefault("collections.weekly_window_days", 7)
	v.SetDefault("limits.log_default_limit", 20)
	v.SetDefault("limits.log_max_limit", 200)
	v.SetDefault("limits.knowledge_max_content", 1_000_000)
	v.SetDefault("limits.sys_ins_max_content", 1_000_000)
	v.SetDefault("limits.sys_ins_max_message", 500)
	v.SetDefault("limits.communication_list_limit", 100)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.default", "100/minute")
	v.SetDefault("rate_limit.login", "10/minute")
	v.SetDefault("rate_limit.save", "20/minute")
	v.SetDefault("tasks.workers", 2)
	v.SetDefault("tasks.buffer", 64)
	v.SetDefault("tasks.timeout", "30s")
	v.SetDefault("storage.redis.timeout", "5s")
}

// envKeys lists every key so AutomaticEnv can populate values absent from the file.
var envKeys = []string{
	"auth.jwt_secret", "auth.admin_username", "auth.admin_password", "auth.admin_password_hash",
	"github.token", "github.projects_directory", "github.contacts_directory",
	"github.images_directory", "github.knowledge_directory", "github.system_instructions_path",
	"storage.postgres.url", "storage.postgres.host", "storage.postgres.port", "storage.postgres.user",
	"storage.postgres.password", "storage.postgres.dbname", "storage.postgres.sslmode",
	"storage.redis.host", "storage.redis.port", "storage.redis.pass", "storage.redis.db",
	"general.env",
}

// Load reads the config file (optional) plus PORTFOLIO_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("PORTFOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Tasks = cfg.Tasks.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	for _, fn := range []func() error{
		c.Auth.Validate,
		c.GitHub.Validate,
		c.Storage.Postgres.Validate,
		c.Storage.Redis.Validate,
		c.Limits.Validate,
	} {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// LoadConfig is Load for process bootstrap: configuration errors are fatal.
func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return cfg
}
