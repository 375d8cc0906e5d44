// Package config loads the site configuration.
//
// Precedence, highest first: explicitly set flags, PORTFOLIO_* environment
// variables (a .env file is loaded into the environment first), an optional
// config.{yaml,yml,json,toml} file, then defaults.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/logging"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "PORTFOLIO"

// Relay providers.
const (
	ProviderEmailJS = "emailjs"
	ProviderSMTP    = "smtp"
	ProviderLog     = "log"
)

// RelayConfig selects and tunes the contact relay.
type RelayConfig struct {
	Provider       string        `mapstructure:"provider"`
	Timeout        time.Duration `mapstructure:"-"` // from relay.timeout
	RecipientLabel string        `mapstructure:"recipient_label"`
}

// EmailJSConfig holds the hosted relay credentials.
type EmailJSConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceID   string `mapstructure:"service_id"`
	TemplateID  string `mapstructure:"template_id"`
	PublicKey   string `mapstructure:"public_key"`
	AccessToken string `mapstructure:"access_token"`
}

// SMTPConfig holds direct mail delivery settings.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
	To       string `mapstructure:"to"`
	UseSSL   bool   `mapstructure:"use_ssl"`
}

// AdminConfig controls the admin dashboard login.
type AdminConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	PasswordHash string `mapstructure:"password_hash"` // bcrypt; wins over Password
}

// Config is the full site configuration.
type Config struct {
	Env      string `mapstructure:"env"`       // "dev" | "prod"
	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error …

	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"-"` // from shutdown_timeout

	ContentFile string `mapstructure:"content_file"` // empty = built-in content
	DBPath      string `mapstructure:"db_path"`

	// contact form abuse guard, per client
	ContactRatePerMinute float64 `mapstructure:"contact_rate_per_minute"`
	ContactBurst         int     `mapstructure:"contact_burst"`

	Relay   RelayConfig   `mapstructure:"relay"`
	EmailJS EmailJSConfig `mapstructure:"emailjs"`
	SMTP    SMTPConfig    `mapstructure:"smtp"`
	Admin   AdminConfig   `mapstructure:"admin"`
}

// IsProd reports whether the site runs with production settings.
func (c Config) IsProd() bool { return c.Env == "prod" }

// Dump returns indented JSON with secrets redacted, for debug logging.
func (c Config) Dump() string {
	cp := c
	redact := func(s *string) {
		if *s != "" {
			*s = "[redacted]"
		}
	}
	redact(&cp.EmailJS.AccessToken)
	redact(&cp.SMTP.Password)
	redact(&cp.Admin.Password)
	redact(&cp.Admin.PasswordHash)
	b, _ := json.MarshalIndent(cp, "", "  ")
	return string(b)
}

// Load merges defaults, an optional config file, the environment and
// args into a validated Config. args excludes the program name.
func Load(logger *zap.Logger, args []string) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded .env file")
	}

	fs := pflag.NewFlagSet("portfolio", pflag.ContinueOnError)
	fs.String("config", "", "Path to a config file (default: ./config.{yaml,yml,json,toml})")
	fs.String("env", "dev", `Runtime environment "dev"|"prod"`)
	fs.String("log_level", "debug", "Log level")
	fs.Int("http_port", 8080, "HTTP port")
	fs.String("content_file", "", "YAML file with portfolio content (default: built-in)")
	fs.String("db_path", "portfolio.db", "SQLite database path")
	fs.String("relay.provider", ProviderLog, "Contact relay: emailjs | smtp | log")
	fs.Bool("admin.enabled", true, "Serve the admin dashboard")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, k := range allKeys() {
		_ = v.BindEnv(k)
	}

	setDefaults(v)

	path, _ := fs.GetString("config")
	if err := mergeConfigFile(logger, v, path); err != nil {
		return nil, err
	}

	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed && f.Name != "config" {
			_ = v.BindPFlag(f.Name, f)
		}
	})

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	timeout, err := parseDurationFlexible(v.Get("relay.timeout"), 15*time.Second)
	if err != nil {
		logger.Warn("invalid relay.timeout; using default 15s",
			zap.Any("value", v.Get("relay.timeout")), zap.Error(err))
	}
	cfg.Relay.Timeout = timeout

	shutdown, err := parseDurationFlexible(v.Get("shutdown_timeout"), 10*time.Second)
	if err != nil {
		logger.Warn("invalid shutdown_timeout; using default 10s",
			zap.Any("value", v.Get("shutdown_timeout")), zap.Error(err))
	}
	cfg.ShutdownTimeout = shutdown

	cfg.Relay.Provider = strings.ToLower(strings.TrimSpace(cfg.Relay.Provider))

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func mergeConfigFile(logger *zap.Logger, v *viper.Viper, path string) error {
	var candidates []string
	if path != "" {
		candidates = []string{path}
	} else {
		for _, ext := range [...]string{"yaml", "yml", "json", "toml"} {
			candidates = append(candidates, "config."+ext)
		}
	}

	for _, file := range candidates {
		b, err := os.ReadFile(file)
		if err != nil {
			if path != "" {
				return fmt.Errorf("read config file %s: %w", file, err)
			}
			continue
		}
		ext := strings.TrimPrefix(fileExt(file), ".")
		if ext == "yml" {
			ext = "yaml"
		}
		v.SetConfigType(ext)
		if err := v.MergeConfig(bytes.NewReader(b)); err != nil {
			return fmt.Errorf("decode config file %s: %w", file, err)
		}
		logger.Info("Loaded config file", zap.String("file", file))
		return nil
	}
	return nil
}

func fileExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

func allKeys() []string {
	return []string{
		"env", "log_level",
		"http_port", "shutdown_timeout",
		"content_file", "db_path",
		"contact_rate_per_minute", "contact_burst",
		"relay.provider", "relay.timeout", "relay.recipient_label",
		"emailjs.endpoint", "emailjs.service_id", "emailjs.template_id",
		"emailjs.public_key", "emailjs.access_token",
		"smtp.host", "smtp.port", "smtp.username", "smtp.password",
		"smtp.from", "smtp.from_name", "smtp.to", "smtp.use_ssl",
		"admin.enabled", "admin.username", "admin.password", "admin.password_hash",
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "debug")
	v.SetDefault("http_port", 8080)
	v.SetDefault("shutdown_timeout", "10s")

	v.SetDefault("content_file", "")
	v.SetDefault("db_path", "portfolio.db")

	v.SetDefault("contact_rate_per_minute", 5.0)
	v.SetDefault("contact_burst", 3)

	v.SetDefault("relay.provider", ProviderLog)
	v.SetDefault("relay.timeout", "15s")
	v.SetDefault("relay.recipient_label", "Zach")

	v.SetDefault("emailjs.endpoint", "https://api.emailjs.com/api/v1.0/email/send")
	v.SetDefault("emailjs.service_id", "")
	v.SetDefault("emailjs.template_id", "")
	v.SetDefault("emailjs.public_key", "")
	v.SetDefault("emailjs.access_token", "")

	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.from_name", "Portfolio Contact")
	v.SetDefault("smtp.to", "")
	v.SetDefault("smtp.use_ssl", false)

	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.password_hash", "")
}

// parseDurationFlexible accepts Go duration strings ("15s", "2m") or a
// bare number of seconds. nil or "" yields def.
func parseDurationFlexible(val any, def time.Duration) (time.Duration, error) {
	switch t := val.(type) {
	case nil:
		return def, nil
	case time.Duration:
		return t, nil
	case int:
		return time.Duration(t) * time.Second, nil
	case int64:
		return time.Duration(t) * time.Second, nil
	case float64:
		return time.Duration(t * float64(time.Second)), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return def, nil
		}
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
		if n, err := strconv.Atoi(s); err == nil {
			return time.Duration(n) * time.Second, nil
		}
		return def, fmt.Errorf("cannot parse duration %q", s)
	}
	return def, fmt.Errorf("unsupported duration type %T", val)
}

func validate(cfg Config) error {
	var missing []string
	var invalid []string

	if cfg.Env != "dev" && cfg.Env != "prod" {
		invalid = append(invalid, `env must be "dev" or "prod"`)
	}
	if !logging.IsValidLogLevel(cfg.LogLevel) {
		invalid = append(invalid, "log_level must be one of "+strings.Join(logging.ValidLogLevels, ", "))
	}
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		invalid = append(invalid, "http_port must be in 1..65535")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		missing = append(missing, "PORTFOLIO_DB_PATH (or --db_path)")
	}
	if cfg.ContactRatePerMinute < 0 {
		invalid = append(invalid, "contact_rate_per_minute must be >= 0")
	}
	if cfg.ContactRatePerMinute > 0 && cfg.ContactBurst < 1 {
		invalid = append(invalid, "contact_burst must be >= 1 when rate limiting is on")
	}
	if cfg.Relay.Timeout < 0 {
		invalid = append(invalid, "relay.timeout must be >= 0")
	}

	switch cfg.Relay.Provider {
	case ProviderEmailJS:
		if cfg.EmailJS.ServiceID == "" {
			missing = append(missing, "PORTFOLIO_EMAILJS_SERVICE_ID")
		}
		if cfg.EmailJS.TemplateID == "" {
			missing = append(missing, "PORTFOLIO_EMAILJS_TEMPLATE_ID")
		}
		if cfg.EmailJS.PublicKey == "" {
			missing = append(missing, "PORTFOLIO_EMAILJS_PUBLIC_KEY")
		}
	case ProviderSMTP:
		if cfg.SMTP.Host == "" {
			missing = append(missing, "PORTFOLIO_SMTP_HOST")
		}
		if cfg.SMTP.From == "" {
			missing = append(missing, "PORTFOLIO_SMTP_FROM")
		}
		if cfg.SMTP.To == "" {
			missing = append(missing, "PORTFOLIO_SMTP_TO")
		}
		if cfg.SMTP.Port <= 0 || cfg.SMTP.Port > 65535 {
			invalid = append(invalid, "smtp.port must be in 1..65535")
		}
	case ProviderLog:
	default:
		invalid = append(invalid, fmt.Sprintf("relay.provider %q is not one of emailjs, smtp, log", cfg.Relay.Provider))
	}

	if cfg.Admin.Enabled && cfg.IsProd() && cfg.Admin.Password == "" && cfg.Admin.PasswordHash == "" {
		missing = append(missing, "PORTFOLIO_ADMIN_PASSWORD or PORTFOLIO_ADMIN_PASSWORD_HASH in prod")
	}

	if len(missing) == 0 && len(invalid) == 0 {
		return nil
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(invalid, ", "))
	}
	return fmt.Errorf("configuration errors: %s", strings.Join(parts, " | "))
}
