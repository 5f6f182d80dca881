package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

const (
	DefaultConfigFile = "coursewatch.yaml"
	DefaultRecordDir  = "record"
	DefaultDBFile     = "record/coursewatch.db"
	DefaultTimezone   = "Asia/Shanghai"
	envPrefix         = "COURSEWATCH"
)

// ErrInvalid is wrapped by every configuration validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Methods lists the accepted notify.method values.
var Methods = []string{"email", "bark", "sct", "sc3", "telegram", "slack", "webhook"}

// legacyEnv binds the secret names used by existing CI workflows.
var legacyEnv = map[string]string{
	"portal.username":       "IAAA_USERNAME",
	"portal.password":       "IAAA_PASSWORD",
	"notify.email.address":  "EMAIL_ADDRESS",
	"notify.email.password": "EMAIL_PASSWORD",
	"notify.sendkey":        "SENDKEY",
}

// Load reads the config file and environment and returns a normalised Config.
// An explicitly given path must exist; without one, a missing default file is
// tolerated so that fully env-driven deployments work.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultConfigFile, filepath.Ext(DefaultConfigFile)))
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "coursewatch"))
		}
	}

	setDefaults(v)
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, envKey(key), env); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && configPath == "":
			// No file; defaults and env only.
		case configPath != "" && os.IsNotExist(err):
			return nil, fmt.Errorf("%w: config file %s not found", ErrInvalid, configPath)
		default:
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to configPath as YAML.
func Save(cfg *Config, configPath string) error {
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}
	return os.WriteFile(configPath, data, 0o600)
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return filepath.Abs(DefaultConfigFile)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "coursewatch", DefaultConfigFile), nil
}

// Default returns a Config populated with the same defaults Load applies.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.Normalize()
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("portal.base_url", "https://course.pku.edu.cn")
	v.SetDefault("portal.iaaa_url", "https://iaaa.pku.edu.cn")
	v.SetDefault("portal.username", "")
	v.SetDefault("portal.password", "")
	v.SetDefault("portal.timezone", DefaultTimezone)
	v.SetDefault("portal.stream_settle", 3*time.Second)
	v.SetDefault("portal.request_interval", 500*time.Millisecond)
	v.SetDefault("portal.timeout", 30*time.Second)
	v.SetDefault("portal.retry_max", 3)

	v.SetDefault("store.driver", "file")
	v.SetDefault("store.dir", DefaultRecordDir)
	v.SetDefault("store.path", DefaultDBFile)
	v.SetDefault("store.dsn", "")

	v.SetDefault("notify.method", "")
	v.SetDefault("notify.email.address", "")
	v.SetDefault("notify.email.password", "")
	v.SetDefault("notify.email.sender", "coursewatch")
	v.SetDefault("notify.email.smtp_host", "")
	v.SetDefault("notify.email.smtp_port", 465)
	v.SetDefault("notify.bark.key", "")
	v.SetDefault("notify.bark.server", "https://api.day.app")
	v.SetDefault("notify.sendkey", "")
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")
	v.SetDefault("notify.slack.webhook_url", "")
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.secret", "")

	v.SetDefault("notice.enabled", false)
	v.SetDefault("notice.title_prefix", "")
	v.SetDefault("notice.display_time", true)
	v.SetDefault("notice.allowed_events", "123")

	v.SetDefault("assignment.enabled", false)
	v.SetDefault("assignment.title_prefix", "")
	v.SetDefault("assignment.display_time", true)
	v.SetDefault("assignment.advance_hours", 0)
}

func envKey(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Normalize lower-cases every course-name key so lookups can be made
// case-insensitive, and expands "@" in title prefixes to a space.
func (c *Config) Normalize() {
	c.Alias = lowerKeys(c.Alias)
	c.Notice.CourseEvents = lowerKeys(c.Notice.CourseEvents)
	blocked := make([]string, 0, len(c.Notice.BlockedCourses))
	for _, name := range c.Notice.BlockedCourses {
		if name = strings.TrimSpace(name); name != "" {
			blocked = append(blocked, strings.ToLower(name))
		}
	}
	c.Notice.BlockedCourses = blocked
	c.Notice.TitlePrefix = strings.ReplaceAll(c.Notice.TitlePrefix, "@", " ")
	c.Assignment.TitlePrefix = strings.ReplaceAll(c.Assignment.TitlePrefix, "@", " ")
	c.Notify.Method = strings.ToLower(strings.TrimSpace(c.Notify.Method))
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

// Validate reports the first configuration error. It never touches the
// network or the record store.
func (c *Config) Validate() error {
	if !c.Notice.Enabled && !c.Assignment.Enabled {
		return nil
	}
	if c.Portal.Username == "" || c.Portal.Password == "" {
		return fmt.Errorf("%w: portal.username and portal.password are required", ErrInvalid)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if !validMethod(c.Notify.Method) {
		return fmt.Errorf("%w: notify.method must be one of %s (got %q)",
			ErrInvalid, strings.Join(Methods, ", "), c.Notify.Method)
	}
	if c.Assignment.Enabled && c.Assignment.AdvanceHours <= 0 {
		return fmt.Errorf("%w: assignment.advance_hours must be a positive integer (got %d)",
			ErrInvalid, c.Assignment.AdvanceHours)
	}
	switch c.Store.Driver {
	case "file", "":
		if c.Store.Dir == "" {
			return fmt.Errorf("%w: store.dir is required for the file driver", ErrInvalid)
		}
	case "sqlite", "sqlite3":
	case "mysql":
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for the mysql driver", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unsupported store.driver %q (supported: file, sqlite, mysql)", ErrInvalid, c.Store.Driver)
	}
	return nil
}

// Location resolves Portal.Timezone.
func (c *Config) Location() (*time.Location, error) {
	name := c.Portal.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: portal.timezone %q: %v", ErrInvalid, name, err)
	}
	return loc, nil
}

// Redacted returns a copy of c with secrets masked.
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if *s != "" {
			*s = "***"
		}
	}
	mask(&c.Portal.Password)
	mask(&c.Notify.Email.Password)
	mask(&c.Notify.SendKey)
	mask(&c.Notify.Bark.Key)
	mask(&c.Notify.Telegram.BotToken)
	mask(&c.Notify.Slack.WebhookURL)
	mask(&c.Notify.Webhook.Secret)
	if strings.Contains(c.Store.DSN, "@") {
		c.Store.DSN = "***@" + c.Store.DSN[strings.LastIndex(c.Store.DSN, "@")+1:]
	}
	return c
}

func validMethod(m string) bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}
