package config

import (
	"bytes"
	_ "embed"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Functions  FunctionsConfig  `mapstructure:"functions"`
	Contact    ContactConfig    `mapstructure:"contact"`
	Turnstile  TurnstileConfig  `mapstructure:"turnstile"`
	ACS        ACSConfig        `mapstructure:"acs"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MySQL      DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Archiver   ArchiverConfig   `mapstructure:"archiver"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Scrape     ScrapeConfig     `mapstructure:"scrape"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type HTTPConfig struct {
	Addr           string   `mapstructure:"addr"`
	BodyLimit      string   `mapstructure:"body_limit"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// FunctionsConfig drives the Azure Functions custom handler.
type FunctionsConfig struct {
	Port         int    `mapstructure:"port"`
	FunctionName string `mapstructure:"function_name"`
}

// ContactConfig holds the email routing values checked by the config guard.
type ContactConfig struct {
	ToEmail          string `mapstructure:"to_email"`
	Sender           string `mapstructure:"sender"`
	ConnectionString string `mapstructure:"connection_string"`
	SubjectPrefix    string `mapstructure:"subject_prefix"`
}

type TurnstileConfig struct {
	SecretKey string        `mapstructure:"secret_key"`
	VerifyURL string        `mapstructure:"verify_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type ACSConfig struct {
	APIVersion   string        `mapstructure:"api_version"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Breaker      BreakerConfig `mapstructure:"breaker"`
}

type RateLimitConfig struct {
	Backend       string        `mapstructure:"backend"` // memory|redis
	Max           int           `mapstructure:"max"`
	Window        time.Duration `mapstructure:"window"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type ArchiverConfig struct {
	BatchSize   int           `mapstructure:"batch_size"`
	BatchWait   time.Duration `mapstructure:"batch_wait"`
	MetricsAddr string        `mapstructure:"metrics_addr"` // empty disables /metrics
}

type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type ScrapeConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBytes     int64         `mapstructure:"max_bytes"`
	UserAgent    string        `mapstructure:"user_agent"`
	RateMax      int           `mapstructure:"rate_max"` // per IP per rate_window, 0 disables
	RateWindow   time.Duration `mapstructure:"rate_window"`
	AllowPrivate bool          `mapstructure:"allow_private"` // dial loopback and private networks
}

// legacyEnv maps config keys to the unprefixed variable names the
// contact function has always been deployed with.
var legacyEnv = map[string]string{
	"contact.to_email":          "CONTACT_TO_EMAIL",
	"contact.sender":            "ACS_EMAIL_SENDER",
	"contact.connection_string": "ACS_EMAIL_CONNECTION_STRING",
	"contact.subject_prefix":    "CONTACT_SUBJECT_PREFIX",
	"turnstile.secret_key":      "TURNSTILE_SECRET_KEY",
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (LEADGW_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (LEADGW_HTTP_ADDR, ...)
	v.SetEnvPrefix("LEADGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "LEADGW_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
