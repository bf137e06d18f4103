package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	DB       DBConfig       `mapstructure:"db"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Admin    AdminConfig    `mapstructure:"admin"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Log      LogConfig      `mapstructure:"log"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	// DebugOTP echoes freshly generated order OTPs in API responses
	DebugOTP bool `mapstructure:"debug_otp"`
}

// IsProduction reports whether internal error details must be hidden
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, EnvProduction)
}

type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// OTPRatePerMinute bounds OTP-issuing requests per client IP
	OTPRatePerMinute int      `mapstructure:"otp_rate_per_minute"`
	CORSOrigins      []string `mapstructure:"cors_origins"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | mysql
	DSN    string `mapstructure:"dsn"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type AdminConfig struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email"`
	Phone    string `mapstructure:"phone"`
	Password string `mapstructure:"password"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type DispatchConfig struct {
	RadiusKm      float64       `mapstructure:"radius_km"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// NewViper builds a viper instance reading config.yaml (optional) and the environment.
// Keys map to env vars by upper-casing and replacing dots: db.dsn -> DB_DSN.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.name", "food-marketplace-api")
	v.SetDefault("app.env", EnvDevelopment)
	v.SetDefault("app.debug_otp", false)
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.otp_rate_per_minute", 5)
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "food_marketplace.db")
	v.SetDefault("auth.jwt_secret", "food_marketplace_dev_secret")
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("admin.name", "Platform Admin")
	v.SetDefault("admin.email", "admin@foodmarket.local")
	v.SetDefault("admin.phone", "0000000000")
	v.SetDefault("admin.password", "admin123")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "no-reply@foodmarket.local")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic", "order-events")
	v.SetDefault("dispatch.radius_km", 10.0)
	v.SetDefault("dispatch.sweep_interval", time.Minute)
	v.SetDefault("log.level", "info")

	// names the service used before the config file existed
	_ = v.BindEnv("http.port", "HTTP_PORT", "PORT")
	_ = v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET", "JWT_SECRET")
	return v
}

// Load reads .env (if present), then config.yaml and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := NewViper()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt_secret is required")
	}
	if c.App.IsProduction() && c.Auth.JWTSecret == "food_marketplace_dev_secret" {
		return errors.New("config: set auth.jwt_secret in production")
	}
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("config: unsupported db.driver %q", c.DB.Driver)
	}
	if c.Dispatch.RadiusKm <= 0 {
		return errors.New("config: dispatch.radius_km must be positive")
	}
	if c.Dispatch.SweepInterval <= 0 {
		return errors.New("config: dispatch.sweep_interval must be positive")
	}
	if c.HTTP.OTPRatePerMinute <= 0 {
		return errors.New("config: http.otp_rate_per_minute must be positive")
	}
	return nil
}
