package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Firebase   FirebaseConfig
	Redis      RedisConfig
	Cloudinary CloudinaryConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Driver          string // mysql | postgres | sqlite
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

type FirebaseConfig struct {
	ServiceAccountPath string
}

// RedisConfig enables cross-process fan-out of progress events when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type LogConfig struct {
	Level  string
	Format string // text | json
}

// Load reads .env (if any), config.yaml (if any) and environment variables
// such as DATABASE_DSN or REDIS_ADDR, on top of the defaults below.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded, using environment")
	}
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Printf("config: %v", err)
		}
	}
	return &Config{
		Server: ServerConfig{
			Port:         v.GetString("server.port"),
			Env:          v.GetString("server.env"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			DSN:             v.GetString("database.dsn"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		JWT: JWTConfig{
			AccessSecret: v.GetString("jwt.access_secret"),
			AccessExpiry: v.GetDuration("jwt.access_expiry"),
			Issuer:       v.GetString("jwt.issuer"),
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: v.GetString("firebase.service_account_path"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Channel:  v.GetString("redis.channel"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: v.GetString("cloudinary.cloud_name"),
			APIKey:    v.GetString("cloudinary.api_key"),
			APISecret: v.GetString("cloudinary.api_secret"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("ratelimit.requests_per_second"),
			Burst:             v.GetInt("ratelimit.burst"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8099")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "habitpact:habitpact@tcp(localhost:3306)/habitpact?charset=utf8mb4&parseTime=True&loc=UTC")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("jwt.access_secret", "change-me-in-production")
	v.SetDefault("jwt.access_expiry", 15*time.Minute)
	v.SetDefault("jwt.issuer", "habitpact")

	v.SetDefault("firebase.service_account_path", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "partner_progress")

	v.SetDefault("cloudinary.cloud_name", "")
	v.SetDefault("cloudinary.api_key", "")
	v.SetDefault("cloudinary.api_secret", "")

	v.SetDefault("ratelimit.requests_per_second", 5.0)
	v.SetDefault("ratelimit.burst", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
