package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve without system zoneinfo

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values. Values are read from an optional
// YAML file first; environment variables override them.
type Config struct {
	Port     string `yaml:"port"`
	Timezone string `yaml:"timezone"`

	Storage struct {
		Driver      string `yaml:"driver"` // memory, sqlite or postgres
		DatabaseURL string `yaml:"database_url"`
		SQLitePath  string `yaml:"sqlite_path"`
	} `yaml:"storage"`

	Photos struct {
		UploadDir       string `yaml:"upload_dir"`
		Bucket          string `yaml:"bucket"`
		Region          string `yaml:"region"`
		Endpoint        string `yaml:"endpoint"`
		AccessKeyID     string `yaml:"access_key_id"`
		SecretAccessKey string `yaml:"secret_access_key"`
		// PathStyle addresses the bucket as endpoint/bucket/key. Always on
		// when Endpoint is set.
		PathStyle bool `yaml:"path_style"`
	} `yaml:"photos"`

	Log struct {
		File  string `yaml:"file"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func defaults() Config {
	var c Config
	c.Port = "8080"
	c.Timezone = "UTC"
	c.Storage.SQLitePath = "inspections.db"
	c.Photos.UploadDir = "uploads"
	c.Photos.Region = "us-east-1"
	c.Log.File = "plant-inspection.log"
	c.Log.Level = "INFO"
	return c
}

// Load reads path (if non-empty, otherwise CONFIG_FILE) and applies the
// environment on top.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)

	c.Storage.Driver = getEnv("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.DatabaseURL = getEnv("DATABASE_URL", c.Storage.DatabaseURL)
	c.Storage.SQLitePath = getEnv("SQLITE_PATH", c.Storage.SQLitePath)

	c.Photos.UploadDir = getEnv("UPLOAD_DIR", c.Photos.UploadDir)
	c.Photos.Bucket = getEnv("S3_BUCKET_NAME", c.Photos.Bucket)
	c.Photos.Region = getEnv("AWS_REGION", c.Photos.Region)
	c.Photos.Endpoint = getEnv("S3_ENDPOINT", c.Photos.Endpoint)
	c.Photos.AccessKeyID = getEnv("AWS_ACCESS_KEY_ID", c.Photos.AccessKeyID)
	c.Photos.SecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", c.Photos.SecretAccessKey)
	pathStyle, err := getEnvBool("S3_PATH_STYLE", c.Photos.PathStyle)
	if err != nil {
		return err
	}
	c.Photos.PathStyle = pathStyle

	c.Log.File = getEnv("LOG_FILE", c.Log.File)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Storage.Driver) {
	case "", "memory", "sqlite":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("storage driver postgres requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err))
	}
	if (c.Photos.AccessKeyID == "") != (c.Photos.SecretAccessKey == "") {
		errs = append(errs, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together"))
	}
	return errors.Join(errs...)
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) LogLevel() slog.Level {
	return parseLogLevel(c.Log.Level)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return b, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
