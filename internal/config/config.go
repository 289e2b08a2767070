package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	Catalog struct {
		TTL string `yaml:"ttl"`
	} `yaml:"catalog"`
	Ratings struct {
		SampleSize int `yaml:"sampleSize"`
	} `yaml:"ratings"`
	Recaptcha struct {
		Enabled   bool   `yaml:"enabled"`
		Secret    string `yaml:"secret"`
		VerifyURL string `yaml:"verifyUrl"`
	} `yaml:"recaptcha"`
}

// Load reads YAML config from path and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides connection strings and secrets from the environment. Each NAME may also be
// given as NAME_FILE pointing at a file holding the value (docker secrets).
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"REDIS_ADDR":              &cfg.Redis.Addr,
		"REDIS_PASSWORD":          &cfg.Redis.Password,
		"POSTGRES_URL":            &cfg.Postgres.URL,
		"MONGO_URL":               &cfg.Mongo.URI,
		"MONGO_DATABASE":          &cfg.Mongo.Database,
		"RABBITMQ_URL":            &cfg.RabbitMQ.URL,
		"GOOGLE_RECAPTCHA_SECRET": &cfg.Recaptcha.Secret,
	}
	for name, dst := range strs {
		v, ok, err := variable(name, lookup)
		if err != nil {
			return err
		}
		if ok {
			*dst = v
		}
	}

	v, ok, err := variable("GOOGLE_RECAPTCHA_ENABLED", lookup)
	if err != nil {
		return err
	}
	if ok {
		enabled, err := parseFlag(v)
		if err != nil {
			return fmt.Errorf("GOOGLE_RECAPTCHA_ENABLED: %w", err)
		}
		cfg.Recaptcha.Enabled = enabled
	}
	return nil
}

func variable(name string, lookup func(string) (string, bool)) (string, bool, error) {
	if path, ok := lookup(name + "_FILE"); ok && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", false, fmt.Errorf("read %s_FILE: %w", name, err)
		}
		return strings.TrimSpace(string(data)), true, nil
	}
	v, ok := lookup(name)
	return v, ok && v != "", nil
}

// parseFlag accepts numeric flags ("0", "1") as well as "true"/"false".
func parseFlag(raw string) (bool, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n != 0, nil
	}
	return strconv.ParseBool(raw)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
