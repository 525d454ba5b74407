// Package config loads service configuration from an optional YAML file
// with environment variable overrides. Env-only operation works; the
// file is a convenience for local development.
package config

import (
    "fmt"
    "os"
    "strconv"

    "gopkg.in/yaml.v3"
)

type Config struct {
    Server    ServerConfig    `yaml:"server"`
    Database  DatabaseConfig  `yaml:"database"`
    Redis     RedisConfig     `yaml:"redis"`
    Project44 Project44Config `yaml:"project44"`
    FreshX    FreshXConfig    `yaml:"freshx"`
    Pricing   PricingConfig   `yaml:"pricing"`
}

type ServerConfig struct {
    Port string `yaml:"port"`
}

type DatabaseConfig struct {
    URL     string `yaml:"url"`
    Migrate bool   `yaml:"migrate"`
}

type RedisConfig struct {
    URL string `yaml:"url"`
}

type Project44Config struct {
    BaseURL      string `yaml:"baseUrl"`
    ClientID     string `yaml:"clientId"`
    ClientSecret string `yaml:"clientSecret"`
}

type FreshXConfig struct {
    BaseURL string `yaml:"baseUrl"`
    APIKey  string `yaml:"apiKey"`
}

type PricingConfig struct {
    // UpstreamRPS throttles calls to the rating networks. Zero disables
    // the limiter.
    UpstreamRPS float64 `yaml:"upstreamRps"`
}

// Load reads path when it exists, then applies env overrides. A missing
// file is not an error so env-only deployments need no config file.
func Load(path string) (*Config, error) {
    cfg := &Config{}
    cfg.Server.Port = "8080"
    cfg.Database.Migrate = true
    if path != "" {
        b, err := os.ReadFile(path)
        if err == nil {
            if err := yaml.Unmarshal(b, cfg); err != nil {
                return nil, fmt.Errorf("parse config %s: %w", path, err)
            }
        } else if !os.IsNotExist(err) {
            return nil, err
        }
    }
    cfg.applyEnv()
    return cfg, nil
}

func (c *Config) applyEnv() {
    setStr(&c.Server.Port, "PORT")
    setStr(&c.Database.URL, "DATABASE_URL")
    if v := os.Getenv("DB_MIGRATE"); v != "" { c.Database.Migrate = v != "false" }
    setStr(&c.Redis.URL, "REDIS_URL")
    setStr(&c.Project44.BaseURL, "P44_BASE_URL")
    setStr(&c.Project44.ClientID, "P44_CLIENT_ID")
    setStr(&c.Project44.ClientSecret, "P44_CLIENT_SECRET")
    setStr(&c.FreshX.BaseURL, "FRESHX_BASE_URL")
    setStr(&c.FreshX.APIKey, "FRESHX_API_KEY")
    if v := os.Getenv("UPSTREAM_RPS"); v != "" {
        if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 { c.Pricing.UpstreamRPS = f }
    }
}

func setStr(dst *string, key string) {
    if v := os.Getenv(key); v != "" { *dst = v }
}
