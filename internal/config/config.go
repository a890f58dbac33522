package config

import (
	"os"
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
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Bank struct {
		CSV    string `yaml:"csv"`    // path to the question bank CSV
		Source string `yaml:"source"` // "csv" (default) or "postgres"
	} `yaml:"bank"`
	Leaderboard struct {
		Size int    `yaml:"size"` // top-N, defaults to 10
		TTL  string `yaml:"ttl"`  // cache TTL for the ranked query
	} `yaml:"leaderboard"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
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

// LeaderboardSize returns the configured top-N size or the default of 10.
func (c Config) LeaderboardSize() int {
	if c.Leaderboard.Size > 0 {
		return c.Leaderboard.Size
	}
	return 10
}
