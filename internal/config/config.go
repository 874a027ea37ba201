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
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Bank struct {
		TTL string `yaml:"ttl"`
	} `yaml:"bank"`
	OTP struct {
		SendURL   string `yaml:"sendUrl"`
		VerifyURL string `yaml:"verifyUrl"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"otp"`
	Notify struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"notify"`
	Features map[string]Feature `yaml:"features"`
}

// Feature is the per-call-site tuning: scholarship test, careers test,
// student tool gate.
type Feature struct {
	Bank          string   `yaml:"bank"`
	BatchSize     int      `yaml:"batchSize"`
	PassThreshold float64  `yaml:"passThreshold"`
	Mode          string   `yaml:"mode"`
	RewardPrefix  string   `yaml:"rewardPrefix"`
	RewardSuffix  string   `yaml:"rewardSuffix"`
	RewardTTL     string   `yaml:"rewardTtl"`
	Recipients    []string `yaml:"recipients"`
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
