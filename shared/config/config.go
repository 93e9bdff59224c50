// Copyright 2025 LinqGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the gateway configuration from a YAML file with
// environment variable expansion, so the same file works across deployments.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root gateway configuration.
type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Redis     RedisConfig    `yaml:"redis"`
	Postgres  PostgresConfig `yaml:"postgres"`
	Mongo     MongoConfig    `yaml:"mongo"`
	Queue     QueueConfig    `yaml:"queue"`
	Cache     CacheConfig    `yaml:"cache"`
	Gate      GateConfig     `yaml:"gate"`
	JWTSecret string         `yaml:"jwt_secret"`
}

// ServerConfig controls the HTTP binding and the base URL used to reach
// routed services through the gateway's reverse-proxy layer.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	SSLEnabled  bool     `yaml:"ssl_enabled"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// BaseURL is the scheme://host:port prefix for routed service calls.
func (s ServerConfig) BaseURL() string {
	protocol := "http"
	if s.SSLEnabled {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s:%d", protocol, s.Host, s.Port)
}

// RedisConfig points at the shared key-value store backing the permission
// cache, response cache, and async step queue.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// PostgresConfig points at the tool registry database.
type PostgresConfig struct {
	URL string `yaml:"url"`
}

// MongoConfig points at the workflow execution store.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// QueueConfig tunes the async step worker.
type QueueConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	StatusTTL    time.Duration `yaml:"status_ttl"`
}

// CacheConfig tunes the permission and fetch-response caches.
type CacheConfig struct {
	PermissionTTL time.Duration `yaml:"permission_ttl"`
	ResponseTTL   time.Duration `yaml:"response_ttl"`
}

// GateConfig lists targets that bypass the permission gate entirely
// (platform-internal LLM providers and the workflow pseudo-target).
type GateConfig struct {
	BypassTargets []string `yaml:"bypass_targets"`
}

// Supports ${VAR_NAME} and ${VAR_NAME:-default} syntax
var envVarRegex = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*(:-[^}]*)?\}`)

// Load reads and parses a YAML configuration file, expanding environment
// variable references before unmarshaling, then applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 7777
	}
	if c.Queue.PollInterval == 0 {
		c.Queue.PollInterval = time.Second
	}
	if c.Queue.StatusTTL == 0 {
		c.Queue.StatusTTL = 24 * time.Hour
	}
	if c.Cache.PermissionTTL == 0 {
		c.Cache.PermissionTTL = 5 * time.Minute
	}
	if c.Cache.ResponseTTL == 0 {
		c.Cache.ResponseTTL = 5 * time.Minute
	}
	if len(c.Gate.BypassTargets) == 0 {
		c.Gate.BypassTargets = []string{"openai", "mistral", "huggingface", "gemini", "workflow"}
	}
	if c.JWTSecret == "" {
		c.JWTSecret = os.Getenv("JWT_SECRET")
	}
}

// expandEnvVars expands ${VAR_NAME} references, honoring ${VAR:-default}
// fallbacks. Undefined variables without a default expand to "".
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		inner := match[2 : len(match)-1]
		varName := inner
		defaultVal := ""
		if idx := strings.Index(inner, ":-"); idx >= 0 {
			varName = inner[:idx]
			defaultVal = inner[idx+2:]
		}
		if val, ok := os.LookupEnv(varName); ok && val != "" {
			return val
		}
		return defaultVal
	})
}
