// Copyright 2026 The Lemmadex Authors
//
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

// Package config loads the YAML application configuration: the list of seed
// sites, indexing settings and cache sizing.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" or "10m" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Site is a single configured seed site.
type Site struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// ServerConfig holds HTTP server bind settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds the sqlite database location.
// An empty Path means ~/.lemmadex/lemmadex.db.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// IndexingConfig controls the crawl pipeline.
type IndexingConfig struct {
	// Parallelism is the worker count of the crawl pool. Minimum 1.
	Parallelism int `yaml:"parallelism"`
	// BatchSize is the flush threshold of the lemma/index writer.
	BatchSize int `yaml:"batch-size"`
	// RequestTimeout bounds a single page fetch end to end.
	RequestTimeout Duration `yaml:"request-timeout"`
	// SkipExtensions overrides the default binary/media extension skip list.
	SkipExtensions []string `yaml:"skip-extensions"`
}

// CacheConfig sizes one bounded cache.
type CacheConfig struct {
	Max     int      `yaml:"max"`
	IdleTTL Duration `yaml:"idle-ttl"`
}

// CachesConfig sizes the run-local caches.
type CachesConfig struct {
	PageURL CacheConfig `yaml:"page-url"`
	Lemma   CacheConfig `yaml:"lemma"`
}

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Indexing IndexingConfig `yaml:"indexing"`
	Caches   CachesConfig   `yaml:"caches"`
	Sites    []Site         `yaml:"sites"`
}

// Load reads and validates a YAML config file. Missing knobs get defaults;
// an empty path returns the defaults only.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Indexing.Parallelism == 0 {
		c.Indexing.Parallelism = 8
	}
	if c.Indexing.BatchSize == 0 {
		c.Indexing.BatchSize = 5000
	}
	if c.Indexing.RequestTimeout == 0 {
		c.Indexing.RequestTimeout = Duration(30 * time.Second)
	}
	if c.Caches.PageURL.Max == 0 {
		c.Caches.PageURL.Max = 600
	}
	if c.Caches.PageURL.IdleTTL == 0 {
		c.Caches.PageURL.IdleTTL = Duration(10 * time.Minute)
	}
	if c.Caches.Lemma.Max == 0 {
		c.Caches.Lemma.Max = 10000
	}
	if c.Caches.Lemma.IdleTTL == 0 {
		c.Caches.Lemma.IdleTTL = Duration(10 * time.Minute)
	}
}

func (c *Config) validate() error {
	if c.Indexing.Parallelism < 1 {
		return fmt.Errorf("indexing.parallelism must be >= 1, got %d", c.Indexing.Parallelism)
	}
	if c.Indexing.BatchSize < 1 {
		return fmt.Errorf("indexing.batch-size must be >= 1, got %d", c.Indexing.BatchSize)
	}
	for i, s := range c.Sites {
		if s.URL == "" {
			return fmt.Errorf("sites[%d]: url is required", i)
		}
	}
	return nil
}
