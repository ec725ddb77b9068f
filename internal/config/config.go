package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

const defaultCacheSize = 1024

// Config is the runtime configuration of the aclcheck binary.
type Config struct {
	// RuleFile points at an ACL rule file; Rules are inline rule lines.
	// Both may be set, inline rules are appended after the file.
	RuleFile string   `json:"rule_file" yaml:"rule_file"`
	Rules    []string `json:"rules" yaml:"rules"`
	// Outbounds are the names the rules may route to.
	Outbounds []string         `json:"outbounds" yaml:"outbounds"`
	CacheSize int              `json:"cache_size" yaml:"cache_size"`
	Log       logger.LogConfig `json:"log" yaml:"log"`
}

// Load reads the configuration file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.RuleFile == "" && len(cfg.Rules) == 0 {
		return nil, fmt.Errorf("config needs rule_file or rules")
	}
	if len(cfg.Outbounds) == 0 {
		return nil, fmt.Errorf("config needs at least one outbound name")
	}
	return cfg, nil
}
