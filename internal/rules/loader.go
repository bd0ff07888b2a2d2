package rules

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultManifest []byte

// Load reads a YAML manifest and returns Config with raw bytes
// SSOT: KnownFields(true) rejects typos and unused fields immediately
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read rule manifest: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, data, nil
}

// Default returns the embedded manifest
func Default() (*Config, []byte, error) {
	cfg, err := Parse(defaultManifest)
	if err != nil {
		return nil, nil, fmt.Errorf("embedded rule manifest: %w", err)
	}
	return cfg, defaultManifest, nil
}

// LoadOrDefault loads path, or the embedded manifest when path is empty
func LoadOrDefault(path string) (*Config, []byte, error) {
	if path == "" {
		return Default()
	}
	return Load(path)
}

// Parse decodes and validates manifest bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Hash generates SHA256 hash from Config (canonical JSON)
// Maps are marshalled with sorted keys, so the hash is reproducible
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
