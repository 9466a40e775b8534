package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"voxelworld/internal/config"
)

const configEnv = "VOXELWORLD_CONFIG_YAML_B64"

// writeConfigFromEnv materialises a base64 YAML configuration handed over
// through the environment at cfgPath. It reports whether a file was written.
func writeConfigFromEnv(cfgPath string) (bool, error) {
	payload := os.Getenv(configEnv)
	if payload == "" {
		return false, nil
	}
	if cfgPath == "" {
		return false, fmt.Errorf("%s is set but no -config path supplied", configEnv)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return false, fmt.Errorf("decode %s: %w", configEnv, err)
	}
	cfg, err := config.Parse(data)
	if err != nil {
		return false, err
	}

	dir := filepath.Dir(cfgPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create config directory: %w", err)
		}
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config yaml: %w", err)
	}
	if err := os.WriteFile(cfgPath, out, 0o600); err != nil {
		return false, fmt.Errorf("write config file: %w", err)
	}
	return true, nil
}
