package settings

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var embeddedDefaults []byte

// LoadDefaults parses the defaults document at path, or the embedded one when
// path is empty.
func LoadDefaults(path string) (Config, error) {
	data := embeddedDefaults
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read speed-to-lead defaults: %w", err)
		}
		data = raw
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse speed-to-lead defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid speed-to-lead defaults: %w", err)
	}
	return cfg.Normalize(), nil
}
