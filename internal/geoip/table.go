package geoip

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadTable reads a YAML mapping of IP address to country code and returns
// a StaticResolver over it.
func LoadTable(path string) (StaticResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read geoip table: %w", err)
	}

	table := make(map[string]string)
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse geoip table: %w", err)
	}
	return StaticResolver(table), nil
}
