package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// readFileValues parses a flat YAML document keyed by environment variable name:
//
//	KAIZEN_API_BASE_URL: https://kaizen.example.com
//	KAIZEN_STORAGE_DRIVER: redis
func readFileValues(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[config.Load] read %s: %w", path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("[config.Load] parse %s: %w", path, err)
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[k] = fmt.Sprint(v)
	}
	return values, nil
}

func setFileValues(values map[string]string) {
	fileValuesLock.Lock()
	defer fileValuesLock.Unlock()
	fileValues = values
}
