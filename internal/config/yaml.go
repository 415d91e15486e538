package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// configToJSON funnels YAML configs through the same strict JSON decoder
// (DisallowUnknownFields) used for .json files. Only the .yaml and .yml
// extensions are treated as YAML.
func configToJSON(path string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if err := checkStringKeys(v); err != nil {
		return nil, err
	}
	j, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, nil
}

// checkStringKeys rejects non-string mapping keys. The config schema never
// uses them, and json.Marshal cannot represent them.
func checkStringKeys(in any) error {
	switch x := in.(type) {
	case map[string]any:
		for _, v := range x {
			if err := checkStringKeys(v); err != nil {
				return err
			}
		}
	case map[any]any:
		return fmt.Errorf("yaml: mapping keys must be strings")
	case []any:
		for _, v := range x {
			if err := checkStringKeys(v); err != nil {
				return err
			}
		}
	}
	return nil
}
