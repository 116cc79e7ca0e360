package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromJSON parses a JSON policy. Keys that are absent keep their zero value.
func FromJSON(data []byte) (Policy, error) {
	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return p, nil
}

// ToJSON renders the policy as indented JSON.
func (p Policy) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy JSON: %w", err)
	}
	return data, nil
}

// FromYAML parses a YAML policy.
func FromYAML(data []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy YAML: %w", err)
	}
	return p, nil
}

// ToYAML renders the policy as YAML.
func (p Policy) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy YAML: %w", err)
	}
	return data, nil
}

// Load reads and validates a policy file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func Load(path string) (Policy, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: policy path is provided by the user
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy %s: %w", path, err)
	}

	var p Policy
	if isYAML(path) {
		p, err = FromYAML(data)
	} else {
		p, err = FromJSON(data)
	}
	if err != nil {
		return Policy{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Save writes the policy, choosing the format from the file extension.
func (p Policy) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = p.ToYAML()
	} else {
		data, err = p.ToJSON()
	}
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write policy %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
