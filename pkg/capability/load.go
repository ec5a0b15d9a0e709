// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type registryFile struct {
	Capabilities []*Descriptor `yaml:"capabilities"`
}

// ParseYAML decodes a capability registry document.
func ParseYAML(data []byte) ([]*Descriptor, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("empty registry payload")
	}
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing capability registry: %w", err)
	}
	if len(file.Capabilities) == 0 {
		return nil, fmt.Errorf("registry declares no capabilities")
	}
	return file.Capabilities, nil
}

// LoadFile reads and parses a capability registry from a YAML file, then
// builds the registry. Validation failures disable the offending capability
// rather than failing the load.
func LoadFile(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("registry path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	descriptors, err := ParseYAML(data)
	if err != nil {
		return nil, err
	}
	return NewRegistry(descriptors)
}
