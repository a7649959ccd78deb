package odb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseConfig parses a YAML database descriptor:
//
//	name: crm
//	version: 3
//	stores:
//	  - name: users
//	    key: id
//	    indexes:
//	      - name: email
//	        unique: true
//
// Unknown fields are rejected so a typo fails loudly instead of silently
// dropping a store or an index.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("odb: config: empty document")
		}
		return Config{}, fmt.Errorf("odb: config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML database descriptor file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("odb: config: %w", err)
	}
	return ParseConfig(data)
}

// UnmarshalYAML accepts a single path string or a list of paths, so simple
// keys read naturally in descriptors:
//
//	key: id
//	key: [email, login]
func (kp *KeyPath) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*kp = KeyPath{s}
		return nil
	case yaml.SequenceNode:
		var paths []string
		if err := node.Decode(&paths); err != nil {
			return err
		}
		*kp = KeyPath(paths)
		return nil
	default:
		return fmt.Errorf("key path must be a string or a list of strings")
	}
}
