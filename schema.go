package odb

import (
	"fmt"
	"strings"

	"github.com/odb-go/odb/keypath"
)

const (
	dataBucketName  = "data"
	indexBucketPref = "i_"
	metaBucketName  = "_meta"
)

var (
	versionKey = []byte("version")
	stateKey   = []byte("_state")
	seqKey     = []byte("_seq")
)

func indexBucketName(name string) string {
	return indexBucketPref + name
}

// Config declares a database: its name, schema version and stores. The
// declared store list is authoritative: when Version grows past the stored
// version, missing stores are created, indexes are rebuilt to match, and
// stores absent from the declaration are destroyed.
type Config struct {
	Name    string        `yaml:"name"`
	Version uint64        `yaml:"version"`
	Stores  []StoreConfig `yaml:"stores"`
}

// StoreConfig declares one store. Key names the primary key path(s); when
// empty and AutoIncrement is off, keys are out-of-line and must be passed
// explicitly (AddKeyed, PutKeyed). KV marks a key-value store: records are
// {key, value} documents, the primary key path is fixed to "key", and Key
// and AutoIncrement are ignored.
type StoreConfig struct {
	Name          string        `yaml:"name"`
	Key           KeyPath       `yaml:"key,omitempty"`
	AutoIncrement bool          `yaml:"auto_increment,omitempty"`
	KV            bool          `yaml:"kv,omitempty"`
	Indexes       []IndexConfig `yaml:"indexes,omitempty"`
}

// IndexConfig declares a secondary index. Key defaults to the index name.
type IndexConfig struct {
	Name   string  `yaml:"name"`
	Key    KeyPath `yaml:"key,omitempty"`
	Unique bool    `yaml:"unique,omitempty"`
}

// KeyPath is a list of dotted/bracket property paths, like "a.b[0].c".
// Resolution uses the first path that yields a defined value.
type KeyPath []string

func Path(paths ...string) KeyPath {
	return KeyPath(paths)
}

var kvKeyPath = KeyPath{"key"}

func (sc *StoreConfig) keyPath() KeyPath {
	if sc.KV {
		return kvKeyPath
	}
	return sc.Key
}

func (ic *IndexConfig) keyPath() KeyPath {
	if len(ic.Key) == 0 {
		return KeyPath{ic.Name}
	}
	return ic.Key
}

func (cfg *Config) validate() error {
	if cfg.Name == "" {
		return fmt.Errorf("odb: config: missing database name")
	}
	if err := validateName(cfg.Name); err != nil {
		return fmt.Errorf("odb: config: database %q: %w", cfg.Name, err)
	}
	if cfg.Version == 0 {
		return fmt.Errorf("odb: config: %s: version must be at least 1", cfg.Name)
	}
	seen := make(map[string]bool, len(cfg.Stores))
	for i := range cfg.Stores {
		sc := &cfg.Stores[i]
		if err := sc.validate(); err != nil {
			return err
		}
		if seen[sc.Name] {
			return fmt.Errorf("odb: config: duplicate store %q", sc.Name)
		}
		seen[sc.Name] = true
	}
	return nil
}

func (sc *StoreConfig) validate() error {
	if sc.Name == "" {
		return fmt.Errorf("odb: config: missing store name")
	}
	if err := validateName(sc.Name); err != nil {
		return fmt.Errorf("odb: config: store %q: %w", sc.Name, err)
	}
	for _, p := range sc.keyPath() {
		if err := keypath.Validate(p); err != nil {
			return fmt.Errorf("odb: config: store %q: key path: %w", sc.Name, err)
		}
	}
	seen := make(map[string]bool, len(sc.Indexes))
	for i := range sc.Indexes {
		ic := &sc.Indexes[i]
		if ic.Name == "" {
			return fmt.Errorf("odb: config: store %q: missing index name", sc.Name)
		}
		if err := validateName(ic.Name); err != nil {
			return fmt.Errorf("odb: config: index %q: %w", ic.Name, err)
		}
		if seen[ic.Name] {
			return fmt.Errorf("odb: config: store %q: duplicate index %q", sc.Name, ic.Name)
		}
		seen[ic.Name] = true
		for _, p := range ic.keyPath() {
			if err := keypath.Validate(p); err != nil {
				return fmt.Errorf("odb: config: index %q: key path: %w", ic.Name, err)
			}
		}
	}
	return nil
}

// Bucket and file names embed store names, hence the restrictions.
func validateName(name string) error {
	if strings.ContainsAny(name, "\x00/") {
		return fmt.Errorf("name contains reserved characters")
	}
	if strings.HasPrefix(name, "_") {
		return fmt.Errorf("names starting with underscore are reserved")
	}
	return nil
}

func (cfg *Config) store(name string) *StoreConfig {
	for i := range cfg.Stores {
		if cfg.Stores[i].Name == name {
			return &cfg.Stores[i]
		}
	}
	return nil
}
