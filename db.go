package odb

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// Engine selects the key-value backend a Database runs on.
type Engine int

const (
	// Bolt stores the database in a single <dir>/<name>.odb file.
	Bolt Engine = iota
	// Pebble stores the database in a <dir>/<name>.odb directory (LSM).
	Pebble
	// Memory keeps everything in process memory; Dir is ignored.
	Memory
)

func (e Engine) String() string {
	switch e {
	case Bolt:
		return "bolt"
	case Pebble:
		return "pebble"
	case Memory:
		return "memory"
	default:
		return fmt.Sprintf("Engine(%d)", int(e))
	}
}

func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(s) {
	case "", "bolt":
		return Bolt, nil
	case "pebble":
		return Pebble, nil
	case "memory", "mem":
		return Memory, nil
	default:
		return 0, fmt.Errorf("odb: unknown engine %q", s)
	}
}

type Options struct {
	// Dir is the directory holding database files. Defaults to ".".
	Dir string
	// Engine selects the backend. Defaults to Bolt.
	Engine Engine
	// Logf handles all log output. Defaults to log.Printf.
	Logf    func(format string, args ...any)
	Verbose bool
	// IsTesting trades durability for speed (no fsync) and is meant for
	// test suites only.
	IsTesting bool
	// MmapSize overrides the initial mmap size of the Bolt backend.
	MmapSize int
}

const dbFileSuffix = ".odb"

// Database manages one database: it validates the declared configuration,
// lazily opens (and upgrades) the underlying engine, and hands out store
// facades. Safe for concurrent use.
type Database struct {
	cfg  Config
	opt  Options
	path string

	mu     sync.Mutex
	stor   storage
	stores map[string]*Store
	closed bool
}

// New validates cfg and returns a Database. The engine is not opened here;
// the connection opens lazily on first use (or explicitly via Connect).
func New(cfg Config, opt Options) (*Database, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if opt.Logf == nil {
		opt.Logf = log.Printf
	}
	if opt.Dir == "" {
		opt.Dir = "."
	}
	return &Database{
		cfg:    cfg,
		opt:    opt,
		path:   filepath.Join(opt.Dir, cfg.Name+dbFileSuffix),
		stores: make(map[string]*Store),
	}, nil
}

func (db *Database) Name() string { return db.cfg.Name }

// Stores returns the declared store names, in declaration order.
func (db *Database) Stores() []string {
	names := make([]string, len(db.cfg.Stores))
	for i := range db.cfg.Stores {
		names[i] = db.cfg.Stores[i].Name
	}
	return names
}

// Connect forces the lazy open, surfacing engine-level open errors and
// running the upgrade routine if the declared version is newer than the
// stored one.
func (db *Database) Connect() error {
	_, err := db.conn()
	return err
}

func (db *Database) conn() (storage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ErrClosed
	}
	if db.stor != nil {
		return db.stor, nil
	}
	stor, err := db.open()
	if err != nil {
		return nil, tagErrf(err, "opening %s", db.cfg.Name)
	}
	if err := db.upgrade(stor); err != nil {
		stor.Close()
		return nil, err
	}
	db.stor = stor
	return stor, nil
}

func (db *Database) open() (storage, error) {
	switch db.opt.Engine {
	case Memory:
		return newMemStorage(), nil
	case Pebble:
		return newPebbleStorage(db.path, db.opt.IsTesting)
	case Bolt:
		bopt := new(bbolt.Options)
		*bopt = *bbolt.DefaultOptions
		bopt.Timeout = 10 * time.Second
		if db.opt.IsTesting {
			bopt.NoSync = true
			bopt.NoFreelistSync = true
			bopt.InitialMmapSize = 1024 * 1024 * 5
		} else {
			bopt.InitialMmapSize = 1024 * 1024 * 1024
			bopt.FreelistType = bbolt.FreelistMapType
		}
		if db.opt.MmapSize != 0 {
			bopt.InitialMmapSize = db.opt.MmapSize
		}
		bdb, err := bbolt.Open(db.path, 0666, bopt)
		if errors.Is(err, bbolt.ErrTimeout) {
			// Another process is holding the file lock, most likely an
			// older instance of the application that is still running.
			db.logf("odb: %s: blocked waiting for the database file lock: %s", db.cfg.Name, db.path)
			return nil, err
		}
		if err != nil {
			return nil, err
		}
		return newBoltStorage(bdb), nil
	default:
		return nil, fmt.Errorf("unknown engine %v", db.opt.Engine)
	}
}

// Use returns the facade for a declared store, creating and caching it on
// first use. Unknown names are a configuration error.
func (db *Database) Use(name string) (*Store, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ErrClosed
	}
	if s := db.stores[name]; s != nil {
		return s, nil
	}
	sc := db.cfg.store(name)
	if sc == nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownStore, name)
	}
	s := newStore(db, sc)
	db.stores[name] = s
	return s, nil
}

// Close invalidates all cached facades and closes the engine. Operations on
// the Database and its facades fail with ErrClosed afterwards.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	db.stores = nil
	if db.stor == nil {
		return nil
	}
	err := db.stor.Close()
	db.stor = nil
	return tagErr(err)
}

func (db *Database) logf(format string, args ...any) {
	db.opt.Logf(format, args...)
}

// DeleteDatabase removes a named database from dir, whatever engine wrote
// it. Deleting a database that does not exist succeeds.
func DeleteDatabase(dir, name string) error {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, name+dbFileSuffix)
	st, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return tagErr(err)
	}
	if st.IsDir() {
		return tagErr(os.RemoveAll(path))
	}
	return tagErr(os.Remove(path))
}

// Databases lists the names of the databases stored in dir.
func Databases(dir string) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, tagErr(err)
	}
	var names []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), dbFileSuffix); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// OpenKV builds a single-store key-value database named name and returns
// its facade. The store is called "keyval".
func OpenKV(name string, opt Options) (*Store, error) {
	db, err := New(Config{
		Name:    name,
		Version: 1,
		Stores:  []StoreConfig{{Name: "keyval", KV: true}},
	}, opt)
	if err != nil {
		return nil, err
	}
	return db.Use("keyval")
}

var defaultKV struct {
	once  sync.Once
	store *Store
	err   error
}

// DefaultKV returns a process-wide flat key-value store backed by a
// database called "default" in the current directory. It is created on
// first access.
func DefaultKV() (*Store, error) {
	defaultKV.once.Do(func() {
		defaultKV.store, defaultKV.err = OpenKV("default", Options{})
	})
	return defaultKV.store, defaultKV.err
}
