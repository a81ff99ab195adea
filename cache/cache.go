// Package cache stores serialized units keyed by the source they were
// compiled from, so repeated loads of the same source skip compilation.
package cache

import (
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"
)

// Key identifies one compilation: the serialization format, whether debug
// info was kept, the logical path and the source text.
type Key [32]byte

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// KeyFor computes the cache key for a compilation.
func KeyFor(version string, flags uint16, path, source string) Key {
	h := blake3.New()
	h.WriteString(version)
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], flags)
	h.Write(b[:])
	h.WriteString(path)
	h.Write([]byte{0})
	h.WriteString(source)
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// Cache is a SQLite-backed store of serialized units.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	log  commonlog.Logger
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS units (
		key  TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		blob BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Cache{db: db, path: path, log: commonlog.GetLogger("rite.cache")}, nil
}

// Path returns the database file path.
func (c *Cache) Path() string { return c.path }

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the blob stored under key. ok is false on a miss.
func (c *Cache) Get(key Key) (blob []byte, ok bool, err error) {
	err = c.db.QueryRow("SELECT blob FROM units WHERE key = ?", key.String()).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querying unit: %w", err)
	}
	c.log.Debugf("hit %s", key)
	return blob, true, nil
}

// Put stores blob under key, replacing any previous entry.
func (c *Cache) Put(key Key, path string, blob []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO units (key, path, blob) VALUES (?, ?, ?)",
		key.String(), path, blob,
	)
	if err != nil {
		return fmt.Errorf("saving unit: %w", err)
	}
	c.log.Debugf("stored %s (%s, %d bytes)", key, path, len(blob))
	return nil
}

// Delete removes the entry for key, if any.
func (c *Cache) Delete(key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM units WHERE key = ?", key.String()); err != nil {
		return fmt.Errorf("deleting unit: %w", err)
	}
	return nil
}

// Len returns the number of cached units.
func (c *Cache) Len() (int, error) {
	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM units").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting units: %w", err)
	}
	return n, nil
}
