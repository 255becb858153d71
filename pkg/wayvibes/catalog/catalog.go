// Package catalog keeps import metadata for installed packs in a Badger
// database. The pack directory stays the source of truth; the catalog only
// adds what the directory cannot tell (origin archive, size, import time).
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
)

const (
	prefixPack = "p:"
	schemaKey  = "m:__schema__"
)

// CurrentSchemaVersion is written on open.
//
//	1 - pack records under p:<id>
const CurrentSchemaVersion = 1

// Record describes one import.
type Record struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Version    string    `json:"version"`
	Archive    string    `json:"archive"`
	Format     string    `json:"format"`
	Normalized bool      `json:"normalized"`
	Files      int       `json:"files"`
	SizeBytes  int64     `json:"size_bytes"`
	ImportedAt time.Time `json:"imported_at"`
}

// Schema is the stored schema marker.
type Schema struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Catalog is the Badger-backed record store.
type Catalog struct {
	db *badger.DB
}

// Open opens or creates a catalog in dir.
func Open(dir string) (*Catalog, error) {
	return open(badger.DefaultOptions(dir))
}

// OpenInMemory returns a catalog that lives only as long as the process.
func OpenInMemory() (*Catalog, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Catalog, error) {
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	c := &Catalog{db: db}

	if s := c.Schema(); s == nil || s.Version < CurrentSchemaVersion {
		if err := c.setSchema(Schema{Version: CurrentSchemaVersion, UpdatedAt: time.Now()}); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return c, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Schema returns the stored schema, or nil when none was written.
func (c *Catalog) Schema() *Schema {
	var schema *Schema
	_ = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(schemaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			schema = &Schema{}
			return json.Unmarshal(val, schema)
		})
	})
	return schema
}

func (c *Catalog) setSchema(s Schema) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(schemaKey), data)
	})
}

// Put stores rec, replacing any record with the same id.
func (c *Catalog) Put(rec Record) error {
	if rec.ID == "" {
		return errors.New("catalog record has no id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(rec.ID), data)
	})
}

// Get returns the record for id, or packerr.ErrNotFound.
func (c *Catalog) Get(id string) (Record, error) {
	var rec Record
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, packerr.New(packerr.ErrNotFound, "catalog", "no catalog record for %q", id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("reading catalog record %s: %w", id, err)
	}
	return rec, nil
}

// Delete removes the record for id. A missing record is not an error.
func (c *Catalog) Delete(id string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(id))
	})
}

// All returns every record sorted by id.
func (c *Catalog) All() ([]Record, error) {
	var out []Record
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixPack)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Prune drops records whose id is not in installed and returns the dropped ids.
func (c *Catalog) Prune(installed []string) ([]string, error) {
	keep := make(map[string]struct{}, len(installed))
	for _, id := range installed {
		keep[id] = struct{}{}
	}

	recs, err := c.All()
	if err != nil {
		return nil, err
	}

	wb := c.db.NewWriteBatch()
	defer wb.Cancel()

	var dropped []string
	for _, rec := range recs {
		if _, ok := keep[rec.ID]; ok {
			continue
		}
		if err := wb.Delete(key(rec.ID)); err != nil {
			return nil, err
		}
		dropped = append(dropped, rec.ID)
	}
	if err := wb.Flush(); err != nil {
		return nil, err
	}
	return dropped, nil
}

func key(id string) []byte {
	return []byte(prefixPack + id)
}
