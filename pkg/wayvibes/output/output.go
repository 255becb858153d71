// Package output renders pack listings in the formats the CLI offers
// (table, plain, markdown, json, yaml, toml).
//
// Formatters are looked up by name in a registry:
//
//	formatter, err := output.Get("table")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/types"
)

// Result is the data handed to a formatter.
type Result struct {
	// Packs are the installed packs in display order.
	Packs []types.SoundPack

	// ActiveID is the id of the active pack, or "".
	ActiveID string

	// Root is the packs directory.
	Root string
}

// TotalSize returns the summed size of all packs with a known size.
func (r *Result) TotalSize() int64 {
	var total int64
	for _, p := range r.Packs {
		if p.SizeBytes > 0 {
			total += p.SizeBytes
		}
	}
	return total
}

// packRow is the flattened per-pack view shared by the structured formats.
type packRow struct {
	ID          string `json:"id" yaml:"id" toml:"id"`
	Name        string `json:"name" yaml:"name" toml:"name"`
	Version     string `json:"version" yaml:"version" toml:"version"`
	Author      string `json:"author,omitempty" yaml:"author,omitempty" toml:"author,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Size        int64  `json:"size,omitempty" yaml:"size,omitempty" toml:"size,omitempty"`
	SizeHuman   string `json:"size_human,omitempty" yaml:"size_human,omitempty" toml:"size_human,omitempty"`
	Format      string `json:"format,omitempty" yaml:"format,omitempty" toml:"format,omitempty"`
	ImportedAt  string `json:"imported_at,omitempty" yaml:"imported_at,omitempty" toml:"imported_at,omitempty"`
	Active      bool   `json:"active" yaml:"active" toml:"active"`
}

// document is the top-level structure of json, yaml and toml output.
type document struct {
	Root      string    `json:"root" yaml:"root" toml:"root"`
	Active    string    `json:"active,omitempty" yaml:"active,omitempty" toml:"active,omitempty"`
	Total     int       `json:"total" yaml:"total" toml:"total"`
	TotalSize int64     `json:"total_size" yaml:"total_size" toml:"total_size"`
	Packs     []packRow `json:"packs" yaml:"packs" toml:"packs"`
}

func buildDocument(r *Result) document {
	rows := make([]packRow, len(r.Packs))
	for i, p := range r.Packs {
		rows[i] = packRow{
			ID:          p.ID,
			Name:        p.Name,
			Version:     p.Version,
			Author:      p.AuthorOr(""),
			Description: deref(p.Description),
			Size:        p.SizeBytes,
			Format:      p.Format,
			Active:      p.ID == r.ActiveID,
		}
		if p.SizeBytes > 0 {
			rows[i].SizeHuman = p.HumanSize()
		}
		if !p.ImportedAt.IsZero() {
			rows[i].ImportedAt = p.ImportedAt.UTC().Format(time.RFC3339)
		}
	}
	return document{
		Root:      r.Root,
		Active:    r.ActiveID,
		Total:     len(r.Packs),
		TotalSize: r.TotalSize(),
		Packs:     rows,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory, replacing any with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
