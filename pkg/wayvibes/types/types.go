// Package types holds the data shapes shared by the store, the importer, the
// application service and the output formatters.
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// SoundPack is an installed pack as presented to callers. The first five
// fields are the stable JSON contract with the desktop front end.
type SoundPack struct {
	ID          string  `json:"id" yaml:"id" toml:"id"`
	Name        string  `json:"name" yaml:"name" toml:"name"`
	Version     string  `json:"version" yaml:"version" toml:"version"`
	Author      *string `json:"author,omitempty" yaml:"author,omitempty" toml:"author,omitempty"`
	Description *string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`

	// Catalog metadata, zero when the pack predates the catalog.
	SizeBytes  int64     `json:"sizeBytes,omitempty" yaml:"size_bytes,omitempty" toml:"size_bytes,omitempty"`
	ImportedAt time.Time `json:"importedAt,omitzero" yaml:"imported_at,omitempty" toml:"imported_at,omitempty"`
	Format     string    `json:"format,omitempty" yaml:"format,omitempty" toml:"format,omitempty"`
}

// HumanSize renders SizeBytes in IEC units, or "-" when unknown.
func (p SoundPack) HumanSize() string {
	if p.SizeBytes <= 0 {
		return "-"
	}
	return FormatSize(p.SizeBytes)
}

// AuthorOr returns the author or def when absent.
func (p SoundPack) AuthorOr(def string) string {
	if p.Author == nil || *p.Author == "" {
		return def
	}
	return *p.Author
}

// PlayerStatus reports the state of the playback daemon.
type PlayerStatus struct {
	Installed bool    `json:"installed" yaml:"installed" toml:"installed"`
	Running   bool    `json:"running" yaml:"running" toml:"running"`
	Version   *string `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty"`
	PID       *int32  `json:"pid,omitempty" yaml:"pid,omitempty" toml:"pid,omitempty"`
}

// ErrInvalidSize indicates a size string that could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ParseSize parses sizes such as "512", "100MB", "2GiB" or "1.5G". Both SI and
// IEC suffixes are accepted.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidSize, s)
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("%w: %q is too large", ErrInvalidSize, s)
	}
	return int64(n), nil
}

// FormatSize renders bytes in IEC units ("1.5 MiB").
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
