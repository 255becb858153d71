// Package pack reads sound pack manifests and derives pack identifiers.
package pack

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/types"
)

// ManifestName is the manifest file every pack carries at its root.
const ManifestName = "config.json"

// DefaultVersion is reported for packs whose manifest has no version.
const DefaultVersion = "1.0.0"

// Manifest holds the descriptive fields of config.json. A nil field was
// absent or not a string. Everything else in the file belongs to the player
// and is ignored here.
type Manifest struct {
	Name        *string
	Version     *string
	Author      *string
	Description *string
}

// ReadManifest parses the manifest at path.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Manifest{}, packerr.New(packerr.ErrInvalidPack, "read manifest", "%s not found", ManifestName)
	}
	if err != nil {
		return Manifest{}, packerr.IO("read manifest", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes manifest bytes. The document must be a JSON object.
func ParseManifest(data []byte) (Manifest, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return Manifest{}, &packerr.Error{
			Kind: packerr.ErrInvalidPack,
			Op:   "parse manifest",
			Msg:  ManifestName + " is not a valid JSON object",
			Err:  err,
		}
	}
	if doc == nil {
		return Manifest{}, packerr.InvalidPack("parse manifest", "%s is not a valid JSON object", ManifestName)
	}

	return Manifest{
		Name:        stringField(doc, "name"),
		Version:     stringField(doc, "version"),
		Author:      stringField(doc, "author"),
		Description: stringField(doc, "description"),
	}, nil
}

func stringField(doc map[string]json.RawMessage, key string) *string {
	raw, ok := doc[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

// Resolve fills defaults: a missing name becomes fallback and a missing
// version becomes DefaultVersion. The returned pack has no ID.
func (m Manifest) Resolve(fallback string) types.SoundPack {
	p := types.SoundPack{
		Name:        fallback,
		Version:     DefaultVersion,
		Author:      m.Author,
		Description: m.Description,
	}
	if m.Name != nil {
		p.Name = *m.Name
	}
	if m.Version != nil {
		p.Version = *m.Version
	}
	return p
}
