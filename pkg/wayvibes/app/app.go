// Package app is the command surface shared by every front end: importing
// and deleting packs, choosing the active pack, and controlling playback.
// Settings writes are serialized by the settings file; imports run without
// holding that lock.
package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/catalog"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/history"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/importer"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/logging"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/settings"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/store"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/types"
)

// Player controls the playback daemon.
type Player interface {
	Status(ctx context.Context) (types.PlayerStatus, error)
	Start(ctx context.Context, dir string, volume float64) error
	Stop(ctx context.Context) (int, error)
}

// Service wires the pack store, importer and player together.
type Service struct {
	Store    *store.Store
	Importer *importer.Importer
	Prefs    *settings.File
	Player   Player

	// Catalog and History are optional.
	Catalog *catalog.Catalog
	History *history.Log
}

// Status is a snapshot for status displays.
type Status struct {
	Player   types.PlayerStatus `json:"player" yaml:"player"`
	Settings settings.Settings  `json:"settings" yaml:"settings"`
	Active   *types.SoundPack   `json:"active,omitempty" yaml:"active,omitempty"`
	Packs    int                `json:"packs" yaml:"packs"`
}

// ImportPack imports the archive at path. The first pack imported becomes
// the active one.
func (s *Service) ImportPack(ctx context.Context, path string) (types.SoundPack, error) {
	p, err := s.Importer.Import(ctx, path)
	if err != nil {
		return types.SoundPack{}, err
	}

	_, err = s.Prefs.Update(func(st *settings.Settings) error {
		if st.ActivePackID == nil {
			id := p.ID
			st.ActivePackID = &id
		}
		return nil
	})
	if err != nil {
		return p, fmt.Errorf("pack imported but settings not saved: %w", err)
	}
	return p, nil
}

// DeletePack removes an installed pack and clears it as the active pack.
func (s *Service) DeletePack(ctx context.Context, id string) error {
	log := logging.Get("app")

	// The name is only for the history entry; a pack with a broken
	// manifest can still be deleted.
	p, _ := s.Store.Get(id)
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}

	if s.Catalog != nil {
		if err := s.Catalog.Delete(id); err != nil {
			log.Warn("catalog delete failed", "id", id, "error", err)
		}
	}
	if s.History != nil {
		if _, err := s.History.Record(history.Entry{Op: history.OpDelete, PackID: id, PackName: p.Name}); err != nil {
			log.Warn("history write failed", "error", err)
		}
	}

	_, err := s.Prefs.Update(func(st *settings.Settings) error {
		if st.Active() == id {
			st.ActivePackID = nil
		}
		return nil
	})
	return err
}

// ListPacks returns installed packs with catalog metadata merged in.
// Catalog records for packs that no longer exist are pruned.
func (s *Service) ListPacks() ([]types.SoundPack, error) {
	packs, err := s.Store.List()
	if err != nil {
		return nil, err
	}
	if s.Catalog == nil {
		return packs, nil
	}

	log := logging.Get("app")
	ids := make([]string, len(packs))
	for i := range packs {
		ids[i] = packs[i].ID
		rec, err := s.Catalog.Get(packs[i].ID)
		if err != nil {
			continue
		}
		packs[i].SizeBytes = rec.SizeBytes
		packs[i].ImportedAt = rec.ImportedAt
		packs[i].Format = rec.Format
	}
	if pruned, err := s.Catalog.Prune(ids); err != nil {
		log.Warn("catalog prune failed", "error", err)
	} else if len(pruned) > 0 {
		log.Debug("pruned stale catalog records", "ids", pruned)
	}
	return packs, nil
}

// PackPath returns the directory of an installed pack.
func (s *Service) PackPath(id string) (string, error) {
	dir, err := s.Store.Path(id)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return "", packerr.New(packerr.ErrNotFound, "path", "pack %q not found", id)
		}
		return "", packerr.IO("path", err)
	}
	return dir, nil
}

// SetActivePack makes id the active pack and starts playback unless paused.
func (s *Service) SetActivePack(ctx context.Context, id string) error {
	dir, err := s.PackPath(id)
	if err != nil {
		return err
	}
	st, err := s.Prefs.Update(func(st *settings.Settings) error {
		st.ActivePackID = &id
		return nil
	})
	if err != nil {
		return err
	}
	if st.Paused {
		return nil
	}
	return ignoreMissing(s.Player.Start(ctx, dir, st.Volume))
}

// SetVolume stores v clamped to [0,1] and restarts playback with it.
func (s *Service) SetVolume(ctx context.Context, v float64) (float64, error) {
	v = Clamp(v)
	st, err := s.Prefs.Update(func(st *settings.Settings) error {
		st.Volume = v
		return nil
	})
	if err != nil {
		return v, err
	}
	return v, s.resume(ctx, st)
}

// TogglePause flips the paused flag, stopping or resuming playback.
func (s *Service) TogglePause(ctx context.Context) (bool, error) {
	st, err := s.Prefs.Update(func(st *settings.Settings) error {
		st.Paused = !st.Paused
		return nil
	})
	if err != nil {
		return false, err
	}
	if st.Paused {
		_, err := s.Player.Stop(ctx)
		return true, ignoreMissing(err)
	}
	return false, s.resume(ctx, st)
}

// StopPlayback pauses and stops the player.
func (s *Service) StopPlayback(ctx context.Context) error {
	if _, err := s.Prefs.Update(func(st *settings.Settings) error {
		st.Paused = true
		return nil
	}); err != nil {
		return err
	}
	_, err := s.Player.Stop(ctx)
	return ignoreMissing(err)
}

// Status reports player state and settings.
func (s *Service) Status(ctx context.Context) (Status, error) {
	ps, err := s.Player.Status(ctx)
	if err != nil {
		return Status{}, err
	}
	st := s.Prefs.Get()
	out := Status{Player: ps, Settings: st}

	packs, err := s.Store.List()
	if err != nil {
		return Status{}, err
	}
	out.Packs = len(packs)
	for i := range packs {
		if packs[i].ID == st.Active() {
			p := packs[i]
			out.Active = &p
		}
	}
	return out, nil
}

// Settings returns the current settings.
func (s *Service) Settings() settings.Settings { return s.Prefs.Get() }

// resume restarts playback with the active pack when not paused. An active
// pack whose directory is gone is left alone.
func (s *Service) resume(ctx context.Context, st settings.Settings) error {
	if st.Paused || st.ActivePackID == nil {
		return nil
	}
	dir, err := s.PackPath(*st.ActivePackID)
	if err != nil {
		logging.Get("app").Debug("active pack missing, not restarting", "id", *st.ActivePackID, "error", err)
		return nil
	}
	return ignoreMissing(s.Player.Start(ctx, dir, st.Volume))
}

// Clamp limits a volume to [0,1].
func Clamp(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// ignoreMissing drops ErrDependencyMissing so playback commands still
// persist settings on machines without the player.
func ignoreMissing(err error) error {
	if errors.Is(err, packerr.ErrDependencyMissing) {
		logging.Get("app").Debug("player not installed", "error", err)
		return nil
	}
	return err
}
