// Package library stores an artist's master song catalog and setlists.
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ms-gigs/internal/clock"
	"ms-gigs/internal/logger"
	"ms-gigs/internal/models"
	"ms-gigs/internal/store"
)

// Reconcile merges a library cached on a device into the stored one. The
// stored copy wins for songs and setlists present in both; anything only the
// device knows about is appended in its original order.
func Reconcile(local, remote models.ArtistLibrary) models.ArtistLibrary {
	out := remote
	out.MasterSongs = append([]models.Song(nil), remote.MasterSongs...)
	out.GigPlaylists = append([]models.Setlist(nil), remote.GigPlaylists...)
	if out.ArtistID == "" {
		out.ArtistID = local.ArtistID
	}

	songs := make(map[int]bool, len(out.MasterSongs))
	for _, s := range out.MasterSongs {
		songs[s.ID] = true
	}
	for _, s := range local.MasterSongs {
		if !songs[s.ID] {
			songs[s.ID] = true
			out.MasterSongs = append(out.MasterSongs, s)
		}
	}

	lists := make(map[string]bool, len(out.GigPlaylists))
	for _, l := range out.GigPlaylists {
		lists[l.ID] = true
	}
	for _, l := range local.GigPlaylists {
		if !lists[l.ID] {
			lists[l.ID] = true
			out.GigPlaylists = append(out.GigPlaylists, l)
		}
	}
	return out
}

func validateSongs(songs []models.Song) error {
	seen := make(map[int]bool, len(songs))
	for _, s := range songs {
		if strings.TrimSpace(s.Title) == "" {
			return models.NewValidationError("title", fmt.Sprintf("song %d has no title", s.ID))
		}
		if seen[s.ID] {
			return models.NewValidationError("id", fmt.Sprintf("song %d appears twice", s.ID))
		}
		seen[s.ID] = true
	}
	return nil
}

type Service struct {
	Store  store.DocumentStore
	Clock  clock.Clock
	Logger *logger.Logger
}

func NewService(s store.DocumentStore, clk clock.Clock, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Service{Store: s, Clock: clk, Logger: log}
}

// Get returns the artist's library, empty when nothing has been saved yet.
func (s *Service) Get(ctx context.Context, artistID string) (*models.ArtistLibrary, error) {
	snap, err := s.Store.Get(ctx, models.CollectionArtists, artistID)
	if errors.Is(err, store.ErrNotFound) {
		return &models.ArtistLibrary{ArtistID: artistID, MasterSongs: []models.Song{}, GigPlaylists: []models.Setlist{}}, nil
	}
	if err != nil {
		return nil, store.Translate(err, models.ErrSongNotFound)
	}
	var lib models.ArtistLibrary
	if err := snap.DataTo(&lib); err != nil {
		return nil, err
	}
	lib.ArtistID = artistID
	return &lib, nil
}

func (s *Service) SaveMasterSongs(ctx context.Context, artistID string, songs []models.Song) (*models.ArtistLibrary, error) {
	if err := validateSongs(songs); err != nil {
		return nil, err
	}
	return s.save(ctx, artistID, func(lib *models.ArtistLibrary) error {
		lib.MasterSongs = songs
		return nil
	})
}

// SaveSetlist adds or replaces a setlist. Every song must be in the master library.
func (s *Service) SaveSetlist(ctx context.Context, artistID string, setlist models.Setlist) (*models.ArtistLibrary, error) {
	if strings.TrimSpace(setlist.ID) == "" {
		return nil, models.NewValidationError("id", "setlist id is required")
	}
	if strings.TrimSpace(setlist.Name) == "" {
		return nil, models.NewValidationError("name", "setlist name is required")
	}
	return s.save(ctx, artistID, func(lib *models.ArtistLibrary) error {
		master := make(map[int]bool, len(lib.MasterSongs))
		for _, song := range lib.MasterSongs {
			master[song.ID] = true
		}
		for _, song := range setlist.Songs {
			if !master[song.ID] {
				return fmt.Errorf("setlist %s song %d: %w", setlist.ID, song.ID, models.ErrSongNotFound)
			}
		}
		for i, existing := range lib.GigPlaylists {
			if existing.ID == setlist.ID {
				lib.GigPlaylists[i] = setlist
				return nil
			}
		}
		lib.GigPlaylists = append(lib.GigPlaylists, setlist)
		return nil
	})
}

func (s *Service) DeleteSetlist(ctx context.Context, artistID, setlistID string) (*models.ArtistLibrary, error) {
	return s.save(ctx, artistID, func(lib *models.ArtistLibrary) error {
		kept := lib.GigPlaylists[:0]
		for _, l := range lib.GigPlaylists {
			if l.ID != setlistID {
				kept = append(kept, l)
			}
		}
		lib.GigPlaylists = kept
		return nil
	})
}

// Import merges a device-cached library into the stored one, once, at session start.
func (s *Service) Import(ctx context.Context, artistID string, local models.ArtistLibrary) (*models.ArtistLibrary, error) {
	if err := validateSongs(local.MasterSongs); err != nil {
		return nil, err
	}
	return s.save(ctx, artistID, func(lib *models.ArtistLibrary) error {
		merged := Reconcile(local, *lib)
		lib.MasterSongs = merged.MasterSongs
		lib.GigPlaylists = merged.GigPlaylists
		return nil
	})
}

// save reads, edits and writes the library guarded by its revision. A
// missing library is created.
func (s *Service) save(ctx context.Context, artistID string, edit func(lib *models.ArtistLibrary) error) (*models.ArtistLibrary, error) {
	for attempt := 0; attempt < store.DefaultAttempts; attempt++ {
		lib, err := s.Get(ctx, artistID)
		if err != nil {
			return nil, err
		}
		exists := lib.Revision > 0
		if err := edit(lib); err != nil {
			return nil, err
		}
		lib.UpdatedAtMs = s.Clock.Now().UnixMilli()

		if !exists {
			err = s.Store.Create(ctx, models.CollectionArtists, artistID, lib)
		} else {
			_, err = s.Store.Update(ctx, models.CollectionArtists, artistID, store.Fields{
				"masterSongs":  lib.MasterSongs,
				"gigPlaylists": lib.GigPlaylists,
				"updatedAtMs":  lib.UpdatedAtMs,
			}, store.IfRevision(lib.Revision))
		}
		if errors.Is(err, store.ErrRevisionMismatch) || errors.Is(err, store.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return nil, store.Translate(err, models.ErrSongNotFound)
		}
		s.Logger.Info("LIBRARY", fmt.Sprintf("artist=%s saved %d songs, %d setlists", artistID, len(lib.MasterSongs), len(lib.GigPlaylists)))
		return s.Get(ctx, artistID)
	}
	return nil, models.ErrConcurrencyConflict
}
