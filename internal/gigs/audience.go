package gigs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"ms-gigs/internal/events"
	"ms-gigs/internal/models"
	"ms-gigs/internal/store"
)

// voteMarker records that a user voted for a song at a gig.
type voteMarker struct {
	GigID     string `json:"gigId"`
	SongID    int    `json:"songId"`
	UserID    string `json:"userId"`
	CreatedMs int64  `json:"createdAtMs"`
}

type interest struct {
	GigID     string `json:"gigId"`
	UserID    string `json:"userId"`
	CreatedMs int64  `json:"createdAtMs"`
}

func voteKey(gigID string, songID int, userID string) string {
	return fmt.Sprintf("%s_%d_%s", gigID, songID, userID)
}

// Vote adds one vote from userID to songID. Each user votes for a song once
// per gig. The count is bumped with an atomic increment so concurrent voters
// never lose updates.
func (s *Service) Vote(ctx context.Context, gigID, userID string, songID int, proximityOK bool) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, models.NewValidationError("userId", "is required")
	}
	if !proximityOK {
		return 0, models.ErrOutOfRange
	}
	g, err := s.Get(ctx, gigID)
	if err != nil {
		return 0, err
	}
	if g.Status != models.GigStatusLive {
		return 0, models.ErrGigNotLive
	}
	if _, ok := g.MasterSong(songID); !ok {
		return 0, models.ErrSongNotFound
	}

	now := s.Clock.Now()
	key := voteKey(gigID, songID, userID)
	err = s.Store.Create(ctx, models.CollectionVotes, key, voteMarker{GigID: gigID, SongID: songID, UserID: userID, CreatedMs: now.UnixMilli()})
	if errors.Is(err, store.ErrAlreadyExists) {
		return 0, models.ErrAlreadyVoted
	}
	if err != nil {
		return 0, store.Translate(err, models.ErrGigNotFound)
	}

	id := strconv.Itoa(songID)
	snap, err := s.Store.Update(ctx, models.CollectionGigs, gigID, store.Fields{
		"votes." + id:        store.Increment(1),
		"lastVoteTime." + id: now.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		if derr := s.Store.Delete(ctx, models.CollectionVotes, key); derr != nil {
			s.Logger.Warn("GIG", fmt.Sprintf("vote marker %s left behind: %v", key, derr))
		}
		return 0, store.Translate(err, models.ErrGigNotFound)
	}
	updated, err := decode(snap)
	if err != nil {
		return 0, err
	}
	return updated.VotesFor(songID), nil
}

// HasVoted reports whether userID already voted for songID at gigID.
func (s *Service) HasVoted(ctx context.Context, gigID, userID string, songID int) (bool, error) {
	_, err := s.Store.Get(ctx, models.CollectionVotes, voteKey(gigID, songID, userID))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, store.Translate(err, models.ErrGigNotFound)
	}
	return true, nil
}

// AddComment appends an audience comment to a live gig.
func (s *Service) AddComment(ctx context.Context, gigID string, author models.Requester, text string, proximityOK bool) (models.Comment, error) {
	text = strings.TrimSpace(text)
	if author.ID == "" {
		return models.Comment{}, models.NewValidationError("userId", "is required")
	}
	if text == "" {
		return models.Comment{}, models.NewValidationError("text", "is required")
	}
	if utf8.RuneCountInString(text) > models.MaxMessageLength {
		return models.Comment{}, models.NewValidationError("text", fmt.Sprintf("must be at most %d characters", models.MaxMessageLength))
	}
	if !proximityOK {
		return models.Comment{}, models.ErrOutOfRange
	}
	g, err := s.Get(ctx, gigID)
	if err != nil {
		return models.Comment{}, err
	}
	if g.Status != models.GigStatusLive {
		return models.Comment{}, models.ErrGigNotLive
	}

	c := models.Comment{
		ID:        s.NewID(),
		UserID:    author.ID,
		UserName:  author.Name,
		Text:      text,
		Timestamp: s.Clock.Now().UTC().Format(time.RFC3339Nano),
	}
	if _, err := s.Store.Update(ctx, models.CollectionGigs, gigID, store.Fields{"comments": store.ArrayUnion(c)}); err != nil {
		return models.Comment{}, store.Translate(err, models.ErrGigNotFound)
	}
	return c, nil
}

// MarkPlayed flags a queued song as played. The song stays in the queue.
// Marking it again changes nothing.
func (s *Service) MarkPlayed(ctx context.Context, gigID, artistID string, songID int) (*models.Gig, error) {
	g, err := s.Get(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(g, artistID); err != nil {
		return nil, err
	}
	if g.Status != models.GigStatusLive {
		return nil, &models.TransitionError{Op: "mark played on", From: g.Status}
	}
	if g.IsPlayed(songID) {
		return g, nil
	}
	if !g.InQueue(songID) {
		return nil, models.ErrSongNotFound
	}

	snap, err := s.Store.Update(ctx, models.CollectionGigs, gigID, store.Fields{"playedSongs": store.ArrayUnion(songID)})
	if err != nil {
		return nil, store.Translate(err, models.ErrGigNotFound)
	}
	updated, err := decode(snap)
	if err != nil {
		return nil, err
	}
	s.Logger.LogGig("PLAYED", gigID, fmt.Sprintf("song %d", songID))
	evt := events.New(models.EventSongPlayed, updated, s.Clock.Now())
	evt.SongID = songID
	s.publish(ctx, evt)
	return updated, nil
}

// MarkInterested records that userID plans to attend an upcoming gig.
func (s *Service) MarkInterested(ctx context.Context, gigID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return models.NewValidationError("userId", "is required")
	}
	g, err := s.Get(ctx, gigID)
	if err != nil {
		return err
	}
	if g.Status != models.GigStatusUpcoming && g.Status != models.GigStatusConfirmed {
		return &models.TransitionError{Op: "mark interest in", From: g.Status}
	}
	err = s.Store.Create(ctx, models.CollectionInterests, gigID+"_"+userID, interest{GigID: gigID, UserID: userID, CreatedMs: s.Clock.Now().UnixMilli()})
	if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return store.Translate(err, models.ErrGigNotFound)
	}
	return nil
}

func (s *Service) UnmarkInterested(ctx context.Context, gigID, userID string) error {
	err := s.Store.Delete(ctx, models.CollectionInterests, gigID+"_"+userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return store.Translate(err, models.ErrGigNotFound)
	}
	return nil
}

func (s *Service) InterestedCount(ctx context.Context, gigID string) (int, error) {
	snaps, err := s.Store.Query(ctx, models.CollectionInterests, store.Where("gigId", store.OpEqual, gigID))
	if err != nil {
		return 0, store.Translate(err, models.ErrGigNotFound)
	}
	return len(snaps), nil
}
