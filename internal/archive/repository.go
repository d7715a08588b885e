package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-gigs/internal/clock"
	"ms-gigs/internal/logger"
	"ms-gigs/internal/models"
)

var ErrNotArchived = errors.New("gig has no archive")

type Repository struct {
	DB     *bun.DB
	Clock  clock.Clock
	Logger *logger.Logger
}

func NewRepository(db *bun.DB, clk clock.Clock, log *logger.Logger) *Repository {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Repository{DB: db, Clock: clk, Logger: log}
}

// Save writes the summary and its songs, replacing any earlier archive of
// the same gig.
func (r *Repository) Save(ctx context.Context, a *models.GigArchive) error {
	err := r.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.ArchivedSong)(nil)).Where("gig_id = ?", a.GigID).Exec(ctx); err != nil {
			return fmt.Errorf("clear songs: %w", err)
		}
		if _, err := tx.NewDelete().Model((*models.GigArchive)(nil)).Where("gig_id = ?", a.GigID).Exec(ctx); err != nil {
			return fmt.Errorf("clear archive: %w", err)
		}
		if _, err := tx.NewInsert().Model(a).Exec(ctx); err != nil {
			return fmt.Errorf("insert archive: %w", err)
		}
		if len(a.Songs) == 0 {
			return nil
		}
		for i := range a.Songs {
			a.Songs[i].GigID = a.GigID
			a.Songs[i].ID = 0
		}
		if _, err := tx.NewInsert().Model(&a.Songs).Exec(ctx); err != nil {
			return fmt.Errorf("insert songs: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("archive gig %s: %w", a.GigID, err)
	}
	r.Logger.LogDatabase("INSERT", "gig_archives", fmt.Sprintf("gig=%s songs=%d", a.GigID, len(a.Songs)))
	return nil
}

func (r *Repository) Get(ctx context.Context, gigID string) (*models.GigArchive, error) {
	a := new(models.GigArchive)
	err := r.DB.NewSelect().Model(a).
		Relation("Songs", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Where("gig_archive.gig_id = ?", gigID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotArchived
	}
	if err != nil {
		return nil, fmt.Errorf("get archive %s: %w", gigID, err)
	}
	return a, nil
}

// ListByArtist returns the artist's archived gigs, most recent first, without songs.
func (r *Repository) ListByArtist(ctx context.Context, artistID string, limit int) ([]models.GigArchive, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.GigArchive
	err := r.DB.NewSelect().Model(&out).
		Where("artist_id = ?", artistID).
		Order("ended_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list archives for %s: %w", artistID, err)
	}
	if out == nil {
		out = []models.GigArchive{}
	}
	return out, nil
}

// Handle archives gigs from gig.ended events. Other events are ignored.
func (r *Repository) Handle(ctx context.Context, evt models.GigEvent) error {
	if evt.Type != models.EventGigEnded {
		return nil
	}
	if evt.Gig == nil {
		r.Logger.Warn("ARCHIVE", fmt.Sprintf("gig.ended for %s carried no snapshot", evt.GigID))
		return nil
	}
	a := Summarize(evt.Gig, r.Clock.Now())
	if err := r.Save(ctx, a); err != nil {
		return err
	}
	r.Logger.Info("ARCHIVE", fmt.Sprintf("archived gig %s (%d played, %d votes)", a.GigID, a.PlayedCount, a.TotalVotes))
	return nil
}
