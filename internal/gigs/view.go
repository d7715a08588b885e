package gigs

import (
	"context"
	"sort"
	"time"

	"ms-gigs/internal/geo"
	"ms-gigs/internal/models"
	"ms-gigs/internal/queue"
	"ms-gigs/internal/requests"
	"ms-gigs/internal/store"
	"ms-gigs/internal/timewindow"
)

// ViewOf derives everything readers see from the stored gig and now.
func ViewOf(g *models.Gig, now time.Time, loc *time.Location) *models.GigView {
	v := &models.GigView{
		Gig:            g,
		DerivedStatus:  timewindow.DeriveStatus(g, now, loc),
		RankedQueue:    queue.RankGig(g),
		SortedRequests: requests.SortForDisplay(g.SongRequests),
	}
	if v.DerivedStatus == models.DerivedLive {
		if end, ok := timewindow.EndTime(g); ok {
			v.RemainingMs = end.Sub(now).Milliseconds()
		}
	}
	return v
}

func (s *Service) View(ctx context.Context, gigID string) (*models.GigView, error) {
	g, err := s.Get(ctx, gigID)
	if err != nil {
		return nil, err
	}
	return ViewOf(g, s.Clock.Now(), s.location), nil
}

// ActiveLiveGigForArtist returns the artist's live gig, or ErrGigNotFound.
func (s *Service) ActiveLiveGigForArtist(ctx context.Context, artistID string) (*models.Gig, error) {
	live, err := s.liveGigs(ctx, artistID)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return nil, models.ErrGigNotFound
	}
	return live[0], nil
}

func (s *Service) liveGigs(ctx context.Context, artistID string) ([]*models.Gig, error) {
	snaps, err := s.Store.Query(ctx, models.CollectionGigs,
		store.Where("artistId", store.OpEqual, artistID),
		store.Where("status", store.OpEqual, models.GigStatusLive))
	if err != nil {
		return nil, store.Translate(err, models.ErrGigNotFound)
	}
	return decodeAll(snaps)
}

// ListByArtist returns all of an artist's gigs, soonest scheduled first.
func (s *Service) ListByArtist(ctx context.Context, artistID string) ([]*models.GigView, error) {
	snaps, err := s.Store.Query(ctx, models.CollectionGigs, store.Where("artistId", store.OpEqual, artistID))
	if err != nil {
		return nil, store.Translate(err, models.ErrGigNotFound)
	}
	gigs, err := decodeAll(snaps)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(gigs, func(i, j int) bool {
		a, b := gigs[i], gigs[j]
		if a.ScheduledDate != b.ScheduledDate {
			return a.ScheduledDate < b.ScheduledDate
		}
		return a.ScheduledTime < b.ScheduledTime
	})
	now := s.Clock.Now()
	out := make([]*models.GigView, len(gigs))
	for i, g := range gigs {
		out[i] = ViewOf(g, now, s.location)
	}
	return out, nil
}

// Nearby lists gigs within radiusMeters of point that are not over, live
// gigs first and then by distance.
func (s *Service) Nearby(ctx context.Context, point models.GeoPoint, radiusMeters float64) ([]models.NearbyGig, error) {
	snaps, err := s.Store.Query(ctx, models.CollectionGigs, store.Where("status", store.OpIn, []models.GigStatus{
		models.GigStatusUpcoming, models.GigStatusConfirmed, models.GigStatusLive,
	}))
	if err != nil {
		return nil, store.Translate(err, models.ErrGigNotFound)
	}
	gigs, err := decodeAll(snaps)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	var out []models.NearbyGig
	for _, g := range gigs {
		d := geo.Distance(point, g.VenueLocation)
		if d > radiusMeters {
			continue
		}
		v := ViewOf(g, now, s.location)
		if v.DerivedStatus == models.DerivedEnded || v.DerivedStatus == models.DerivedCancelled {
			continue
		}
		out = append(out, models.NearbyGig{View: v, DistanceMeters: d})
	}
	sort.SliceStable(out, func(i, j int) bool {
		li := out[i].View.DerivedStatus == models.DerivedLive
		lj := out[j].View.DerivedStatus == models.DerivedLive
		if li != lj {
			return li
		}
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	return out, nil
}

func decodeAll(snaps []store.Snapshot) ([]*models.Gig, error) {
	out := make([]*models.Gig, 0, len(snaps))
	for _, snap := range snaps {
		g, err := decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// AllLive returns every gig currently in the live state, for resuming
// sessions after a restart.
func (s *Service) AllLive(ctx context.Context) ([]*models.Gig, error) {
	snaps, err := s.Store.Query(ctx, models.CollectionGigs, store.Where("status", store.OpEqual, models.GigStatusLive))
	if err != nil {
		return nil, store.Translate(err, models.ErrGigNotFound)
	}
	return decodeAll(snaps)
}
