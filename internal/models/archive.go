package models

import (
	"time"

	"github.com/uptrace/bun"
)

// GigArchive is the post-gig summary row written once a gig ends.
type GigArchive struct {
	bun.BaseModel `bun:"table:gig_archives"`

	GigID        string    `bun:"gig_id,pk" json:"gigId"`
	ArtistID     string    `bun:"artist_id,notnull" json:"artistId"`
	VenueName    string    `bun:"venue_name" json:"venueName"`
	StartedAt    time.Time `bun:"started_at" json:"startedAt"`
	EndedAt      time.Time `bun:"ended_at" json:"endedAt"`
	EndReason    string    `bun:"end_reason" json:"endReason"`
	QueueSize    int       `bun:"queue_size" json:"queueSize"`
	PlayedCount  int       `bun:"played_count" json:"playedCount"`
	TotalVotes   int       `bun:"total_votes" json:"totalVotes"`
	RequestCount int       `bun:"request_count" json:"requestCount"`
	PeakAudience int       `bun:"peak_audience" json:"peakAudience"`
	ArchivedAt   time.Time `bun:"archived_at" json:"archivedAt"`

	Songs []ArchivedSong `bun:"rel:has-many,join:gig_id=gig_id" json:"songs"`
}

type ArchivedSong struct {
	bun.BaseModel `bun:"table:gig_archive_songs"`

	ID        int64  `bun:"id,pk,autoincrement" json:"-"`
	GigID     string `bun:"gig_id,notnull" json:"-"`
	SongID    int    `bun:"song_id" json:"songId"`
	Title     string `bun:"title" json:"title"`
	Artist    string `bun:"artist" json:"artist"`
	Votes     int    `bun:"votes" json:"votes"`
	Played    bool   `bun:"played" json:"played"`
	Requested bool   `bun:"requested" json:"requested"`
	Position  int    `bun:"position" json:"position"`
}

// CleanupReport is what one auto-cleanup pass returns to its scheduler.
type CleanupReport struct {
	CheckedCount   int      `json:"checkedCount"`
	CancelledCount int      `json:"cancelledCount"`
	CancelledGigs  []string `json:"cancelledGigs"`
	FailedCount    int      `json:"failedCount"`
}
