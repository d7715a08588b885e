package models

import "time"

type GigEventType string

const (
	EventGigCreated       GigEventType = "gig.created"
	EventGigLive          GigEventType = "gig.live"
	EventGigExtended      GigEventType = "gig.extended"
	EventGigEnded         GigEventType = "gig.ended"
	EventGigCancelled     GigEventType = "gig.cancelled"
	EventRequestSubmitted GigEventType = "request.submitted"
	EventRequestAccepted  GigEventType = "request.accepted"
	EventRequestRejected  GigEventType = "request.rejected"
	EventQueueSwapped     GigEventType = "queue.swapped"
	EventSongPlayed       GigEventType = "song.played"
)

// GigEvent is the payload published to the event bus. Ended events carry the
// final gig snapshot so the archive can be built without another read.
type GigEvent struct {
	EventID    string       `json:"event_id"`
	Type       GigEventType `json:"type"`
	GigID      string       `json:"gig_id"`
	ArtistID   string       `json:"artist_id"`
	OccurredAt time.Time    `json:"occurred_at"`
	Reason     string       `json:"reason,omitempty"`
	RequestID  string       `json:"request_id,omitempty"`
	SongID     int          `json:"song_id,omitempty"`
	Gig        *Gig         `json:"gig,omitempty"`
}

// Notice is a transient message pushed to clients watching a gig.
type Notice struct {
	GigID   string `json:"gigId"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const (
	NoticeEndingSoon = "ending_soon"
	NoticeAutoEnded  = "auto_ended"
	NoticeSwapped    = "swapped"
)
