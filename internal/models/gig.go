package models

import "encoding/json"

type GigStatus string

const (
	GigStatusUpcoming  GigStatus = "upcoming"
	GigStatusConfirmed GigStatus = "confirmed" // legacy pre-live state, treated like upcoming
	GigStatusLive      GigStatus = "live"
	GigStatusEnded     GigStatus = "ended"
	GigStatusCancelled GigStatus = "cancelled"
)

// DerivedStatus is the display lifecycle state computed on read. It is never persisted.
type DerivedStatus string

const (
	DerivedUpcoming   DerivedStatus = "upcoming"
	DerivedCheckVenue DerivedStatus = "checkVenue"
	DerivedLive       DerivedStatus = "live"
	DerivedEnded      DerivedStatus = "ended"
	DerivedCancelled  DerivedStatus = "cancelled"
)

const (
	MinQueueSize     = 20
	MaxQueueSize     = 50
	MaxMessageLength = 200
)

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Gig is the canonical gig document. Field names are the wire contract shared
// with every external reader of the document store.
type Gig struct {
	ID            string    `json:"id"`
	ArtistID      string    `json:"artistId"`
	VenueName     string    `json:"venueName"`
	VenueLocation GeoPoint  `json:"venueLocation"`
	ScheduledDate string    `json:"scheduledDate"` // YYYY-MM-DD
	ScheduledTime string    `json:"scheduledTime"` // HH:MM, venue local time
	Status        GigStatus `json:"status"`
	SetlistID     string    `json:"setlistId,omitempty"`
	CreatedAtMs   int64     `json:"createdAtMs,omitempty"`

	ActualStartTimeMs  int64 `json:"actualStartTimeMs,omitempty"`
	ScheduledEndTimeMs int64 `json:"scheduledEndTimeMs,omitempty"`
	// ScheduledEndTime is the pre-millisecond end time kept on older documents.
	// It may be an ISO string, an epoch number or an object with a seconds field.
	ScheduledEndTime any  `json:"scheduledEndTime,omitempty"`
	TimeExtended     bool `json:"timeExtended,omitempty"`

	ManuallyEnded bool   `json:"manuallyEnded,omitempty"`
	EndedAtMs     int64  `json:"endedAtMs,omitempty"`
	EndReason     string `json:"endReason,omitempty"`
	CancelReason  string `json:"cancelReason,omitempty"`
	CancelledAtMs int64  `json:"cancelledAtMs,omitempty"`

	MasterPlaylist []Song            `json:"masterPlaylist"`
	QueuedSongs    []Song            `json:"queuedSongs"`
	MaxQueueSize   int               `json:"maxQueueSize"`
	PlayedSongs    []int             `json:"playedSongs"`
	Votes          map[int]int       `json:"votes"`
	LastVoteTime   map[int]string    `json:"lastVoteTime"`
	SongRequests   []Request         `json:"songRequests"`
	Comments       []Comment         `json:"comments"`
	Donations      []json.RawMessage `json:"donations"`

	AudienceTracking AudienceTracking `json:"audienceTracking"`
	RequestsEnabled  bool             `json:"requestsEnabled"`

	// Revision is maintained by the document store and bumped on every write.
	Revision int64 `json:"revision"`
}

func (g *Gig) IsPlayed(songID int) bool {
	for _, id := range g.PlayedSongs {
		if id == songID {
			return true
		}
	}
	return false
}

func (g *Gig) InQueue(songID int) bool {
	for _, s := range g.QueuedSongs {
		if s.ID == songID {
			return true
		}
	}
	return false
}

// MasterSong resolves a song from the gig's frozen master playlist.
func (g *Gig) MasterSong(songID int) (Song, bool) {
	for _, s := range g.MasterPlaylist {
		if s.ID == songID {
			return s, true
		}
	}
	return Song{}, false
}

// RequestIndex returns the position of the request in SongRequests, or -1.
func (g *Gig) RequestIndex(requestID string) int {
	for i, r := range g.SongRequests {
		if r.ID == requestID {
			return i
		}
	}
	return -1
}

func (g *Gig) VotesFor(songID int) int {
	if g.Votes == nil {
		return 0
	}
	return g.Votes[songID]
}

// Clone returns a deep copy so pure transitions never alias the caller's slices or maps.
func (g *Gig) Clone() *Gig {
	c := *g
	c.MasterPlaylist = append([]Song(nil), g.MasterPlaylist...)
	c.QueuedSongs = append([]Song(nil), g.QueuedSongs...)
	c.PlayedSongs = append([]int(nil), g.PlayedSongs...)
	c.SongRequests = append([]Request(nil), g.SongRequests...)
	c.Comments = append([]Comment(nil), g.Comments...)
	c.Donations = append([]json.RawMessage(nil), g.Donations...)
	if g.Votes != nil {
		c.Votes = make(map[int]int, len(g.Votes))
		for k, v := range g.Votes {
			c.Votes[k] = v
		}
	}
	if g.LastVoteTime != nil {
		c.LastVoteTime = make(map[int]string, len(g.LastVoteTime))
		for k, v := range g.LastVoteTime {
			c.LastVoteTime[k] = v
		}
	}
	c.AudienceTracking = g.AudienceTracking.Clone()
	return &c
}

type Comment struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// GigView is what readers see: the stored gig plus the values derived on read.
type GigView struct {
	Gig            *Gig          `json:"gig"`
	DerivedStatus  DerivedStatus `json:"derivedStatus"`
	RankedQueue    []Song        `json:"rankedQueue"`
	SortedRequests []Request     `json:"sortedRequests"`
	RemainingMs    int64         `json:"remainingMs,omitempty"`
}

type CreateGigInput struct {
	ArtistID        string   `json:"-"`
	VenueName       string   `json:"venueName"`
	VenueLocation   GeoPoint `json:"venueLocation"`
	ScheduledDate   string   `json:"scheduledDate"`
	ScheduledTime   string   `json:"scheduledTime"`
	MaxQueueSize    int      `json:"maxQueueSize"`
	SetlistID       string   `json:"setlistId"`
	RequestsEnabled *bool    `json:"requestsEnabled"`
}

// NearbyGig is a discovery result.
type NearbyGig struct {
	View           *GigView `json:"view"`
	DistanceMeters float64  `json:"distanceMeters"`
}
