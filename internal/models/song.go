package models

// Song is immutable once created; identity is by ID.
type Song struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// Setlist is a named subset of an artist's master library.
type Setlist struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Songs []Song `json:"songs"`
}

// ArtistLibrary is the artist's catalog document, independent of any gig.
type ArtistLibrary struct {
	ArtistID     string    `json:"artistId"`
	MasterSongs  []Song    `json:"masterSongs"`
	GigPlaylists []Setlist `json:"gigPlaylists"`
	UpdatedAtMs  int64     `json:"updatedAtMs,omitempty"`
	Revision     int64     `json:"revision"`
}

func (l *ArtistLibrary) Setlist(id string) (Setlist, bool) {
	for _, s := range l.GigPlaylists {
		if s.ID == id {
			return s, true
		}
	}
	return Setlist{}, false
}
