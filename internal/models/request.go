package models

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// Request is an audience member's ask to add a song. Song fields are a
// denormalized copy frozen at submission time.
type Request struct {
	ID            string        `json:"id"`
	SongID        int           `json:"songId"`
	SongTitle     string        `json:"songTitle"`
	SongArtist    string        `json:"songArtist"`
	RequesterID   string        `json:"requesterId"`
	RequesterName string        `json:"requesterName"`
	Message       string        `json:"message"`
	Amount        float64       `json:"amount"` // legacy, always 0
	IsPaid        bool          `json:"isPaid"` // legacy, always false
	Status        RequestStatus `json:"status"`
	Timestamp     string        `json:"timestamp"` // RFC 3339
}

func (r Request) Terminal() bool {
	return r.Status == RequestAccepted || r.Status == RequestRejected
}

type Requester struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
