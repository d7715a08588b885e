package models

// Document store collections.
const (
	CollectionGigs      = "gigs"
	CollectionArtists   = "artists"
	CollectionVotes     = "gigVotes"
	CollectionInterests = "gigInterests"
)
