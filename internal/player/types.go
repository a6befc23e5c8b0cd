package player

import "time"

// Track is one queue entry. URL is the playable media URL (may be empty until
// prepared); SourceURL is the stable handle used to prepare or re-resolve it.
type Track struct {
	Title       string
	Channel     string
	Duration    time.Duration
	URL         string
	SourceURL   string
	Thumbnail   string
	RequestedBy string
	RequestedIn string
}
