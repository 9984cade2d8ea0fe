package model

import "time"

// NewsStatusUnavailable is reported when no news feed is configured.
const NewsStatusUnavailable = "No news API available"

// NewsItem is one headline about the subject company.
type NewsItem struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Summary   string    `json:"summary,omitempty"`
	Source    string    `json:"source"`
	Published time.Time `json:"published"`
}

// NewsRecord is the persisted news document.
type NewsRecord struct {
	News           []NewsItem `json:"news"`
	CollectionTime time.Time  `json:"collection_time"`
	Status         string     `json:"status"`
}
