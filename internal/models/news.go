package models

import "time"

// NewsArticle is a single news item from the upstream provider. News is
// served cache-aside with a short TTL and never persisted durably.
type NewsArticle struct {
	Symbol      string    `json:"symbol,omitempty"`
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary,omitempty"`
	Source      string    `json:"source,omitempty"`
	URL         string    `json:"url,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// NewsFilter narrows a news query.
type NewsFilter struct {
	Symbol string
	Limit  int
}
