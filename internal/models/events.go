package models

import "time"

// Kafka event types published by the services.
const (
	EventReferenceRefreshed = "REFERENCE_REFRESHED"
	EventCacheInvalidated   = "CACHE_INVALIDATED"
	EventCalendarSynced     = "CALENDAR_SYNCED"
)

// RecordEvent is the envelope for domain events on the records topic.
type RecordEvent struct {
	ID        string    `json:"id"`
	EventType string    `json:"event_type"`
	Symbol    string    `json:"symbol,omitempty"`
	Entity    string    `json:"entity,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
