package domain

import "time"

// ProcessingRecord is the durable account of one first-time processing
// attempt. Exactly one row exists per provider event ID; rows are never
// updated or deleted. The unique constraint on EventID is the tie-breaker
// when the same event is delivered twice concurrently.
type ProcessingRecord struct {
	EventID          string
	EventType        string
	EventCreatedAt   time.Time
	Success          bool
	ErrorDetail      *string
	ProcessingTimeMs int64
	RecordedAt       time.Time
}
