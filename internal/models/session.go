package models

import "time"

// Session is a collection of tables sharing a discussion topic and schedule.
type Session struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"createdAt"`
}

// Table is a single group/device endpoint within a session. DeviceToken is
// the opaque credential presented by the device on ingestion and polling.
type Table struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	Name        string    `json:"name"`
	DeviceToken string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SegmentRecord is the server-side record of one ingested audio segment.
type SegmentRecord struct {
	ID         string    `json:"id"`
	TableID    string    `json:"tableId"`
	Seq        uint64    `json:"seq"`
	SizeBytes  int       `json:"sizeBytes"`
	Transcript string    `json:"transcript,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
