package models

// TranscriptEvent is published when an ingested segment has been transcribed.
type TranscriptEvent struct {
	EventType  string  `json:"eventType"`
	SessionID  string  `json:"sessionId"`
	TableID    string  `json:"tableId"`
	SegmentID  string  `json:"segmentId"`
	Seq        uint64  `json:"seq"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Timestamp  int64   `json:"timestamp"`
}

// SummaryEvent is published when a rolling summary is refreshed for a table.
type SummaryEvent struct {
	EventType    string `json:"eventType"`
	SessionID    string `json:"sessionId"`
	TableID      string `json:"tableId"`
	Summary      string `json:"summary"`
	SegmentCount int    `json:"segmentCount"`
	Timestamp    int64  `json:"timestamp"`
}

// NudgeEvent is published on nudge lifecycle transitions.
type NudgeEvent struct {
	EventType string `json:"eventType"`
	NudgeID   string `json:"nudgeId"`
	SessionID string `json:"sessionId"`
	TableID   string `json:"tableId,omitempty"`
	Phase     string `json:"phase"` // created, delivered, acknowledged
	Timestamp int64  `json:"timestamp"`
}
