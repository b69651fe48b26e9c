package domain

import "time"

// SessionStatus is the lifecycle state of an analysis session.
type SessionStatus string

const (
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusFailed     SessionStatus = "failed"
)

// Session is one uploaded or generated batch of transactions analyzed
// together. It is the unit of isolation for all detection: detectors never
// look across sessions.
type Session struct {
	ID        string        `json:"id"`
	Filename  string        `json:"filename"`
	RowCount  int           `json:"row_count"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// Category is external reference data; the analytics core only reads
// the id -> name mapping.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
