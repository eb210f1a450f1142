package model

import "time"

// CheckpointRecord is the persisted snapshot of a graph run's state,
// keyed by thread ID so a run can be resumed or inspected mid-flight.
type CheckpointRecord struct {
	ThreadID    string    `json:"threadId"`
	StateJSON   []byte    `json:"-"`
	Iteration   int       `json:"iteration"`
	NodeName    string    `json:"nodeName"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
