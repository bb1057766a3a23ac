package store

import (
	"time"

	"github.com/ibeckermayer/threadkeeper/internal/types"
)

// StatusUnanswered is the status every Unit is registered with.
const StatusUnanswered = "unanswered"

// UnitRow is a registered Unit as stored in the units table
type UnitRow struct {
	Unit         types.Unit `json:"unit"`
	Transcript   string     `json:"transcript,omitempty"`
	Status       string     `json:"status"`
	RunID        string     `json:"run_id,omitempty"`
	RegisteredAt time.Time  `json:"registered_at"`
}

// Run is one pass of the pipeline as stored in the runs table
type Run struct {
	ID             string    `json:"id"`
	Mode           string    `json:"mode"`
	Author         string    `json:"author,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at,omitempty"`
	ThreadsVisited int       `json:"threads_visited"`
	Admitted       int       `json:"admitted"`
	Persisted      int       `json:"persisted"`
	Failed         int       `json:"failed"`
}
