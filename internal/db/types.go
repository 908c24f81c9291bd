package db

import (
	"time"

	"github.com/zsprackett/usage-bar/internal/usage"
)

// Snapshot is one successful poll.
type Snapshot struct {
	ID       int64
	PollID   string
	At       time.Time
	Duration time.Duration
	Record   usage.Record
}

// PollError is one failed poll.
type PollError struct {
	ID       int64
	PollID   string
	At       time.Time
	Duration time.Duration
	Kind     usage.ErrorKind
	Message  string
	ExitCode int
}

// Summary counts poll outcomes since a point in time.
type Summary struct {
	OK     int
	Failed int
	Since  time.Time
}
