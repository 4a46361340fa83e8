package app

import "time"

// Operation tracks one CLI invocation. Its ID tags every log line the
// invocation writes, so the lines of one run can be grepped together.
type Operation struct {
	ID        string
	Command   string
	StartedAt time.Time
	Status    string // "success" or "error"
}

// NewOperation creates an operation for command started at now.
func NewOperation(command string, now time.Time) *Operation {
	return &Operation{
		ID:        now.UTC().Format("20060102T150405.000Z"),
		Command:   command,
		StartedAt: now,
		Status:    "success",
	}
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = "error"
}

// Elapsed returns how long the operation has run at now.
func (op *Operation) Elapsed(now time.Time) time.Duration {
	return now.Sub(op.StartedAt).Round(time.Millisecond)
}
