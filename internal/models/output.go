package models

import "time"

// OutputKind classifies an output record
type OutputKind string

const (
	// OutputStdout is program standard output
	OutputStdout OutputKind = "output"
	// OutputError is program standard error or an execution failure
	OutputError OutputKind = "error"
	// OutputInfo is execution metadata such as "compiling" or "cancelled"
	OutputInfo OutputKind = "info"
)

// OutputRecord is one timestamped line of program output or execution metadata.
// Records are immutable once created.
type OutputRecord struct {
	ID        string     `json:"id"`
	Kind      OutputKind `json:"type"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
}

// HasOutputs reports whether any record exists
func HasOutputs(records []OutputRecord) bool {
	return len(records) > 0
}

// CloneRecords returns a copy that callers may keep after the owner replaces its records
func CloneRecords(records []OutputRecord) []OutputRecord {
	if records == nil {
		return nil
	}
	out := make([]OutputRecord, len(records))
	copy(out, records)
	return out
}
