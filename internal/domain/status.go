package domain

import "fmt"

// Status is the authoritative lifecycle field of a SourceItem.
type Status string

const (
	StatusFetched    Status = "fetched"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusSkipped    Status = "skipped"
	StatusError      Status = "error"
)

// transitions lists every legal status move. An item enters processing from
// fetched, or from error when an operator re-triggers it; skipped and
// processed are final.
var transitions = map[Status][]Status{
	StatusFetched:    {StatusProcessing},
	StatusError:      {StatusProcessing},
	StatusProcessing: {StatusProcessed, StatusSkipped, StatusError},
}

// Valid reports whether the status is a known lifecycle value.
func (s Status) Valid() bool {
	switch s {
	case StatusFetched, StatusProcessing, StatusProcessed, StatusSkipped, StatusError:
		return true
	}
	return false
}

// Terminal reports whether the status ends a pipeline run.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusSkipped || s == StatusError
}

// Transition validates a status move and returns the target status.
func Transition(from, to Status) (Status, error) {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return to, nil
		}
	}
	return from, fmt.Errorf("illegal status transition %s -> %s", from, to)
}
