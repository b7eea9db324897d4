// Package lifecycle classifies status labels of experiments and states of datasets.
//
// The server assigns free-form labels. Only COMPLETED, FAILED, ERROR and CANCELLED
// are known to be terminal; any other label means the resource is still in progress.
package lifecycle

const (
	Completed = "COMPLETED"
	Failed    = "FAILED"
	Error     = "ERROR"
	Cancelled = "CANCELLED"
)

// Phase of a polled resource, as seen by the client.
type Phase int

const (
	// not observed yet. A dataset may be missing in listings just after creation.
	Pending Phase = iota
	InProgress
	Succeeded
	Failure
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "PENDING"
	case InProgress:
		return "IN_PROGRESS"
	case Succeeded:
		return "SUCCEEDED"
	case Failure:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports that no more transitions happen after the phase.
func (p Phase) Terminal() bool {
	return p == Succeeded || p == Failure
}

// Classify a status label.
//
// # Args
//
// - status: the label. Compared exactly (case-sensitive).
//
// - observed: false if the resource has not been found. Then status is ignored.
func Classify(status string, observed bool) Phase {
	if !observed {
		return Pending
	}
	switch status {
	case Completed:
		return Succeeded
	case Failed, Error, Cancelled:
		return Failure
	default:
		return InProgress
	}
}
