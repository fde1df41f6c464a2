package sge

import "strings"

// JobID is the scheduler-assigned identifier for one submitted job. Once
// parsed from the submission confirmation it is authoritative for the rest
// of the tracking session.
type JobID int

// StatusCode is the short state code from the qstat listing's state column.
type StatusCode string

const (
	// Running on a compute node.
	StatusRunning StatusCode = "r"
	// Queued, waiting for a slot.
	StatusQueued StatusCode = "qw"
	// Transferring; the job is on its way out of the queue.
	StatusTransferring StatusCode = "t"
	// Not in the listing at all, or the listing was empty. qstat drops jobs
	// shortly after they finish, so absence usually means completion.
	StatusUnknown StatusCode = "u"
)

// Transition classifies a status code for the tracking loop.
type Transition int

const (
	// Keep polling.
	TransitionWait Transition = iota
	// The scheduler marked the job errored. Terminal, no accounting check.
	TransitionErrored
	// Ambiguous completion: finished, crashed, or removed. Needs
	// classification against diagnostics and accounting.
	TransitionClassify
	// Outside the recognized set.
	TransitionInvalid
)

func (c StatusCode) Transition() Transition {
	switch {
	case c == StatusRunning || c == StatusQueued:
		return TransitionWait
	case strings.ContainsRune(string(c), 'E'):
		return TransitionErrored
	case c == StatusTransferring || c == StatusUnknown:
		return TransitionClassify
	default:
		return TransitionInvalid
	}
}
