package domain

import (
	"fmt"
	"slices"
	"time"
)

// Transition is a guarded lifecycle change. A store applies it atomically
// only when the document's current status is one of From and the lease
// guards below hold.
type Transition struct {
	// From lists the statuses the document must be in.
	From []DocumentStatus

	// To is the resulting status.
	To DocumentStatus

	// Owner, when set, must equal the document's current lease.
	Owner string

	// StaleBefore, when set, requires the current heartbeat to be older.
	StaleBefore time.Time

	// Lease is recorded when To is processing.
	Lease string

	// FailureReason is recorded when To is failed, cleared otherwise.
	FailureReason string

	// ChunkCount is recorded when To is ready.
	ChunkCount int

	// At is the transition time. It becomes ReadyAt when To is ready and
	// the heartbeat when To is processing.
	At time.Time
}

// BeginProcessing enters processing from uploaded or failed under lease.
func BeginProcessing(lease string, at time.Time) Transition {
	return Transition{
		From:  []DocumentStatus{StatusUploaded, StatusFailed},
		To:    StatusProcessing,
		Lease: lease,
		At:    at,
	}
}

// RenewLease moves the heartbeat of a lease forward.
func RenewLease(lease string, at time.Time) Transition {
	return Transition{
		From:  []DocumentStatus{StatusProcessing},
		To:    StatusProcessing,
		Owner: lease,
		Lease: lease,
		At:    at,
	}
}

// CompleteProcessing leaves processing for ready.
func CompleteProcessing(lease string, chunkCount int, at time.Time) Transition {
	return Transition{
		From:       []DocumentStatus{StatusProcessing},
		To:         StatusReady,
		Owner:      lease,
		ChunkCount: chunkCount,
		At:         at,
	}
}

// FailProcessing leaves processing for failed.
func FailProcessing(lease, reason string, at time.Time) Transition {
	return Transition{
		From:          []DocumentStatus{StatusProcessing},
		To:            StatusFailed,
		Owner:         lease,
		FailureReason: reason,
		At:            at,
	}
}

// ReclaimStale fails a processing document whose lease was last renewed
// before cutoff. Its holder is presumed gone.
func ReclaimStale(cutoff time.Time, reason string, at time.Time) Transition {
	return Transition{
		From:          []DocumentStatus{StatusProcessing},
		To:            StatusFailed,
		StaleBefore:   cutoff,
		FailureReason: reason,
		At:            at,
	}
}

// Allows reports whether the transition may start from doc.
func (t Transition) Allows(doc *Document) bool {
	if doc == nil || !slices.Contains(t.From, doc.Status) {
		return false
	}
	if t.Owner != "" && doc.Lease != t.Owner {
		return false
	}
	if !t.StaleBefore.IsZero() && !doc.HeartbeatAt.Before(t.StaleBefore) {
		return false
	}
	return true
}

// Apply mutates doc to reflect the transition. Callers check Allows first.
func (t Transition) Apply(doc *Document) {
	doc.Status = t.To
	doc.Lease = ""
	doc.HeartbeatAt = time.Time{}
	switch t.To {
	case StatusReady:
		at := t.At
		doc.ReadyAt = &at
		doc.ChunkCount = t.ChunkCount
		doc.FailureReason = ""
	case StatusFailed:
		doc.FailureReason = t.FailureReason
		doc.ChunkCount = 0
		doc.ReadyAt = nil
	case StatusProcessing:
		doc.FailureReason = ""
		doc.Lease = t.Lease
		doc.HeartbeatAt = t.At
	}
}

// Reject explains why the transition cannot start from doc.
func (t Transition) Reject(doc *Document) error {
	switch {
	case t.Owner != "" && (doc.Status != StatusProcessing || doc.Lease != t.Owner):
		return fmt.Errorf("%w: document %s is %s", ErrLeaseLost, doc.ID, doc.Status)
	case doc.Status == StatusProcessing:
		return ErrAlreadyProcessing
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, doc.Status, t.To)
	}
}
