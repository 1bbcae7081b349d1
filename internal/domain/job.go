package domain

import "time"

// MatchReason tells why a match job was enqueued.
type MatchReason string

// Match reasons.
const (
	MatchReasonCreated   MatchReason = "created"
	MatchReasonCompleted MatchReason = "completed"
	MatchReasonRescan    MatchReason = "rescan"
)

// MatchJob asks the dispatcher to find a courier for a pending delivery.
type MatchJob struct {
	DeliveryID string
	Reason     MatchReason
	EnqueuedAt time.Time
}
