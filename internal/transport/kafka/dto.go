package kafka

import (
	"strings"
	"time"

	"courier-dispatch/internal/domain"
)

// MatchJobDTO is the wire form of domain.MatchJob.
type MatchJobDTO struct {
	DeliveryID string    `json:"delivery_id"`
	Reason     string    `json:"reason"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ToDomain converts MatchJobDTO to domain.MatchJob.
func ToDomain(dto MatchJobDTO) domain.MatchJob {
	return domain.MatchJob{
		DeliveryID: strings.TrimSpace(dto.DeliveryID),
		Reason:     domain.MatchReason(strings.TrimSpace(dto.Reason)),
		EnqueuedAt: dto.EnqueuedAt,
	}
}

// FromDomain converts domain.MatchJob to its wire form.
func FromDomain(job domain.MatchJob) MatchJobDTO {
	return MatchJobDTO{
		DeliveryID: job.DeliveryID,
		Reason:     string(job.Reason),
		EnqueuedAt: job.EnqueuedAt.UTC(),
	}
}
