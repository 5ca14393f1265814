package messaging

import (
	"time"

	"github.com/google/uuid"

	"attendance.service/internal/core/model"
)

// TokenIssuedEvent is the JSON payload sent via SQS for the delivery queue.
type TokenIssuedEvent struct {
	TokenID    uuid.UUID        `json:"tokenId"`
	WorkerID   uuid.UUID        `json:"workerId"`
	Recipient  string           `json:"recipient"`
	Secret     string           `json:"secret"`
	Action     model.ActionType `json:"action"`
	ValidFrom  time.Time        `json:"validFrom"`
	ValidUntil time.Time        `json:"validUntil"`
	OccurredAt time.Time        `json:"occurredAt"`
}
