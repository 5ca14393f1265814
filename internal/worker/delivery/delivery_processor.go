package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"attendance.service/internal/core"
	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
)

// DeliveryProcessor handles jobs from the delivery queue: sending an issued
// token to its worker's address. A circuit breaker guards the mail provider
// so an outage does not turn into a retry storm.
type DeliveryProcessor struct {
	repo       repository.Repository
	mailer     core.DeliveryService
	incidents  *core.IncidentRecorder
	maxRetries int
	cb         *gobreaker.CircuitBreaker
}

// NewProcessor creates a new processor for the delivery queue.
func NewProcessor(repo repository.Repository, mailer core.DeliveryService, incidents *core.IncidentRecorder, maxRetries int) *DeliveryProcessor {
	settings := gobreaker.Settings{
		Name:        "Token-Mailer",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip if failure rate is bigger than 50% after at least 10 requests
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
	}

	return &DeliveryProcessor{
		repo:       repo,
		mailer:     mailer,
		incidents:  incidents,
		maxRetries: maxRetries,
		cb:         gobreaker.NewCircuitBreaker(settings),
	}
}

// Process handles one message from the delivery queue. Retries are bounded:
// the count is persisted on the delivery attempt row and once it passes the
// cap the job is marked failed for good. The token itself stays valid either
// way.
func (p *DeliveryProcessor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	var event messaging.TokenIssuedEvent
	if err := json.Unmarshal([]byte(*msg.Body), &event); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to unmarshal delivery event")
		return false, 0, err // Do not retry on malformed message
	}

	attempt, err := p.repo.GetDeliveryAttempt(ctx, event.TokenID)
	if err != nil {
		// If we can't read the attempt row, retry after a short delay.
		return true, 10, fmt.Errorf("failed to get delivery attempt: %w", err)
	}
	if attempt == nil {
		return false, 0, fmt.Errorf("no delivery attempt for token %s", event.TokenID)
	}

	if attempt.Status == model.StatusDeliveryCompleted {
		log.Ctx(ctx).Info().Str("token_id", event.TokenID.String()).Msg("Token already delivered. Skipping.")
		return false, 0, nil
	}

	if attempt.RetryCount >= p.maxRetries {
		p.giveUp(ctx, event, attempt.RetryCount)
		return false, 0, nil
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.mailer.SendToken(ctx, attempt.Recipient, event)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			log.Ctx(ctx).Warn().Msg("Circuit breaker is OPEN; skipping mail provider call")
		}
		newCount := attempt.RetryCount + 1
		p.repo.UpdateDeliveryStatus(ctx, event.TokenID, model.StatusDeliveryPending, newCount)

		delay := calculateBackoff(newCount)
		return true, delay, err
	}

	err = p.repo.UpdateDeliveryStatus(ctx, event.TokenID, model.StatusDeliveryCompleted, 0)
	return false, 0, err
}

// giveUp marks the delivery failed and leaves an audit trail. Delivery
// failure never invalidates the token.
func (p *DeliveryProcessor) giveUp(ctx context.Context, event messaging.TokenIssuedEvent, retries int) {
	if err := p.repo.UpdateDeliveryStatus(ctx, event.TokenID, model.StatusDeliveryFailed, retries); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("token_id", event.TokenID.String()).Msg("Failed to mark delivery as failed")
	}

	workerID := event.WorkerID
	p.incidents.Record(ctx, model.IncidentDeliveryFailed, &workerID, nil,
		fmt.Sprintf("giving up token delivery to %s after %d retries", event.Recipient, retries), time.Now())

	log.Ctx(ctx).Error().
		Str("token_id", event.TokenID.String()).
		Int("retries", retries).
		Msg("Delivery retries exhausted")
}

// calculateBackoff determines how long to wait before retrying a failed job.
// It increases the delay exponentially with each retry to avoid overwhelming
// a struggling mail provider.
func calculateBackoff(retryCount int) int32 {
	backoff := int32(math.Pow(2, float64(retryCount)) * 10)
	if backoff > 3600 {
		return 3600 // max at 1 hour
	}
	return backoff
}
