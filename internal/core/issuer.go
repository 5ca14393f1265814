package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
)

// ErrWorkerNotFound is returned when the worker does not exist or belongs to
// another tenant. The two cases are deliberately indistinguishable to the
// caller.
var ErrWorkerNotFound = errors.New("worker not found")

// ErrWorkerDayOff is returned when tokens are requested for a worker's weekly
// day off. A day with no tokens stays implicitly absent in reporting.
var ErrWorkerDayOff = errors.New("worker has a day off on this date")

// WindowConfig holds the validity-window offsets around the scheduled
// boundary. Windows are asymmetric, wider after than before, so early
// arrivals and late departures are tolerated without indefinite drift.
type WindowConfig struct {
	ArrivalOpenBefore   time.Duration
	ArrivalCloseAfter   time.Duration
	DepartureOpenBefore time.Duration
	DepartureCloseAfter time.Duration
}

// TokenIssuer creates single-use attendance tokens and hands them to the
// delivery pipeline.
type TokenIssuer struct {
	repo      repository.Repository
	producer  messaging.QueueProducer
	incidents *IncidentRecorder
	clock     Clock
	windows   WindowConfig
	loc       *time.Location
}

// NewTokenIssuer wires up the issuer with its datastore, delivery producer
// and clock.
func NewTokenIssuer(repo repository.Repository, producer messaging.QueueProducer, incidents *IncidentRecorder, clock Clock, windows WindowConfig, loc *time.Location) *TokenIssuer {
	return &TokenIssuer{
		repo:      repo,
		producer:  producer,
		incidents: incidents,
		clock:     clock,
		windows:   windows,
		loc:       loc,
	}
}

// Issue creates tokens for today for the given worker. A nil action issues
// both an arrival and a departure token. Unless force is set, an unconsumed,
// non-expired token for the same (worker, date, action) is returned unchanged.
func (s *TokenIssuer) Issue(ctx context.Context, tenantID, workerID uuid.UUID, action *model.ActionType, force bool) ([]model.Token, error) {
	worker, err := s.repo.GetWorker(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load worker: %w", err)
	}
	if worker == nil || worker.TenantID != tenantID {
		return nil, ErrWorkerNotFound
	}

	cfg, err := s.repo.GetScheduleConfig(ctx, worker.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule config: %w", err)
	}

	now := s.clock.Now()
	date := model.DateOf(now)

	if worker.DayOff != nil && *worker.DayOff == now.Weekday() {
		return nil, ErrWorkerDayOff
	}

	sched, err := ResolveSchedule(*cfg, *worker, date)
	if err != nil {
		return nil, err
	}

	actions := []model.ActionType{model.ActionArrival, model.ActionDeparture}
	if action != nil {
		actions = []model.ActionType{*action}
	}

	tokens := make([]model.Token, 0, len(actions))
	for _, a := range actions {
		if !force {
			existing, err := s.repo.FindOpenToken(ctx, worker.ID, date, a, now)
			if err != nil {
				return nil, fmt.Errorf("failed to look up open token: %w", err)
			}
			if existing != nil {
				tokens = append(tokens, *existing)
				continue
			}
		}

		token, err := s.create(ctx, worker, date, a, sched)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}

	return tokens, nil
}

// create persists a fresh token and hands it to the delivery queue. Delivery
// hand-off failure is recorded but does not fail the issuance; the token is
// already valid.
func (s *TokenIssuer) create(ctx context.Context, worker *model.Worker, date string, action model.ActionType, sched model.ResolvedSchedule) (*model.Token, error) {
	secret, err := NewTokenSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token secret: %w", err)
	}

	validFrom, validUntil, err := s.window(date, action, sched)
	if err != nil {
		return nil, err
	}

	token := &model.Token{
		ID:         uuid.New(),
		WorkerID:   worker.ID,
		Date:       date,
		Action:     action,
		Secret:     secret,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
	}

	if err := s.repo.UpsertToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}

	attempt := &model.DeliveryAttempt{
		ID:        uuid.New(),
		TokenID:   token.ID,
		Recipient: worker.Email,
		Status:    model.StatusDeliveryPending,
	}
	if err := s.repo.CreateDeliveryAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to create delivery attempt: %w", err)
	}

	event := messaging.TokenIssuedEvent{
		TokenID:    token.ID,
		WorkerID:   worker.ID,
		Recipient:  worker.Email,
		Secret:     token.Secret,
		Action:     token.Action,
		ValidFrom:  token.ValidFrom,
		ValidUntil: token.ValidUntil,
		OccurredAt: s.clock.Now(),
	}
	if err := s.producer.PublishDelivery(ctx, event); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("token_id", token.ID.String()).Msg("Failed to publish delivery event")
		s.incidents.Record(ctx, model.IncidentDeliveryFailed, &worker.ID, nil,
			fmt.Sprintf("delivery hand-off failed for %s token", action), s.clock.Now())
	}

	return token, nil
}

// window brackets the scheduled boundary for the action.
func (s *TokenIssuer) window(date string, action model.ActionType, sched model.ResolvedSchedule) (time.Time, time.Time, error) {
	var anchorMinute int
	var before, after time.Duration

	switch action {
	case model.ActionArrival:
		anchorMinute = sched.StartMinute
		before, after = s.windows.ArrivalOpenBefore, s.windows.ArrivalCloseAfter
	case model.ActionDeparture:
		anchorMinute = sched.EndMinute
		before, after = s.windows.DepartureOpenBefore, s.windows.DepartureCloseAfter
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown action type %q", action)
	}

	anchor, err := AtMinute(date, anchorMinute, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return anchor.Add(-before), anchor.Add(after), nil
}

// NewTokenSecret returns 32 bytes of CSPRNG entropy as unpadded URL-safe
// base64. Secrets are the sole credential on the redemption surface, so they
// must not be guessable or enumerable.
func NewTokenSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
