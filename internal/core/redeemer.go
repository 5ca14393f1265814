package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/repository"
)

// Rejection is the typed failure of a redemption attempt. Exactly one
// incident is recorded per rejection; the reason is the first ordered check
// that failed.
type Rejection struct {
	Reason     model.IncidentType
	WorkerName string
}

func (r *Rejection) Error() string {
	return string(r.Reason)
}

// RedeemResult describes a successful redemption.
type RedeemResult struct {
	Action           model.ActionType       `json:"action"`
	Status           model.AttendanceStatus `json:"status"`
	WorkerName       string                 `json:"workerName"`
	IsLate           bool                   `json:"isLate"`
	IsEarlyDeparture bool                   `json:"isEarlyDeparture"`
	Timestamp        time.Time              `json:"timestamp"`
}

// TokenRedeemer consumes presented tokens. All scan entry points funnel into
// Redeem; there is no other redemption path.
type TokenRedeemer struct {
	repo          repository.Repository
	ledger        *AttendanceLedger
	incidents     *IncidentRecorder
	clock         Clock
	veryLateAfter time.Duration
}

func NewTokenRedeemer(repo repository.Repository, ledger *AttendanceLedger, incidents *IncidentRecorder, clock Clock, veryLateAfter time.Duration) *TokenRedeemer {
	return &TokenRedeemer{
		repo:          repo,
		ledger:        ledger,
		incidents:     incidents,
		clock:         clock,
		veryLateAfter: veryLateAfter,
	}
}

// Redeem validates a presented secret through the ordered check chain and,
// when every check passes, atomically consumes the token and applies it to
// the attendance ledger. The first failing check determines the rejection
// reason and logs the only incident for the attempt.
func (s *TokenRedeemer) Redeem(ctx context.Context, secret string, scannerID *string, expected *model.ActionType) (*RedeemResult, error) {
	now := s.clock.Now()

	// 1. Secret resolves to a token.
	token, err := s.repo.FindTokenBySecret(ctx, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}
	if token == nil {
		return s.reject(ctx, model.IncidentInvalidToken, nil, scannerID, "", "unknown token secret", now)
	}

	// 2. Scanner, when it identifies itself, is known and active.
	if scannerID != nil {
		scanner, err := s.repo.GetScanner(ctx, *scannerID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve scanner: %w", err)
		}
		if scanner == nil || !scanner.Active {
			return s.reject(ctx, model.IncidentInvalidScanner, &token.WorkerID, scannerID, "",
				fmt.Sprintf("scan from unknown or inactive scanner %q", *scannerID), now)
		}
	}

	// 3. Worker is active.
	worker, err := s.repo.GetWorker(ctx, token.WorkerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load worker: %w", err)
	}
	if worker == nil || !worker.Active {
		name := ""
		if worker != nil {
			name = worker.Name
		}
		return s.reject(ctx, model.IncidentInactiveWorker, &token.WorkerID, scannerID, name,
			"token presented for inactive worker", now)
	}

	// 4. Token date is today's civil date in the tenant zone.
	if token.Date != model.DateOf(now) {
		return s.reject(ctx, model.IncidentExpiredToken, &worker.ID, scannerID, worker.Name,
			fmt.Sprintf("token for %s presented on %s", token.Date, model.DateOf(now)), now)
	}

	// 5. Token not already redeemed. A consumed token is rejected even while
	// its window is still open.
	if token.RedeemedAt != nil {
		return s.reject(ctx, model.IncidentReplay, &worker.ID, scannerID, worker.Name,
			fmt.Sprintf("token already redeemed at %s", token.RedeemedAt.Format(time.RFC3339)), now)
	}

	// 5b. Declared action, when the scanner sends one, matches the token.
	if expected != nil && *expected != token.Action {
		return s.reject(ctx, model.IncidentWrongAction, &worker.ID, scannerID, worker.Name,
			fmt.Sprintf("%s token presented at a %s scan point", token.Action, *expected), now)
	}

	// 6. Current time inside the validity window.
	if now.Before(token.ValidFrom) {
		return s.reject(ctx, model.IncidentEarlyScan, &worker.ID, scannerID, worker.Name,
			fmt.Sprintf("scan at %s before window opens at %s", now.Format(time.RFC3339), token.ValidFrom.Format(time.RFC3339)), now)
	}
	if now.After(token.ValidUntil) {
		return s.reject(ctx, model.IncidentExpiredToken, &worker.ID, scannerID, worker.Name,
			fmt.Sprintf("scan at %s after window closed at %s", now.Format(time.RFC3339), token.ValidUntil.Format(time.RFC3339)), now)
	}

	// 7. Logical ordering against today's attendance record.
	record, err := s.repo.GetAttendance(ctx, worker.ID, token.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance record: %w", err)
	}
	switch token.Action {
	case model.ActionArrival:
		if record != nil && record.ArrivalAt != nil {
			return s.reject(ctx, model.IncidentAlreadyCheckedIn, &worker.ID, scannerID, worker.Name,
				"arrival already recorded for today", now)
		}
	case model.ActionDeparture:
		if record == nil || record.ArrivalAt == nil {
			return s.reject(ctx, model.IncidentMissingCheckin, &worker.ID, scannerID, worker.Name,
				"departure without a recorded arrival", now)
		}
		if record.DepartureAt != nil {
			return s.reject(ctx, model.IncidentAlreadyCheckedOut, &worker.ID, scannerID, worker.Name,
				"departure already recorded for today", now)
		}
	}

	// Resolve the schedule before consuming the token so a config problem
	// cannot strand a half-redeemed token.
	cfg, err := s.repo.GetScheduleConfig(ctx, worker.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule config: %w", err)
	}
	sched, err := ResolveSchedule(*cfg, *worker, token.Date)
	if err != nil {
		return nil, err
	}

	// 8. Atomic consume. The conditional write is the sole synchronization
	// primitive; the loser of a concurrent scan sees a no-op here.
	won, err := s.repo.ConsumeToken(ctx, token.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to consume token: %w", err)
	}
	if !won {
		return s.reject(ctx, model.IncidentReplay, &worker.ID, scannerID, worker.Name,
			"lost concurrent redemption race", now)
	}

	switch token.Action {
	case model.ActionArrival:
		return s.applyArrival(ctx, worker, token.Date, now, sched, scannerID)
	default:
		return s.applyDeparture(ctx, worker, token.Date, now, sched, scannerID)
	}
}

func (s *TokenRedeemer) applyArrival(ctx context.Context, worker *model.Worker, date string, now time.Time, sched model.ResolvedSchedule, scannerID *string) (*RedeemResult, error) {
	isLate := MinuteOfDay(now) > sched.StartMinute+sched.GraceMinutes

	rec, err := s.ledger.ApplyArrival(ctx, worker.ID, date, now, isLate)
	if err != nil {
		return nil, err
	}

	if isLate {
		s.incidents.Record(ctx, model.IncidentLateArrival, &worker.ID, scannerID,
			fmt.Sprintf("arrival at %s, %d minutes past grace", now.Format("15:04"),
				MinuteOfDay(now)-sched.StartMinute-sched.GraceMinutes), now)
	}

	return &RedeemResult{
		Action:     model.ActionArrival,
		Status:     rec.Status,
		WorkerName: worker.Name,
		IsLate:     isLate,
		Timestamp:  now,
	}, nil
}

func (s *TokenRedeemer) applyDeparture(ctx context.Context, worker *model.Worker, date string, now time.Time, sched model.ResolvedSchedule, scannerID *string) (*RedeemResult, error) {
	minute := MinuteOfDay(now)
	isEarly := minute < sched.EndMinute
	isVeryLate := time.Duration(minute-sched.EndMinute)*time.Minute > s.veryLateAfter

	if err := s.ledger.ApplyDeparture(ctx, worker.ID, date, now); err != nil {
		return nil, err
	}

	// Observational audit records; the redemption itself already succeeded.
	if isEarly {
		s.incidents.Record(ctx, model.IncidentEarlyDeparture, &worker.ID, scannerID,
			fmt.Sprintf("departure at %s, %d minutes before scheduled end", now.Format("15:04"), sched.EndMinute-minute), now)
	}
	if isVeryLate {
		s.incidents.Record(ctx, model.IncidentVeryLateDeparture, &worker.ID, scannerID,
			fmt.Sprintf("departure at %s, %d minutes after scheduled end", now.Format("15:04"), minute-sched.EndMinute), now)
	}

	return &RedeemResult{
		Action:           model.ActionDeparture,
		Status:           model.StatusOut,
		WorkerName:       worker.Name,
		IsEarlyDeparture: isEarly,
		Timestamp:        now,
	}, nil
}

func (s *TokenRedeemer) reject(ctx context.Context, reason model.IncidentType, workerID *uuid.UUID, scannerID *string, workerName, description string, now time.Time) (*RedeemResult, error) {
	s.incidents.Record(ctx, reason, workerID, scannerID, description, now)
	return nil, &Rejection{Reason: reason, WorkerName: workerName}
}
