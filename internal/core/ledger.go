package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/repository"
)

// ErrLedgerInvariant signals that the ledger was asked to apply a departure
// with no prior arrival on file. The redeemer's ordered checks should make
// this unreachable, so it is surfaced loudly instead of defaulted away.
var ErrLedgerInvariant = errors.New("attendance ledger invariant violated")

// AttendanceLedger applies successful redemptions to the daily attendance
// records. It is the only component that writes them.
type AttendanceLedger struct {
	repo repository.Repository
}

func NewAttendanceLedger(repo repository.Repository) *AttendanceLedger {
	return &AttendanceLedger{repo: repo}
}

// ApplyArrival upserts the daily record with the arrival. An existing record
// is overwritten rather than rejected; that path is the administrative
// correction route, normal scans never reach it.
func (l *AttendanceLedger) ApplyArrival(ctx context.Context, workerID uuid.UUID, date string, at time.Time, isLate bool) (*model.AttendanceRecord, error) {
	status := model.StatusIn
	if isLate {
		status = model.StatusLate
	}

	rec := &model.AttendanceRecord{
		ID:        uuid.New(),
		WorkerID:  workerID,
		Date:      date,
		ArrivalAt: &at,
		Status:    status,
		Late:      isLate,
	}

	if err := l.repo.UpsertArrival(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to upsert arrival: %w", err)
	}
	return rec, nil
}

// ApplyDeparture sets the departure on the existing record. Lateness already
// recorded on the arrival is kept.
func (l *AttendanceLedger) ApplyDeparture(ctx context.Context, workerID uuid.UUID, date string, at time.Time) error {
	err := l.repo.SetDeparture(ctx, workerID, date, at, model.StatusOut)
	if errors.Is(err, repository.ErrNoArrival) {
		return fmt.Errorf("%w: departure for %s on %s without arrival", ErrLedgerInvariant, workerID, date)
	}
	if err != nil {
		return fmt.Errorf("failed to set departure: %w", err)
	}
	return nil
}
