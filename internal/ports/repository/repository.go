package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"attendance.service/internal/core/model"
)

// Repository contract
type Repository interface {
	GetWorker(ctx context.Context, id uuid.UUID) (*model.Worker, error)
	GetScheduleConfig(ctx context.Context, tenantID uuid.UUID) (*model.ScheduleConfig, error)
	GetScanner(ctx context.Context, id string) (*model.Scanner, error)

	FindTokenBySecret(ctx context.Context, secret string) (*model.Token, error)
	FindOpenToken(ctx context.Context, workerID uuid.UUID, date string, action model.ActionType, now time.Time) (*model.Token, error)
	UpsertToken(ctx context.Context, t *model.Token) error
	// ConsumeToken marks the token redeemed only if it is not redeemed yet.
	// It reports whether this call won the transition. This is the single
	// conditional write the redemption path relies on; two concurrent calls
	// for the same token produce at most one true.
	ConsumeToken(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	GetAttendance(ctx context.Context, workerID uuid.UUID, date string) (*model.AttendanceRecord, error)
	UpsertArrival(ctx context.Context, rec *model.AttendanceRecord) error
	SetDeparture(ctx context.Context, workerID uuid.UUID, date string, at time.Time, status model.AttendanceStatus) error

	AppendIncident(ctx context.Context, inc *model.Incident) error

	CreateDeliveryAttempt(ctx context.Context, a *model.DeliveryAttempt) error
	GetDeliveryAttempt(ctx context.Context, tokenID uuid.UUID) (*model.DeliveryAttempt, error)
	UpdateDeliveryStatus(ctx context.Context, tokenID uuid.UUID, status model.DeliveryStatus, retryCount int) error
}
