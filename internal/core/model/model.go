package model

import (
	"time"

	"github.com/google/uuid"
)

// ActionType is the kind of attendance event a token is bound to.
type ActionType string

const (
	ActionArrival   ActionType = "arrival"
	ActionDeparture ActionType = "departure"
)

// AttendanceStatus is the derived state of a daily attendance record.
type AttendanceStatus string

const (
	StatusIn     AttendanceStatus = "in"
	StatusLate   AttendanceStatus = "late"
	StatusOut    AttendanceStatus = "out"
	StatusAbsent AttendanceStatus = "absent"
)

// IncidentType classifies an anomalous or rejected attendance event.
type IncidentType string

const (
	IncidentInvalidToken      IncidentType = "invalid_token"
	IncidentInvalidScanner    IncidentType = "invalid_scanner"
	IncidentInactiveWorker    IncidentType = "inactive_worker"
	IncidentExpiredToken      IncidentType = "expired_token"
	IncidentEarlyScan         IncidentType = "early_scan"
	IncidentReplay            IncidentType = "replay"
	IncidentWrongAction       IncidentType = "wrong_action"
	IncidentAlreadyCheckedIn  IncidentType = "already_checked_in"
	IncidentMissingCheckin    IncidentType = "missing_checkin"
	IncidentAlreadyCheckedOut IncidentType = "already_checked_out"
	IncidentLateArrival       IncidentType = "late_arrival"
	IncidentEarlyDeparture    IncidentType = "early_departure"
	IncidentVeryLateDeparture IncidentType = "very_late_departure"
	IncidentDeliveryFailed    IncidentType = "delivery_failed"
)

// DeliveryStatus defines the state of a token delivery job.
type DeliveryStatus string

const (
	StatusDeliveryPending   DeliveryStatus = "PENDING"
	StatusDeliveryCompleted DeliveryStatus = "COMPLETED"
	StatusDeliveryFailed    DeliveryStatus = "FAILED"
)

// Worker is an employee tracked by the system. Workers are never deleted,
// only deactivated.
type Worker struct {
	ID          uuid.UUID     `json:"id"`
	TenantID    uuid.UUID     `json:"tenantId"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	Active      bool          `json:"active"`
	CustomStart *string       `json:"customStart,omitempty"` // "HH:MM"
	CustomEnd   *string       `json:"customEnd,omitempty"`   // "HH:MM"
	DayOff      *time.Weekday `json:"dayOff,omitempty"`
}

// DayOverride is a per-weekday schedule override. When enabled for the
// matching weekday it takes precedence over a worker's custom times.
type DayOverride struct {
	Weekday time.Weekday `json:"weekday"`
	Start   string       `json:"start"` // "HH:MM"
	End     string       `json:"end"`   // "HH:MM"
	Enabled bool         `json:"enabled"`
}

// ScheduleConfig holds a tenant's default working hours plus optional
// per-weekday overrides.
type ScheduleConfig struct {
	TenantID         uuid.UUID     `json:"tenantId"`
	DefaultStart     string        `json:"defaultStart"` // "HH:MM"
	DefaultEnd       string        `json:"defaultEnd"`   // "HH:MM"
	LateGraceMinutes int           `json:"lateGraceMinutes"`
	DayOverrides     []DayOverride `json:"dayOverrides,omitempty"`
}

// ResolvedSchedule is the effective schedule for one worker on one date,
// expressed as minutes of the civil day.
type ResolvedSchedule struct {
	StartMinute  int `json:"startMinute"`
	EndMinute    int `json:"endMinute"`
	GraceMinutes int `json:"graceMinutes"`
}

// Token is a single-use, time-boxed credential bound to one worker and one
// action type for one calendar date. Tokens are never deleted; redemption is
// the only mutation.
type Token struct {
	ID         uuid.UUID  `json:"id"`
	WorkerID   uuid.UUID  `json:"workerId"`
	Date       string     `json:"date"` // "2006-01-02" in the tenant's zone
	Action     ActionType `json:"action"`
	Secret     string     `json:"secret"`
	ValidFrom  time.Time  `json:"validFrom"`
	ValidUntil time.Time  `json:"validUntil"`
	RedeemedAt *time.Time `json:"redeemedAt,omitempty"`
}

// Consumable reports whether the token could still be redeemed at the given
// instant.
func (t *Token) Consumable(at time.Time) bool {
	return t.RedeemedAt == nil && !at.Before(t.ValidFrom) && !at.After(t.ValidUntil)
}

// AttendanceRecord is the single daily attendance row for a worker.
// Unique per (worker, date).
type AttendanceRecord struct {
	ID          uuid.UUID        `json:"id"`
	WorkerID    uuid.UUID        `json:"workerId"`
	Date        string           `json:"date"`
	ArrivalAt   *time.Time       `json:"arrivalAt,omitempty"`
	DepartureAt *time.Time       `json:"departureAt,omitempty"`
	Status      AttendanceStatus `json:"status"`
	Late        bool             `json:"late"`
}

// Incident is an append-only audit entry for a rejected or anomalous
// attendance event. WorkerID is nil when the token never resolved to one.
type Incident struct {
	ID          uuid.UUID    `json:"id"`
	WorkerID    *uuid.UUID   `json:"workerId,omitempty"`
	ScannerID   *string      `json:"scannerId,omitempty"`
	Type        IncidentType `json:"type"`
	Description string       `json:"description"`
	OccurredAt  time.Time    `json:"occurredAt"`
}

// DeliveryAttempt tracks the outbound delivery of one issued token. Retry
// bookkeeping lives here, not on the token.
type DeliveryAttempt struct {
	ID         uuid.UUID      `json:"id"`
	TokenID    uuid.UUID      `json:"tokenId"`
	Recipient  string         `json:"recipient"`
	Status     DeliveryStatus `json:"status"`
	RetryCount int            `json:"retryCount"`
}

// Scanner is a registered scan device.
type Scanner struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// DateOf formats t as a civil date string.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}
