package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendance.service/internal/core/model"
)

// MemoryRepository is a mutex-guarded in-memory Repository used by tests and
// local tooling. ConsumeToken performs the same redeem-if-unredeemed
// compare-and-set the Postgres implementation does.
type MemoryRepository struct {
	mu         sync.Mutex
	workers    map[uuid.UUID]model.Worker
	schedules  map[uuid.UUID]model.ScheduleConfig
	scanners   map[string]model.Scanner
	tokens     map[uuid.UUID]*model.Token
	attendance map[string]*model.AttendanceRecord
	incidents  []model.Incident
	deliveries map[uuid.UUID]*model.DeliveryAttempt
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		workers:    make(map[uuid.UUID]model.Worker),
		schedules:  make(map[uuid.UUID]model.ScheduleConfig),
		scanners:   make(map[string]model.Scanner),
		tokens:     make(map[uuid.UUID]*model.Token),
		attendance: make(map[string]*model.AttendanceRecord),
		deliveries: make(map[uuid.UUID]*model.DeliveryAttempt),
	}
}

// AddWorker seeds a worker.
func (r *MemoryRepository) AddWorker(w model.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[w.ID] = w
}

// SetSchedule seeds a tenant schedule config.
func (r *MemoryRepository) SetSchedule(cfg model.ScheduleConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[cfg.TenantID] = cfg
}

// AddScanner seeds a scan device.
func (r *MemoryRepository) AddScanner(s model.Scanner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanners[s.ID] = s
}

// Incidents returns a copy of the appended incidents.
func (r *MemoryRepository) Incidents() []model.Incident {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Incident, len(r.incidents))
	copy(out, r.incidents)
	return out
}

func (r *MemoryRepository) GetWorker(_ context.Context, id uuid.UUID) (*model.Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return nil, nil
	}
	cp := w
	return &cp, nil
}

func (r *MemoryRepository) GetScheduleConfig(_ context.Context, tenantID uuid.UUID) (*model.ScheduleConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.schedules[tenantID]
	if !ok {
		return nil, fmt.Errorf("no schedule config for tenant %s", tenantID)
	}
	cp := cfg
	return &cp, nil
}

func (r *MemoryRepository) GetScanner(_ context.Context, id string) (*model.Scanner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scanners[id]
	if !ok {
		return nil, nil
	}
	cp := s
	return &cp, nil
}

func (r *MemoryRepository) FindTokenBySecret(_ context.Context, secret string) (*model.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Secret == secret {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) FindOpenToken(_ context.Context, workerID uuid.UUID, date string, action model.ActionType, now time.Time) (*model.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.WorkerID == workerID && t.Date == date && t.Action == action &&
			t.RedeemedAt == nil && t.ValidUntil.After(now) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) UpsertToken(_ context.Context, t *model.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.tokens {
		if existing.WorkerID == t.WorkerID && existing.Date == t.Date && existing.Action == t.Action {
			t.ID = id
			t.RedeemedAt = nil
			cp := *t
			r.tokens[id] = &cp
			return nil
		}
	}
	cp := *t
	r.tokens[t.ID] = &cp
	return nil
}

func (r *MemoryRepository) ConsumeToken(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok || t.RedeemedAt != nil {
		return false, nil
	}
	t.RedeemedAt = &at
	return true, nil
}

func attendanceKey(workerID uuid.UUID, date string) string {
	return workerID.String() + "|" + date
}

func (r *MemoryRepository) GetAttendance(_ context.Context, workerID uuid.UUID, date string) (*model.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.attendance[attendanceKey(workerID, date)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *MemoryRepository) UpsertArrival(_ context.Context, rec *model.AttendanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := attendanceKey(rec.WorkerID, rec.Date)
	if existing, ok := r.attendance[key]; ok {
		existing.ArrivalAt = rec.ArrivalAt
		existing.Status = rec.Status
		existing.Late = rec.Late
		rec.ID = existing.ID
		return nil
	}
	cp := *rec
	r.attendance[key] = &cp
	return nil
}

func (r *MemoryRepository) SetDeparture(_ context.Context, workerID uuid.UUID, date string, at time.Time, status model.AttendanceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.attendance[attendanceKey(workerID, date)]
	if !ok || rec.ArrivalAt == nil {
		return ErrNoArrival
	}
	rec.DepartureAt = &at
	rec.Status = status
	return nil
}

func (r *MemoryRepository) AppendIncident(_ context.Context, inc *model.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incidents = append(r.incidents, *inc)
	return nil
}

func (r *MemoryRepository) CreateDeliveryAttempt(_ context.Context, a *model.DeliveryAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.deliveries[a.TokenID] = &cp
	return nil
}

func (r *MemoryRepository) GetDeliveryAttempt(_ context.Context, tokenID uuid.UUID) (*model.DeliveryAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.deliveries[tokenID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) UpdateDeliveryStatus(_ context.Context, tokenID uuid.UUID, status model.DeliveryStatus, retryCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.deliveries[tokenID]
	if !ok {
		return fmt.Errorf("no delivery attempt for token %s", tokenID)
	}
	a.Status = status
	a.RetryCount = retryCount
	return nil
}
