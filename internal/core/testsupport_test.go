package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/repository"
)

// fixedClock pins Now for deterministic window and lateness checks.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// capturingProducer records published delivery events and can be told to fail.
type capturingProducer struct {
	mu     sync.Mutex
	events []interface{}
	fail   bool
}

func (p *capturingProducer) PublishDelivery(_ context.Context, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("queue unavailable")
	}
	p.events = append(p.events, body)
	return nil
}

func (p *capturingProducer) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

var bucharest = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Bucharest")
	if err != nil {
		panic(err)
	}
	return loc
}()

// at builds an instant on the fixture date in the fixture zone.
func at(date string, hour, minute int) time.Time {
	day, err := time.ParseInLocation("2006-01-02", date, bucharest)
	if err != nil {
		panic(err)
	}
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type fixture struct {
	repo      *repository.MemoryRepository
	clock     *fixedClock
	producer  *capturingProducer
	issuer    *TokenIssuer
	redeemer  *TokenRedeemer
	incidents *IncidentRecorder
	tenantID  uuid.UUID
	worker    model.Worker
}

// newFixture seeds a tenant with 09:00-18:00 default hours, 15 minutes of
// grace, and one active worker.
func newFixture(date string, hour, minute int) *fixture {
	tenantID := uuid.New()
	worker := model.Worker{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     "Maria Ionescu",
		Email:    "maria@example.com",
		Active:   true,
	}

	repo := repository.NewMemoryRepository()
	repo.AddWorker(worker)
	repo.SetSchedule(model.ScheduleConfig{
		TenantID:         tenantID,
		DefaultStart:     "09:00",
		DefaultEnd:       "18:00",
		LateGraceMinutes: 15,
	})

	clock := &fixedClock{t: at(date, hour, minute)}
	producer := &capturingProducer{}
	incidents := NewIncidentRecorder(repo)
	ledger := NewAttendanceLedger(repo)

	windows := WindowConfig{
		ArrivalOpenBefore:   45 * time.Minute,
		ArrivalCloseAfter:   150 * time.Minute,
		DepartureOpenBefore: 90 * time.Minute,
		DepartureCloseAfter: 120 * time.Minute,
	}

	return &fixture{
		repo:      repo,
		clock:     clock,
		producer:  producer,
		issuer:    NewTokenIssuer(repo, producer, incidents, clock, windows, bucharest),
		redeemer:  NewTokenRedeemer(repo, ledger, incidents, clock, 30*time.Minute),
		incidents: incidents,
		tenantID:  tenantID,
		worker:    worker,
	}
}

// incidentTypes lists the recorded incident types in order.
func (f *fixture) incidentTypes() []model.IncidentType {
	var out []model.IncidentType
	for _, inc := range f.repo.Incidents() {
		out = append(out, inc.Type)
	}
	return out
}
