package core

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/repository"
)

func TestLedger_ArrivalOverwriteIsCorrectionPath(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ledger := NewAttendanceLedger(repo)
	workerID := uuid.New()

	_, err := ledger.ApplyArrival(context.Background(), workerID, fixtureDate, at(fixtureDate, 9, 40), true)
	require.NoError(t, err)

	// Re-applying overwrites rather than erroring.
	rec, err := ledger.ApplyArrival(context.Background(), workerID, fixtureDate, at(fixtureDate, 9, 5), false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusIn, rec.Status)

	stored, err := repo.GetAttendance(context.Background(), workerID, fixtureDate)
	require.NoError(t, err)
	assert.True(t, stored.ArrivalAt.Equal(at(fixtureDate, 9, 5)))
	assert.False(t, stored.Late)
}

func TestLedger_DepartureWithoutArrivalIsLoud(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ledger := NewAttendanceLedger(repo)

	err := ledger.ApplyDeparture(context.Background(), uuid.New(), fixtureDate, at(fixtureDate, 18, 0))
	assert.ErrorIs(t, err, ErrLedgerInvariant)
}

func TestIncidentRecorder_SwallowsWriteFailure(t *testing.T) {
	rec := NewIncidentRecorder(failingIncidentRepo{})

	// Must not panic or propagate.
	rec.Record(context.Background(), model.IncidentReplay, nil, nil, "double scan", at(fixtureDate, 9, 0))
}

// failingIncidentRepo breaks only the incident append.
type failingIncidentRepo struct {
	repository.Repository
}

func (failingIncidentRepo) AppendIncident(context.Context, *model.Incident) error {
	return assert.AnError
}
