package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/repository"
)

// IncidentRecorder appends audit entries for rejected or anomalous
// redemption attempts.
type IncidentRecorder struct {
	repo repository.Repository
}

func NewIncidentRecorder(repo repository.Repository) *IncidentRecorder {
	return &IncidentRecorder{repo: repo}
}

// Record appends one incident. A failed write is logged and swallowed:
// audit-logging failure must not block an attendance transaction that has
// already committed.
func (r *IncidentRecorder) Record(ctx context.Context, typ model.IncidentType, workerID *uuid.UUID, scannerID *string, description string, at time.Time) {
	inc := &model.Incident{
		ID:          uuid.New(),
		WorkerID:    workerID,
		ScannerID:   scannerID,
		Type:        typ,
		Description: description,
		OccurredAt:  at,
	}

	if err := r.repo.AppendIncident(ctx, inc); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("incident_type", string(typ)).Msg("Failed to append incident")
	}
}
