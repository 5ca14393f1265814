package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"attendance.service/internal/core/model"
)

// ErrNoArrival is returned when a departure update finds no attendance row
// with an arrival set. The redeemer's ordered checks make this unreachable
// in normal operation.
var ErrNoArrival = errors.New("no attendance record with an arrival for worker/date")

// PostgresRepository is the concrete implementation for a PostgreSQL database.
type PostgresRepository struct {
	DB *sql.DB
}

// NewPostgresRepository create new instance
func NewPostgresRepository(db *sql.DB) Repository {
	return &PostgresRepository{DB: db}
}

// GetWorker fetches a worker by ID. Returns nil when the worker is unknown.
func (r *PostgresRepository) GetWorker(ctx context.Context, id uuid.UUID) (*model.Worker, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.worker_id", id.String()))

	w := &model.Worker{}
	var customStart, customEnd sql.NullString
	var dayOff sql.NullInt64

	query := `SELECT id, tenant_id, name, email, active, custom_start, custom_end, day_off
              FROM workers WHERE id = $1`

	row := r.DB.QueryRowContext(ctx, query, id)
	err := row.Scan(&w.ID, &w.TenantID, &w.Name, &w.Email, &w.Active, &customStart, &customEnd, &dayOff)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if customStart.Valid {
		w.CustomStart = &customStart.String
	}
	if customEnd.Valid {
		w.CustomEnd = &customEnd.String
	}
	if dayOff.Valid {
		d := time.Weekday(dayOff.Int64)
		w.DayOff = &d
	}
	return w, nil
}

// GetScheduleConfig fetches tenant defaults plus any per-weekday overrides.
func (r *PostgresRepository) GetScheduleConfig(ctx context.Context, tenantID uuid.UUID) (*model.ScheduleConfig, error) {
	cfg := &model.ScheduleConfig{}

	query := `SELECT tenant_id, default_start, default_end, late_grace_minutes
              FROM schedule_configs WHERE tenant_id = $1`

	err := r.DB.QueryRowContext(ctx, query, tenantID).Scan(
		&cfg.TenantID, &cfg.DefaultStart, &cfg.DefaultEnd, &cfg.LateGraceMinutes,
	)
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT weekday, start_time, end_time, enabled
         FROM schedule_day_overrides WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var o model.DayOverride
		var weekday int
		if err := rows.Scan(&weekday, &o.Start, &o.End, &o.Enabled); err != nil {
			return nil, err
		}
		o.Weekday = time.Weekday(weekday)
		cfg.DayOverrides = append(cfg.DayOverrides, o)
	}
	return cfg, rows.Err()
}

// GetScanner fetches a registered scan device. Returns nil when unknown.
func (r *PostgresRepository) GetScanner(ctx context.Context, id string) (*model.Scanner, error) {
	s := &model.Scanner{}
	query := `SELECT id, label, active FROM scanners WHERE id = $1`

	err := r.DB.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Label, &s.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FindTokenBySecret resolves a presented secret to its token row.
// Returns nil when no token matches.
func (r *PostgresRepository) FindTokenBySecret(ctx context.Context, secret string) (*model.Token, error) {
	return r.scanToken(r.DB.QueryRowContext(ctx,
		`SELECT id, worker_id, date, action, secret, valid_from, valid_until, redeemed_at
         FROM tokens WHERE secret = $1`, secret))
}

// FindOpenToken finds an unredeemed, non-expired token for (worker, date, action).
func (r *PostgresRepository) FindOpenToken(ctx context.Context, workerID uuid.UUID, date string, action model.ActionType, now time.Time) (*model.Token, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.worker_id", workerID.String()))

	return r.scanToken(r.DB.QueryRowContext(ctx,
		`SELECT id, worker_id, date, action, secret, valid_from, valid_until, redeemed_at
         FROM tokens
         WHERE worker_id = $1 AND date = $2 AND action = $3
           AND redeemed_at IS NULL AND valid_until > $4`,
		workerID, date, action, now))
}

func (r *PostgresRepository) scanToken(row *sql.Row) (*model.Token, error) {
	t := &model.Token{}
	var redeemedAt sql.NullTime

	err := row.Scan(&t.ID, &t.WorkerID, &t.Date, &t.Action, &t.Secret,
		&t.ValidFrom, &t.ValidUntil, &redeemedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if redeemedAt.Valid {
		t.RedeemedAt = &redeemedAt.Time
	}
	return t, nil
}

// UpsertToken persists a token. Reissuing for the same (worker, date, action)
// overwrites the secret and window and clears any prior redemption mark.
func (r *PostgresRepository) UpsertToken(ctx context.Context, t *model.Token) error {
	query := `INSERT INTO tokens (id, worker_id, date, action, secret, valid_from, valid_until, redeemed_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
              ON CONFLICT (worker_id, date, action)
              DO UPDATE SET secret = EXCLUDED.secret,
                            valid_from = EXCLUDED.valid_from,
                            valid_until = EXCLUDED.valid_until,
                            redeemed_at = NULL
              RETURNING id`

	return r.DB.QueryRowContext(ctx, query,
		t.ID, t.WorkerID, t.Date, t.Action, t.Secret, t.ValidFrom, t.ValidUntil,
	).Scan(&t.ID)
}

// ConsumeToken is the atomic redeem-if-unredeemed transition. The WHERE
// clause on redeemed_at IS NULL makes it a compare-and-set; the loser of a
// concurrent race observes zero rows affected.
func (r *PostgresRepository) ConsumeToken(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE tokens SET redeemed_at = $1 WHERE id = $2 AND redeemed_at IS NULL`

	res, err := r.DB.ExecContext(ctx, query, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetAttendance fetches the daily record for (worker, date). Returns nil
// when the worker has no record for that date.
func (r *PostgresRepository) GetAttendance(ctx context.Context, workerID uuid.UUID, date string) (*model.AttendanceRecord, error) {
	rec := &model.AttendanceRecord{}
	var arrival, departure sql.NullTime

	query := `SELECT id, worker_id, date, arrival_at, departure_at, status, late
              FROM attendance_records WHERE worker_id = $1 AND date = $2`

	err := r.DB.QueryRowContext(ctx, query, workerID, date).Scan(
		&rec.ID, &rec.WorkerID, &rec.Date, &arrival, &departure, &rec.Status, &rec.Late,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if arrival.Valid {
		rec.ArrivalAt = &arrival.Time
	}
	if departure.Valid {
		rec.DepartureAt = &departure.Time
	}
	return rec, nil
}

// UpsertArrival creates the daily record, or overwrites the arrival fields
// when a record already exists (administrative correction path). The unique
// constraint on (worker_id, date) enforces one record per worker per day.
func (r *PostgresRepository) UpsertArrival(ctx context.Context, rec *model.AttendanceRecord) error {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.worker_id", rec.WorkerID.String()))

	query := `INSERT INTO attendance_records (id, worker_id, date, arrival_at, status, late)
              VALUES ($1, $2, $3, $4, $5, $6)
              ON CONFLICT (worker_id, date)
              DO UPDATE SET arrival_at = EXCLUDED.arrival_at,
                            status = EXCLUDED.status,
                            late = EXCLUDED.late
              RETURNING id`

	return r.DB.QueryRowContext(ctx, query,
		rec.ID, rec.WorkerID, rec.Date, rec.ArrivalAt, rec.Status, rec.Late,
	).Scan(&rec.ID)
}

// SetDeparture sets the departure fields on an existing record that already
// has an arrival. Returns ErrNoArrival when no such record exists.
func (r *PostgresRepository) SetDeparture(ctx context.Context, workerID uuid.UUID, date string, at time.Time, status model.AttendanceStatus) error {
	query := `UPDATE attendance_records
              SET departure_at = $1, status = $2
              WHERE worker_id = $3 AND date = $4 AND arrival_at IS NOT NULL`

	res, err := r.DB.ExecContext(ctx, query, at, status, workerID, date)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoArrival
	}
	return nil
}

// AppendIncident appends one audit entry. Incident rows are never updated.
func (r *PostgresRepository) AppendIncident(ctx context.Context, inc *model.Incident) error {
	query := `INSERT INTO incidents (id, worker_id, scanner_id, type, description, occurred_at)
              VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.DB.ExecContext(ctx, query,
		inc.ID, inc.WorkerID, inc.ScannerID, inc.Type, inc.Description, inc.OccurredAt)
	return err
}

// CreateDeliveryAttempt records a pending delivery for a freshly issued token.
// Reissuing resets the existing attempt.
func (r *PostgresRepository) CreateDeliveryAttempt(ctx context.Context, a *model.DeliveryAttempt) error {
	query := `INSERT INTO token_deliveries (id, token_id, recipient, status, retry_count)
              VALUES ($1, $2, $3, $4, 0)
              ON CONFLICT (token_id)
              DO UPDATE SET recipient = EXCLUDED.recipient,
                            status = EXCLUDED.status,
                            retry_count = 0`

	_, err := r.DB.ExecContext(ctx, query, a.ID, a.TokenID, a.Recipient, a.Status)
	return err
}

// GetDeliveryAttempt fetches the delivery row for a token.
func (r *PostgresRepository) GetDeliveryAttempt(ctx context.Context, tokenID uuid.UUID) (*model.DeliveryAttempt, error) {
	a := &model.DeliveryAttempt{}
	query := `SELECT id, token_id, recipient, status, retry_count
              FROM token_deliveries WHERE token_id = $1`

	err := r.DB.QueryRowContext(ctx, query, tokenID).Scan(
		&a.ID, &a.TokenID, &a.Recipient, &a.Status, &a.RetryCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateDeliveryStatus updates the status and retry count for a delivery job.
func (r *PostgresRepository) UpdateDeliveryStatus(ctx context.Context, tokenID uuid.UUID, status model.DeliveryStatus, retryCount int) error {
	query := `UPDATE token_deliveries SET status = $1, retry_count = $2 WHERE token_id = $3`
	_, err := r.DB.ExecContext(ctx, query, status, retryCount, tokenID)
	return err
}
