package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance.service/internal/core/model"
)

func issueOne(t *testing.T, f *fixture, action model.ActionType) model.Token {
	t.Helper()
	tokens, err := f.issuer.Issue(context.Background(), f.tenantID, f.worker.ID, &action, false)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	return tokens[0]
}

func requireRejection(t *testing.T, err error, reason model.IncidentType) *Rejection {
	t.Helper()
	var rejection *Rejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, reason, rejection.Reason)
	return rejection
}

func TestRedeem_UnknownSecret(t *testing.T) {
	f := newFixture(fixtureDate, 9, 0)

	_, err := f.redeemer.Redeem(context.Background(), "no-such-secret", nil, nil)
	rejection := requireRejection(t, err, model.IncidentInvalidToken)
	assert.Empty(t, rejection.WorkerName)

	incidents := f.repo.Incidents()
	require.Len(t, incidents, 1, "exactly one incident per attempt")
	assert.Equal(t, model.IncidentInvalidToken, incidents[0].Type)
	assert.Nil(t, incidents[0].WorkerID, "no resolvable worker on an unknown secret")
}

func TestRedeem_ScannerChecks(t *testing.T) {
	f := newFixture(fixtureDate, 9, 0)
	f.repo.AddScanner(model.Scanner{ID: "entrance-1", Label: "Main entrance", Active: true})
	f.repo.AddScanner(model.Scanner{ID: "decommissioned", Label: "Old gate", Active: false})
	token := issueOne(t, f, model.ActionArrival)

	unknown := "entrance-99"
	_, err := f.redeemer.Redeem(context.Background(), token.Secret, &unknown, nil)
	requireRejection(t, err, model.IncidentInvalidScanner)

	inactive := "decommissioned"
	_, err = f.redeemer.Redeem(context.Background(), token.Secret, &inactive, nil)
	requireRejection(t, err, model.IncidentInvalidScanner)

	known := "entrance-1"
	result, err := f.redeemer.Redeem(context.Background(), token.Secret, &known, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ActionArrival, result.Action)
}

func TestRedeem_InactiveWorker(t *testing.T) {
	f := newFixture(fixtureDate, 9, 0)
	token := issueOne(t, f, model.ActionArrival)

	deactivated := f.worker
	deactivated.Active = false
	f.repo.AddWorker(deactivated)

	_, err := f.redeemer.Redeem(context.Background(), token.Secret, nil, nil)
	rejection := requireRejection(t, err, model.IncidentInactiveWorker)
	assert.Equal(t, f.worker.Name, rejection.WorkerName)
}

func TestRedeem_WrongDay(t *testing.T) {
	f := newFixture(fixtureDate, 9, 0)
	token := issueOne(t, f, model.ActionArrival)

	// Same wall time, next civil day.
	f.clock.Set(at("2025-03-11", 9, 0))

	_, err := f.redeemer.Redeem(context.Background(), token.Secret, nil, nil)
	requireRejection(t, err, model.IncidentExpiredToken)
}

func TestRedeem_WindowViolations(t *testing.T) {
	f := newFixture(fixtureDate, 9, 0)
	token := issueOne(t, f, model.ActionArrival)

	// Window is 08:15-11:30.
	f.clock.Set(at(fixtureDate, 8, 0))
	_, err := f.redeemer.Redeem(context.Background(), token.Secret, nil, nil)
	requireRejection(t, err, model.IncidentEarlyScan)

	f.clock.Set(at(fixtureDate, 11, 31))
	_, err = f.redeemer.Redeem(context.Background(), token.Secret, nil, nil)
	requireRejection(t, err, model.IncidentExpiredToken)

	// Boundary instants are inclusive.
	f.clock.Set(at(fixtureDate, 8, 15))
	_, err = f.redeemer.Redeem(context.Background(), token.Secret, nil, nil)
	require.NoError(t, err)
}

func TestRedeem_WrongDeclaredAction(t *testing.T) {
	f := newFixture(fixtureDate, 9, 0)
	token := issueOne(t, f, model.ActionArrival)

	departure := model.ActionDeparture
	_, err := f.redeemer.Redeem(context.Background(), token.Secret, nil, &departure)
	requireRejection(t, err, model.IncidentWrongAction)

	arrival := model.ActionArrival
	_, err = f.redeemer.Redeem(context.Background(), token.Secret, nil, &arrival)
	require.NoError(t, err)
}

func TestRedeem_Replay(t *testing.T) {
	f := newFixture(fixtureDate, 9, 20)
	token := issueOne(t, f, model.ActionArrival)

	_, err := f.redeemer.Redeem(context.Background(), token.Secret, nil, nil)
	require.NoError(t, err)

	// Reuse is rejected even though the window is still open.
	_, err = f.redeemer.Redeem(context.Background(), token.Secret, nil, nil)
	requireRejection(t, err, model.IncidentReplay)
}

func TestRedeem_GraceBoundary(t *testing.T) {
	// Start 09:00, grace 15: exactly start+grace is not late, one minute
	// later is.
	t.Run("at start plus grace", func(t *testing.T) {
		f := newFixture(fixtureDate, 9, 15)
		token := issueOne(t, f, model.ActionArrival)

		result, err := f.redeemer.Redeem(context.Background(), token.Secret, nil, nil)
		require.NoError(t, err)
		assert.False(t, result.IsLate)
		assert.Equal(t, model.StatusIn, result.Status)
		assert.NotContains(t, f.incidentTypes(), model.IncidentLateArrival)
	})

	t.Run("one minute past grace", func(t *testing.T) {
		f := newFixture(fixtureDate, 9, 16)
		token := issueOne(t, f, model.ActionArrival)

		result, err := f.redeemer.Redeem(context.Background(), token.Secret, nil, nil)
		require.NoError(t, err)
		assert.True(t, result.IsLate)
		assert.Equal(t, model.StatusLate, result.Status)
		assert.Contains(t, f.incidentTypes(), model.IncidentLateArrival)
	})
}

func TestRedeem_ArrivalAlreadyRecorded(t *testing.T) {
	f := newFixture(fixtureDate, 9, 0)
	token := issueOne(t, f, model.ActionArrival)

	_, err := f.redeemer.Redeem(context.Background(), token.Secret, nil, nil)
	require.NoError(t, err)

	// A forced reissue produces a fresh, unredeemed token; the logical
	// ordering check still rejects a second arrival.
	arrival := model.ActionArrival
	fresh, err := f.issuer.Issue(context.Background(), f.tenantID, f.worker.ID, &arrival, true)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = f.redeemer.Redeem(context.Background(), fresh[0].Secret, nil, nil)
		requireRejection(t, err, model.IncidentAlreadyCheckedIn)
	}

	rec, err := f.repo.GetAttendance(context.Background(), f.worker.ID, fixtureDate)
	require.NoError(t, err)
	require.NotNil(t, rec.ArrivalAt)
	assert.True(t, rec.ArrivalAt.Equal(at(fixtureDate, 9, 0)), "original arrival never overwritten")
}

func TestRedeem_DepartureWithoutArrival(t *testing.T) {
	f := newFixture(fixtureDate, 17, 0)
	token := issueOne(t, f, model.ActionDeparture)

	_, err := f.redeemer.Redeem(context.Background(), token.Secret, nil, nil)
	requireRejection(t, err, model.IncidentMissingCheckin)

	// One incident, no ledger mutation, token still unconsumed.
	assert.Equal(t, []model.IncidentType{model.IncidentMissingCheckin}, f.incidentTypes())

	rec, err := f.repo.GetAttendance(context.Background(), f.worker.ID, fixtureDate)
	require.NoError(t, err)
	assert.Nil(t, rec)

	reloaded, err := f.repo.FindTokenBySecret(context.Background(), token.Secret)
	require.NoError(t, err)
	assert.Nil(t, reloaded.RedeemedAt)
}

func TestRedeem_FullDay(t *testing.T) {
	f := newFixture(fixtureDate, 9, 10)
	arrivalToken := issueOne(t, f, model.ActionArrival)
	departureToken := issueOne(t, f, model.ActionDeparture)

	result, err := f.redeemer.Redeem(context.Background(), arrivalToken.Secret, nil, nil)
	require.NoError(t, err)
	assert.False(t, result.IsLate)
	assert.Equal(t, model.StatusIn, result.Status)

	f.clock.Set(at(fixtureDate, 18, 10))
	result, err = f.redeemer.Redeem(context.Background(), departureToken.Secret, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ActionDeparture, result.Action)
	assert.Equal(t, model.StatusOut, result.Status)
	assert.False(t, result.IsEarlyDeparture)

	rec, err := f.repo.GetAttendance(context.Background(), f.worker.ID, fixtureDate)
	require.NoError(t, err)
	assert.NotNil(t, rec.ArrivalAt)
	assert.NotNil(t, rec.DepartureAt)
	assert.Equal(t, model.StatusOut, rec.Status)

	// A second departure attempt on a forced reissue.
	departure := model.ActionDeparture
	fresh, err := f.issuer.Issue(context.Background(), f.tenantID, f.worker.ID, &departure, true)
	require.NoError(t, err)
	_, err = f.redeemer.Redeem(context.Background(), fresh[0].Secret, nil, nil)
	requireRejection(t, err, model.IncidentAlreadyCheckedOut)
}

func TestRedeem_EarlyDeparture(t *testing.T) {
	f := newFixture(fixtureDate, 9, 0)
	arrivalToken := issueOne(t, f, model.ActionArrival)
	departureToken := issueOne(t, f, model.ActionDeparture)

	_, err := f.redeemer.Redeem(context.Background(), arrivalToken.Secret, nil, nil)
	require.NoError(t, err)

	f.clock.Set(at(fixtureDate, 17, 0))
	result, err := f.redeemer.Redeem(context.Background(), departureToken.Secret, nil, nil)
	require.NoError(t, err, "early departure succeeds, the incident is observational")
	assert.True(t, result.IsEarlyDeparture)
	assert.Contains(t, f.incidentTypes(), model.IncidentEarlyDeparture)
}

func TestRedeem_VeryLateDeparture(t *testing.T) {
	f := newFixture(fixtureDate, 9, 0)
	arrivalToken := issueOne(t, f, model.ActionArrival)
	departureToken := issueOne(t, f, model.ActionDeparture)

	_, err := f.redeemer.Redeem(context.Background(), arrivalToken.Secret, nil, nil)
	require.NoError(t, err)

	f.clock.Set(at(fixtureDate, 18, 45))
	result, err := f.redeemer.Redeem(context.Background(), departureToken.Secret, nil, nil)
	require.NoError(t, err)
	assert.False(t, result.IsEarlyDeparture)
	assert.Contains(t, f.incidentTypes(), model.IncidentVeryLateDeparture)
}

func TestRedeem_LateArrivalKeptAfterDeparture(t *testing.T) {
	f := newFixture(fixtureDate, 9, 30)
	arrivalToken := issueOne(t, f, model.ActionArrival)
	departureToken := issueOne(t, f, model.ActionDeparture)

	result, err := f.redeemer.Redeem(context.Background(), arrivalToken.Secret, nil, nil)
	require.NoError(t, err)
	require.True(t, result.IsLate)

	f.clock.Set(at(fixtureDate, 18, 5))
	_, err = f.redeemer.Redeem(context.Background(), departureToken.Secret, nil, nil)
	require.NoError(t, err)

	rec, err := f.repo.GetAttendance(context.Background(), f.worker.ID, fixtureDate)
	require.NoError(t, err)
	assert.True(t, rec.Late, "departure must not clear recorded lateness")
}

func TestRedeem_ConcurrentScansSingleWinner(t *testing.T) {
	f := newFixture(fixtureDate, 9, 0)
	token := issueOne(t, f, model.ActionArrival)

	const attempts = 32

	var wg sync.WaitGroup
	results := make([]error, attempts)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.redeemer.Redeem(context.Background(), token.Secret, nil, nil)
			results[i] = err
		}(i)
	}

	close(start)
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var rejection *Rejection
		require.ErrorAs(t, err, &rejection)
		// A loser either loses the conditional write (replay) or reads the
		// winner's ledger entry first (already_checked_in). Both are
		// rejections; neither double-applies.
		assert.Contains(t,
			[]model.IncidentType{model.IncidentReplay, model.IncidentAlreadyCheckedIn},
			rejection.Reason)
	}
	assert.Equal(t, 1, successes, "exactly one concurrent scan may win")

	rec, err := f.repo.GetAttendance(context.Background(), f.worker.ID, fixtureDate)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.NotNil(t, rec.ArrivalAt)
}
