package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance.service/internal/core/model"
)

func strPtr(s string) *string { return &s }

func TestResolveSchedule_Precedence(t *testing.T) {
	// 2025-03-10 is a Monday.
	const monday = "2025-03-10"

	tenantDefaults := model.ScheduleConfig{
		DefaultStart:     "09:00",
		DefaultEnd:       "18:00",
		LateGraceMinutes: 15,
	}

	workerWithCustom := model.Worker{
		CustomStart: strPtr("10:00"),
		CustomEnd:   strPtr("19:00"),
	}

	mondayOverride := model.DayOverride{
		Weekday: time.Monday,
		Start:   "08:00",
		End:     "16:00",
		Enabled: true,
	}

	tests := []struct {
		name      string
		cfg       model.ScheduleConfig
		worker    model.Worker
		wantStart int
		wantEnd   int
	}{
		{
			name:      "tenant default only",
			cfg:       tenantDefaults,
			worker:    model.Worker{},
			wantStart: 9 * 60,
			wantEnd:   18 * 60,
		},
		{
			name:      "worker custom beats tenant default",
			cfg:       tenantDefaults,
			worker:    workerWithCustom,
			wantStart: 10 * 60,
			wantEnd:   19 * 60,
		},
		{
			name: "enabled day override beats worker custom",
			cfg: func() model.ScheduleConfig {
				c := tenantDefaults
				c.DayOverrides = []model.DayOverride{mondayOverride}
				return c
			}(),
			worker:    workerWithCustom,
			wantStart: 8 * 60,
			wantEnd:   16 * 60,
		},
		{
			name: "disabled day override is ignored",
			cfg: func() model.ScheduleConfig {
				c := tenantDefaults
				o := mondayOverride
				o.Enabled = false
				c.DayOverrides = []model.DayOverride{o}
				return c
			}(),
			worker:    workerWithCustom,
			wantStart: 10 * 60,
			wantEnd:   19 * 60,
		},
		{
			name: "override for another weekday is ignored",
			cfg: func() model.ScheduleConfig {
				c := tenantDefaults
				o := mondayOverride
				o.Weekday = time.Tuesday
				c.DayOverrides = []model.DayOverride{o}
				return c
			}(),
			worker:    workerWithCustom,
			wantStart: 10 * 60,
			wantEnd:   19 * 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSchedule(tt.cfg, tt.worker, monday)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, got.StartMinute)
			assert.Equal(t, tt.wantEnd, got.EndMinute)
			assert.Equal(t, 15, got.GraceMinutes)
		})
	}
}

func TestResolveSchedule_Deterministic(t *testing.T) {
	cfg := model.ScheduleConfig{DefaultStart: "09:00", DefaultEnd: "18:00", LateGraceMinutes: 10}

	first, err := ResolveSchedule(cfg, model.Worker{}, "2025-03-10")
	require.NoError(t, err)
	second, err := ResolveSchedule(cfg, model.Worker{}, "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveSchedule_BadInput(t *testing.T) {
	cfg := model.ScheduleConfig{DefaultStart: "09:00", DefaultEnd: "18:00"}

	_, err := ResolveSchedule(cfg, model.Worker{}, "10-03-2025")
	assert.Error(t, err)

	cfg.DefaultStart = "25:00"
	_, err = ResolveSchedule(cfg, model.Worker{}, "2025-03-10")
	assert.Error(t, err)
}

func TestParseMinuteOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:05", 545, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"0900", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseMinuteOfDay(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestAtMinute(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Bucharest")
	require.NoError(t, err)

	got, err := AtMinute("2025-03-10", 9*60+30, loc)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Hour())
	assert.Equal(t, 30, got.Minute())
	assert.Equal(t, loc, got.Location())
}
