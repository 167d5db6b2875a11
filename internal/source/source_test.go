package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/chart-gateway/internal/calendar"
	"github.com/ignite/chart-gateway/internal/chart"
	"github.com/ignite/chart-gateway/internal/config"
	"github.com/ignite/chart-gateway/internal/metrics"
)

type stubSource struct {
	records []chart.Record
	err     error
}

func (s stubSource) Name() string { return "stub" }

func (s stubSource) FetchOne(context.Context, chart.Key, chart.Slot, string) ([]chart.Record, error) {
	return s.records, s.err
}

func testCalendar(t *testing.T) *calendar.Calendar {
	t.Helper()
	cal, err := calendar.New(config.CalendarConfig{Epochs: config.DefaultEpochs, LagDays: 1}, func() time.Time {
		return time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	})
	require.NoError(t, err)
	return cal
}

func TestNewSelectsStrategy(t *testing.T) {
	cal := testCalendar(t)

	cfg := config.Default()
	cfg.Upstream.Strategy = config.StrategyEntries
	cfg.Entries.Token = "abcdefghijkl"
	src, err := New(context.Background(), cfg, cal)
	require.NoError(t, err)
	assert.Equal(t, "entries", src.Name())

	cfg = config.Default()
	cfg.Upstream.Strategy = config.StrategyTabular
	src, err = New(context.Background(), cfg, cal)
	require.NoError(t, err)
	assert.Equal(t, "tabular-http", src.Name())

	cfg.Upstream.Strategy = "ftp"
	_, err = New(context.Background(), cfg, cal)
	assert.Error(t, err)
}

func TestTabularNeedsCalendar(t *testing.T) {
	cfg := config.Default()
	cfg.Upstream.Strategy = config.StrategyTabular
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name    string
		records []chart.Record
		err     error
		want    string
	}{
		{"ok", []chart.Record{{Position: 1}}, nil, metrics.OutcomeOK},
		{"miss", nil, nil, metrics.OutcomeMiss},
		{"upstream", nil, &chart.UpstreamError{Source: "stub", Err: errors.New("x")}, metrics.OutcomeUpstreamError},
		{"auth", nil, &chart.UpstreamAuthError{Source: "stub", Reason: "expired"}, metrics.OutcomeAuthError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.records, tt.err))
		})
	}
}

func TestInstrumentPassesThrough(t *testing.T) {
	want := []chart.Record{{Position: 1, TrackName: "a"}}
	src := Instrument(stubSource{records: want})
	assert.Equal(t, "stub", src.Name())

	counter := metrics.UpstreamFetchTotal.WithLabelValues("stub", chart.Viral50Daily.Name(), metrics.OutcomeOK)
	before := testutil.ToFloat64(counter)

	got, err := src.FetchOne(context.Background(), chart.Viral50Daily, chart.Latest(), "global")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))

	failing := Instrument(stubSource{err: &chart.UpstreamError{Source: "stub", Err: errors.New("down")}})
	_, err = failing.FetchOne(context.Background(), chart.Viral50Daily, chart.Latest(), "global")
	var upErr *chart.UpstreamError
	assert.True(t, errors.As(err, &upErr))
}
