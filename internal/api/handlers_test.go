package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/chart-gateway/internal/aggregate"
	"github.com/ignite/chart-gateway/internal/calendar"
	"github.com/ignite/chart-gateway/internal/chart"
	"github.com/ignite/chart-gateway/internal/config"
	"github.com/ignite/chart-gateway/internal/region"
)

// MockSource records every request and answers from a fixed table.
type MockSource struct {
	calls   []string
	records map[string][]chart.Record
	err     error
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) FetchOne(ctx context.Context, key chart.Key, slot chart.Slot, region string) ([]chart.Record, error) {
	label := slot.Label() + "/" + region
	m.calls = append(m.calls, key.Name()+":"+label)
	if m.err != nil {
		return nil, m.err
	}
	return m.records[label], nil
}

func setupTestRouter(t *testing.T, src *MockSource) http.Handler {
	t.Helper()
	cal, err := calendar.New(config.CalendarConfig{Epochs: config.DefaultEpochs, LagDays: 1}, func() time.Time {
		return time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	})
	require.NoError(t, err)

	// concurrency 1 keeps MockSource.calls in pair order
	collector := aggregate.NewCollector(src, config.AggregationConfig{Policy: config.PolicyTolerate, Concurrency: 1})
	handlers := NewHandlers(cal, region.NewValidator(config.DefaultRegions), collector, true)
	return NewServer(config.ServerConfig{AllowedOrigins: []string{"*"}}, handlers).Handler()
}

func doGet(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var body map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func song(date, region string) chart.Record {
	streams := int64(1000)
	id := "4iV5W9uYEdYUVa79Axb7Rh"
	return chart.Record{Position: 1, TrackName: "Song", Artist: "Artist", Streams: &streams, Date: date, Region: region, SpotifyID: &id}
}

func TestHealthCheck(t *testing.T) {
	h := setupTestRouter(t, &MockSource{})

	w, body := doGet(t, h, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestChartLatestShorthand(t *testing.T) {
	src := &MockSource{records: map[string][]chart.Record{
		"latest/global": {song("2021-02-28", "global")},
	}}
	h := setupTestRouter(t, src)

	w, body := doGet(t, h, "/charts/viral50/daily")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "viral_50_daily", body["chart"])
	assert.Equal(t, []string{"viral_50_daily:latest/global"}, src.calls)

	data := body["data"].([]interface{})
	require.Len(t, data, 1)
	first := data[0].(map[string]interface{})
	assert.Equal(t, "Song", first["TrackName"])
	assert.Equal(t, float64(1000), first["Streams"])
	assert.Equal(t, "4iV5W9uYEdYUVa79Axb7Rh", first["spotifyId"])
	assert.Equal(t, "global", first["region"])
}

func TestChartDateRangeAndRegions(t *testing.T) {
	src := &MockSource{records: map[string][]chart.Record{
		"2021-01-07/us": {song("2021-01-07", "us")},
		"2021-01-14/gb": {song("2021-01-14", "gb")},
	}}
	h := setupTestRouter(t, src)

	w, body := doGet(t, h, "/charts/top200/weekly?start=2021-01-07&end=2021-01-14&region=US&region=gb")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "top_200_weekly", body["chart"])
	assert.Len(t, body["data"], 2)
	assert.Equal(t, []string{
		"top_200_weekly:2021-01-07/us",
		"top_200_weekly:2021-01-07/gb",
		"top_200_weekly:2021-01-14/us",
		"top_200_weekly:2021-01-14/gb",
	}, src.calls)
}

func TestChartWeeklyStartSuggestions(t *testing.T) {
	src := &MockSource{}
	h := setupTestRouter(t, src)

	w, body := doGet(t, h, "/charts/top200/weekly?start=2021-01-04")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["detail"], "2021-01-07")
	assert.Empty(t, src.calls)
}

func TestChartMalformedDate(t *testing.T) {
	h := setupTestRouter(t, &MockSource{})

	w, body := doGet(t, h, "/charts/top200/daily?start=01-02-2021")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid start date '01-02-2021'. Expected YYYY-MM-DD.", body["detail"])
}

func TestChartEndBeforeStart(t *testing.T) {
	h := setupTestRouter(t, &MockSource{})

	w, _ := doGet(t, h, "/charts/top200/daily?start=2021-01-10&end=2021-01-05")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChartInvalidRegion(t *testing.T) {
	src := &MockSource{}
	h := setupTestRouter(t, src)

	w, body := doGet(t, h, "/charts/top200/daily?region=us&region=zz&region=xx")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Unsupported region(s): zz, xx.", body["detail"])
	assert.Empty(t, src.calls)
}

func TestChartAllMiss(t *testing.T) {
	h := setupTestRouter(t, &MockSource{})

	w, body := doGet(t, h, "/charts/top200/daily?start=2021-01-01&end=2021-01-02&region=ad")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "No top_200_daily chart data available for: 2021-01-01/ad, 2021-01-02/ad.", body["detail"])
}

func TestChartAuthErrorIsDistinct(t *testing.T) {
	h := setupTestRouter(t, &MockSource{err: &chart.UpstreamAuthError{
		Source: "entries",
		Reason: "upstream rejected the credential; refresh the access token",
	}})

	w, body := doGet(t, h, "/charts/top200/daily")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, body["detail"], "refresh")
	assert.Contains(t, body["detail"], "authentication")
}

func TestChartUnknownErrorIsHidden(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/charts/top200/daily", nil)
	respondError(w, req, errors.New("pq: secret table missing"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestUpstreamErrorMessage(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/charts/top200/daily", nil)
	respondError(w, req, &chart.UpstreamError{Source: "entries", StatusCode: 503})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "503")
}

func TestMetricsEndpoint(t *testing.T) {
	h := setupTestRouter(t, &MockSource{})
	doGet(t, h, "/health")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chartgw_http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	h := setupTestRouter(t, &MockSource{})

	req := httptest.NewRequest(http.MethodGet, "/charts/top50/daily", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
