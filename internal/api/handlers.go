package api

import (
	"context"
	"net/http"

	"github.com/ignite/chart-gateway/internal/chart"
	"github.com/ignite/chart-gateway/internal/pkg/httputil"
)

// DateResolver turns the start/end query parameters into chart slots.
type DateResolver interface {
	ResolveDateRange(start, end *string, key chart.Key, latestShorthand bool) ([]chart.Slot, error)
}

// RegionNormalizer validates the region query parameters.
type RegionNormalizer interface {
	Normalize(requested []string) ([]string, error)
}

// Collector fetches and merges every (slot, region) pair of a request.
type Collector interface {
	Collect(ctx context.Context, key chart.Key, slots []chart.Slot, regions []string) ([]chart.Record, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	dates           DateResolver
	regions         RegionNormalizer
	collector       Collector
	latestShorthand bool
}

// NewHandlers creates a new Handlers instance
func NewHandlers(dates DateResolver, regions RegionNormalizer, collector Collector, latestShorthand bool) *Handlers {
	return &Handlers{
		dates:           dates,
		regions:         regions,
		collector:       collector,
		latestShorthand: latestShorthand,
	}
}

// ChartResponse is the body of a successful chart request.
type ChartResponse struct {
	Chart string         `json:"chart"`
	Data  []chart.Record `json:"data"`
}

// Chart returns the handler for one chart.
//
//	GET /charts/{family}/{cadence}?start=YYYY-MM-DD&end=YYYY-MM-DD&region=us&region=gb
func (h *Handlers) Chart(key chart.Key) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		slots, err := h.dates.ResolveDateRange(optional(q, "start"), optional(q, "end"), key, h.latestShorthand)
		if err != nil {
			respondError(w, r, err)
			return
		}

		regions, err := h.regions.Normalize(q["region"])
		if err != nil {
			respondError(w, r, err)
			return
		}

		records, err := h.collector.Collect(r.Context(), key, slots, regions)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if records == nil {
			records = []chart.Record{}
		}

		httputil.OK(w, ChartResponse{Chart: key.Name(), Data: records})
	}
}

// HealthCheck reports that the process is serving.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

func optional(q map[string][]string, name string) *string {
	values, ok := q[name]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}
