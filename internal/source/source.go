// Package source defines the chart source capability and selects the
// upstream generation the process talks to.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/chart-gateway/internal/calendar"
	"github.com/ignite/chart-gateway/internal/chart"
	"github.com/ignite/chart-gateway/internal/config"
	"github.com/ignite/chart-gateway/internal/metrics"
	"github.com/ignite/chart-gateway/internal/source/entries"
	"github.com/ignite/chart-gateway/internal/source/tabular"
)

// Source fetches the normalized records of one (chart, slot, region).
// An empty result is a miss. Failures are *chart.UpstreamAuthError or
// *chart.UpstreamError.
type Source interface {
	Name() string
	FetchOne(ctx context.Context, key chart.Key, slot chart.Slot, region string) ([]chart.Record, error)
}

// New builds the Source selected by cfg.Upstream.Strategy, wrapped with
// fetch metrics.
func New(ctx context.Context, cfg *config.Config, cal *calendar.Calendar) (Source, error) {
	var (
		src Source
		err error
	)
	switch cfg.Upstream.Strategy {
	case config.StrategyEntries:
		src, err = entries.New(ctx, cfg.Entries, cfg.Upstream)
	case config.StrategyTabular:
		src, err = newTabular(ctx, cfg, cal)
	default:
		return nil, fmt.Errorf("unknown upstream strategy %q", cfg.Upstream.Strategy)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(src), nil
}

func newTabular(ctx context.Context, cfg *config.Config, cal *calendar.Calendar) (*tabular.Source, error) {
	if cal == nil {
		return nil, errors.New("tabular strategy needs a calendar")
	}
	var fetcher tabular.Fetcher
	switch cfg.Tabular.Transport {
	case config.TransportS3:
		s3f, err := tabular.NewS3Fetcher(ctx, cfg.Tabular, cfg.Upstream)
		if err != nil {
			return nil, err
		}
		fetcher = s3f
	default:
		fetcher = tabular.NewHTTPFetcher(cfg.Tabular, cfg.Upstream)
	}
	return tabular.New(fetcher, cfg.Tabular.PathTemplates, cal.Latest)
}

type instrumented struct {
	next Source
}

// Instrument records a fetch counter and latency for every call to src.
func Instrument(src Source) Source {
	return &instrumented{next: src}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) FetchOne(ctx context.Context, key chart.Key, slot chart.Slot, region string) ([]chart.Record, error) {
	start := time.Now()
	records, err := i.next.FetchOne(ctx, key, slot, region)
	metrics.RecordFetch(i.next.Name(), key.Name(), Outcome(records, err), time.Since(start).Seconds())
	return records, err
}

// Outcome classifies a fetch result for metrics.
func Outcome(records []chart.Record, err error) string {
	var authErr *chart.UpstreamAuthError
	switch {
	case errors.As(err, &authErr):
		return metrics.OutcomeAuthError
	case err != nil:
		return metrics.OutcomeUpstreamError
	case len(records) == 0:
		return metrics.OutcomeMiss
	default:
		return metrics.OutcomeOK
	}
}
