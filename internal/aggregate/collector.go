// Package aggregate fans a chart request out over its (date, region) pairs and
// merges the results, reporting pairs that produced nothing.
package aggregate

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ignite/chart-gateway/internal/chart"
	"github.com/ignite/chart-gateway/internal/config"
	"github.com/ignite/chart-gateway/internal/metrics"
	"github.com/ignite/chart-gateway/internal/pkg/logger"
	"github.com/ignite/chart-gateway/internal/source"
)

// Collector runs one source over every pair of a request.
type Collector struct {
	src         source.Source
	failFast    bool
	concurrency int
}

// NewCollector creates a Collector using the configured failure policy and
// fetch concurrency.
func NewCollector(src source.Source, cfg config.AggregationConfig) *Collector {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Collector{
		src:         src,
		failFast:    cfg.Policy == config.PolicyFailFast,
		concurrency: concurrency,
	}
}

type pair struct {
	slot   chart.Slot
	region string
}

func (p pair) label() string { return p.slot.Label() + "/" + p.region }

// Collect fetches every (slot, region) pair, slots outer and regions inner,
// and concatenates the records in that order.
//
// A pair that yields nothing is a miss. An UpstreamError is a miss unless the
// policy is fail_fast. An UpstreamAuthError always fails the request. If every
// pair misses, the result is a *chart.NoDataError naming each of them.
func (c *Collector) Collect(ctx context.Context, key chart.Key, slots []chart.Slot, regions []string) ([]chart.Record, error) {
	pairs := make([]pair, 0, len(slots)*len(regions))
	for _, s := range slots {
		for _, r := range regions {
			pairs = append(pairs, pair{slot: s, region: r})
		}
	}

	batchID := uuid.New().String()
	metrics.RecordPairs(key.Name(), len(pairs))
	logger.Debug("collecting chart", "batch_id", batchID, "chart", key.Name(), "pairs", len(pairs), "source", c.src.Name())

	results := make([][]chart.Record, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records, err := c.src.FetchOne(gctx, key, p.slot, p.region)
			if err == nil {
				results[i] = records
				return nil
			}

			var authErr *chart.UpstreamAuthError
			if errors.As(err, &authErr) || c.failFast {
				return err
			}
			logger.Warn("chart fetch failed; counting as miss",
				"batch_id", batchID,
				"chart", key.Name(),
				"pair", p.label(),
				"error", err.Error(),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Error("chart collection aborted", "batch_id", batchID, "chart", key.Name(), "error", err.Error())
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		records []chart.Record
		misses  []string
	)
	for i, p := range pairs {
		if len(results[i]) == 0 {
			misses = append(misses, p.label())
			continue
		}
		records = append(records, results[i]...)
	}

	if len(records) == 0 {
		logger.Info("no chart data", "batch_id", batchID, "chart", key.Name(), "misses", len(misses))
		return nil, &chart.NoDataError{Chart: key.Name(), Misses: misses}
	}
	if len(misses) > 0 {
		logger.Info("partial chart data", "batch_id", batchID, "chart", key.Name(), "misses", len(misses), "records", len(records))
	}
	return records, nil
}
