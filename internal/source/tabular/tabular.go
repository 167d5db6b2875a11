// Package tabular implements the chart source for the CSV export generation
// of the upstream: one table per (chart, date, region), downloaded over HTTP
// or read from an S3 archive.
package tabular

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/chart-gateway/internal/chart"
)

// LatestFunc returns the most recent published date of a chart. The CSV
// generation has no "latest" alias, so the marker is pinned before fetching.
type LatestFunc func(key chart.Key) time.Time

// Source fetches and normalizes CSV chart tables.
type Source struct {
	fetcher   Fetcher
	templates map[chart.Key]string
	latest    LatestFunc
}

// New creates a tabular Source. templates maps chart identifiers
// (top200_daily, ...) to path templates with {region}, {cadence}, {date}
// and {period} placeholders.
func New(fetcher Fetcher, templates map[string]string, latest LatestFunc) (*Source, error) {
	if fetcher == nil {
		return nil, errors.New("tabular: fetcher is required")
	}
	if latest == nil {
		return nil, errors.New("tabular: latest date resolver is required")
	}
	byKey := make(map[chart.Key]string, len(templates))
	for _, key := range chart.Keys() {
		tmpl, ok := templates[key.String()]
		if !ok || tmpl == "" {
			return nil, fmt.Errorf("tabular: no path template for %s", key)
		}
		byKey[key] = tmpl
	}
	return &Source{fetcher: fetcher, templates: byKey, latest: latest}, nil
}

func (s *Source) Name() string { return s.fetcher.Name() }

// FetchOne downloads and parses one table. A missing table or an all-"NA"
// table is a miss and returns no records.
func (s *Source) FetchOne(ctx context.Context, key chart.Key, slot chart.Slot, region string) ([]chart.Record, error) {
	date, ok := slot.Date()
	if !ok {
		date = s.latest(key)
	}
	path := s.path(key, date, region)

	body, err := s.fetcher.Fetch(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer body.Close()

	records, err := ParseTable(body, date.Format(chart.DateLayout), region)
	if err != nil {
		return nil, &chart.UpstreamError{Source: s.Name(), Err: fmt.Errorf("parse %s: %w", path, err)}
	}
	return records, nil
}

func (s *Source) path(key chart.Key, date time.Time, region string) string {
	label := date.Format(chart.DateLayout)
	period := label
	if key.Weekly() {
		period = date.AddDate(0, 0, -7).Format(chart.DateLayout) + "--" + label
	}
	return strings.NewReplacer(
		"{region}", strings.ToLower(region),
		"{cadence}", string(key.Cadence),
		"{date}", label,
		"{period}", period,
	).Replace(s.templates[key])
}
