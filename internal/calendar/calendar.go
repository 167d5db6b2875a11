// Package calendar generates the set of published chart dates for each chart
// and resolves caller-supplied date ranges against it.
package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ignite/chart-gateway/internal/chart"
	"github.com/ignite/chart-gateway/internal/config"
)

const maxSuggestions = 5

// Calendar knows which dates each chart was published on.
type Calendar struct {
	epochs  map[chart.Key]time.Time
	lagDays int
	now     func() time.Time
}

// New builds a Calendar from configuration. now may be nil, in which case
// the wall clock is used.
func New(cfg config.CalendarConfig, now func() time.Time) (*Calendar, error) {
	if now == nil {
		now = time.Now
	}
	epochs := make(map[chart.Key]time.Time, len(cfg.Epochs))
	for _, key := range chart.Keys() {
		raw, ok := cfg.Epochs[key.String()]
		if !ok {
			return nil, fmt.Errorf("calendar: no epoch configured for %s", key)
		}
		epoch, err := time.Parse(chart.DateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("calendar: epoch for %s: %w", key, err)
		}
		epochs[key] = epoch
	}
	if cfg.LagDays < 0 {
		return nil, fmt.Errorf("calendar: lag_days must not be negative")
	}
	return &Calendar{epochs: epochs, lagDays: cfg.LagDays, now: now}, nil
}

func step(key chart.Key) int {
	if key.Weekly() {
		return 7
	}
	return 1
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Latest returns the most recent published date of the chart.
func (c *Calendar) Latest(key chart.Key) time.Time {
	epoch := c.epochs[key]
	horizon := today(c.now()).AddDate(0, 0, -c.lagDays)
	if horizon.Before(epoch) {
		return epoch
	}
	days := int(horizon.Sub(epoch).Hours() / 24)
	days -= days % step(key)
	return epoch.AddDate(0, 0, days)
}

// Dates returns every published date of the chart in ascending order.
func (c *Calendar) Dates(key chart.Key) []time.Time {
	epoch := c.epochs[key]
	latest := c.Latest(key)
	n := int(latest.Sub(epoch).Hours()/24)/step(key) + 1
	dates := make([]time.Time, 0, n)
	for d := epoch; !d.After(latest); d = d.AddDate(0, 0, step(key)) {
		dates = append(dates, d)
	}
	return dates
}

// ResolveDateRange turns optional start/end inputs (YYYY-MM-DD) into the
// ordered slots to fetch. With both inputs absent and latestShorthand set the
// result is a single latest marker. Empty strings count as absent.
func (c *Calendar) ResolveDateRange(start, end *string, key chart.Key, latestShorthand bool) ([]chart.Slot, error) {
	start, end = blankToNil(start), blankToNil(end)

	dates := c.Dates(key)

	if start == nil && end == nil && latestShorthand {
		return []chart.Slot{chart.Latest()}, nil
	}

	earliest, latest := dates[0], dates[len(dates)-1]

	startDate := earliest
	if start != nil {
		parsed, err := parseDate(*start, "start")
		if err != nil {
			return nil, err
		}
		startDate = parsed
		if startDate.Before(earliest) {
			startDate = earliest
		} else if key.Weekly() && !member(dates, startDate) {
			return nil, &chart.InvalidDateError{
				Param:       "start",
				Value:       *start,
				Reason:      "Invalid start date for weekly charts.",
				Suggestions: suggest(dates, startDate),
			}
		}
	}

	endDate := latest
	if end != nil {
		parsed, err := parseDate(*end, "end")
		if err != nil {
			return nil, err
		}
		endDate = parsed
		if endDate.After(latest) {
			endDate = latest
		}
	}

	if endDate.Before(startDate) {
		return nil, &chart.InvalidDateError{
			Param:  "end",
			Value:  endDate.Format(chart.DateLayout),
			Reason: "End date must be the same as or after start date.",
		}
	}

	lo := sort.Search(len(dates), func(i int) bool { return !dates[i].Before(startDate) })
	var slots []chart.Slot
	for _, d := range dates[lo:] {
		if d.After(endDate) {
			break
		}
		slots = append(slots, chart.On(d))
	}
	return slots, nil
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func parseDate(value, param string) (time.Time, error) {
	t, err := time.Parse(chart.DateLayout, value)
	if err != nil {
		return time.Time{}, &chart.InvalidDateError{
			Param:  param,
			Value:  value,
			Reason: fmt.Sprintf("Invalid %s date '%s'. Expected YYYY-MM-DD.", param, value),
		}
	}
	return t, nil
}

func member(dates []time.Time, d time.Time) bool {
	i := sort.Search(len(dates), func(i int) bool { return !dates[i].Before(d) })
	return i < len(dates) && dates[i].Equal(d)
}

// suggest lists up to maxSuggestions published dates on or after d.
func suggest(dates []time.Time, d time.Time) []string {
	i := sort.Search(len(dates), func(i int) bool { return !dates[i].Before(d) })
	var out []string
	for ; i < len(dates) && len(out) < maxSuggestions; i++ {
		out = append(out, dates[i].Format(chart.DateLayout))
	}
	return out
}
