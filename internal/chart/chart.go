// Package chart holds the domain types shared by the calendar, the region
// validator, the upstream sources and the aggregator.
package chart

import (
	"fmt"
	"time"
)

// DateLayout is the canonical label format of a chart date.
const DateLayout = "2006-01-02"

// Family is the chart category.
type Family string

const (
	FamilyTop200  Family = "top200"
	FamilyViral50 Family = "viral50"
)

// Cadence is the chart publication frequency.
type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)

// Key identifies one of the four published charts.
type Key struct {
	Family  Family
	Cadence Cadence
}

var (
	Top200Daily   = Key{Family: FamilyTop200, Cadence: CadenceDaily}
	Top200Weekly  = Key{Family: FamilyTop200, Cadence: CadenceWeekly}
	Viral50Daily  = Key{Family: FamilyViral50, Cadence: CadenceDaily}
	Viral50Weekly = Key{Family: FamilyViral50, Cadence: CadenceWeekly}
)

// Keys lists every supported chart in route order.
func Keys() []Key {
	return []Key{Top200Daily, Top200Weekly, Viral50Daily, Viral50Weekly}
}

// Name returns the public chart name, e.g. "top_200_daily".
func (k Key) Name() string {
	switch k.Family {
	case FamilyTop200:
		return "top_200_" + string(k.Cadence)
	case FamilyViral50:
		return "viral_50_" + string(k.Cadence)
	default:
		return string(k.Family) + "_" + string(k.Cadence)
	}
}

// String returns the config-style identifier, e.g. "top200_daily".
func (k Key) String() string {
	return string(k.Family) + "_" + string(k.Cadence)
}

// Weekly reports whether the chart is published weekly.
func (k Key) Weekly() bool { return k.Cadence == CadenceWeekly }

// Viral reports whether the chart belongs to the viral family.
func (k Key) Viral() bool { return k.Family == FamilyViral50 }

// ParseKey parses the config-style identifier produced by String.
func ParseKey(s string) (Key, error) {
	for _, k := range Keys() {
		if k.String() == s {
			return k, nil
		}
	}
	return Key{}, fmt.Errorf("unknown chart %q", s)
}

// Slot is one resolved date position: either a concrete chart date or the
// "most recent published" marker.
type Slot struct {
	date   time.Time
	latest bool
}

// On returns a slot for a concrete chart date.
func On(date time.Time) Slot {
	y, m, d := date.Date()
	return Slot{date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Latest returns the "most recent published date" marker.
func Latest() Slot { return Slot{latest: true} }

// IsLatest reports whether the slot is the latest marker.
func (s Slot) IsLatest() bool { return s.latest }

// Date returns the concrete date. ok is false for the latest marker.
func (s Slot) Date() (time.Time, bool) {
	if s.latest {
		return time.Time{}, false
	}
	return s.date, true
}

// Label returns "YYYY-MM-DD" for concrete dates and "latest" for the marker.
func (s Slot) Label() string {
	if s.latest {
		return "latest"
	}
	return s.date.Format(DateLayout)
}

func (s Slot) String() string { return s.Label() }

// Record is one normalized chart row. Its shape does not depend on which
// upstream generation produced it.
type Record struct {
	Position  int     `json:"Position"`
	TrackName string  `json:"TrackName"`
	Artist    string  `json:"Artist"`
	Streams   *int64  `json:"Streams"`
	Date      string  `json:"date"`
	Region    string  `json:"region"`
	SpotifyID *string `json:"spotifyId"`
}
