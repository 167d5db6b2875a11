package entries

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ignite/chart-gateway/internal/chart"
)

// metricStreams is the only ranking metric that is reported as a stream count.
const metricStreams = "STREAMS"

type chartResponse struct {
	DisplayChart *displayChart `json:"displayChart"`
	Entries      []chartEntry  `json:"entries"`
}

type displayChart struct {
	Date          string        `json:"date"`
	ChartMetadata chartMetadata `json:"chartMetadata"`
}

type chartMetadata struct {
	Dimensions dimensions `json:"dimensions"`
}

type dimensions struct {
	Country string `json:"country"`
}

type chartEntry struct {
	ChartEntryData        entryData     `json:"chartEntryData"`
	MissingRequiredFields bool          `json:"missingRequiredFields"`
	TrackMetadata         trackMetadata `json:"trackMetadata"`
}

type entryData struct {
	CurrentRank   int           `json:"currentRank"`
	RankingMetric rankingMetric `json:"rankingMetric"`
}

type rankingMetric struct {
	Value json.RawMessage `json:"value"`
	Type  string          `json:"type"`
}

type trackMetadata struct {
	TrackName string   `json:"trackName"`
	TrackURI  string   `json:"trackUri"`
	Artists   []artist `json:"artists"`
}

type artist struct {
	Name string `json:"name"`
}

// flatten turns one chart payload into records. dateLabel and region are the
// requested values, used when the payload carries no chart metadata.
func flatten(resp *chartResponse, dateLabel, region string) []chart.Record {
	date := dateLabel
	if dc := resp.DisplayChart; dc != nil {
		if dc.Date != "" {
			date = dc.Date
		}
		if c := strings.TrimSpace(dc.ChartMetadata.Dimensions.Country); c != "" {
			region = strings.ToLower(c)
		}
	}

	records := make([]chart.Record, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		if e.MissingRequiredFields {
			continue
		}
		records = append(records, chart.Record{
			Position:  e.ChartEntryData.CurrentRank,
			TrackName: e.TrackMetadata.TrackName,
			Artist:    joinArtists(e.TrackMetadata.Artists),
			Streams:   streams(e.ChartEntryData.RankingMetric),
			Date:      date,
			Region:    region,
			SpotifyID: shortID(e.TrackMetadata.TrackURI),
		})
	}
	return records
}

func joinArtists(artists []artist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

// streams returns the metric value only for STREAMS metrics. The upstream
// sends the value either as a JSON number or as a quoted string.
func streams(m rankingMetric) *int64 {
	if m.Type != metricStreams {
		return nil
	}
	raw := bytes.TrimSpace(m.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(raw), `"`)
	s = strings.ReplaceAll(s, ",", "")
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n := int64(f)
	return &n
}

// shortID returns the last segment of a URI like spotify:track:<id>.
func shortID(uri string) *string {
	parts := strings.Split(uri, ":")
	if len(parts) < 3 {
		return nil
	}
	id := parts[len(parts)-1]
	return &id
}
