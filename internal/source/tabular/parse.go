package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/ignite/chart-gateway/internal/chart"
)

// missingTrack is the sentinel the export uses for a chart that was never
// published.
const missingTrack = "NA"

// maxPreambleRows bounds how far we look for the header row.
const maxPreambleRows = 3

type column int

const (
	colPosition column = iota
	colTrack
	colArtist
	colStreams
	colURL
)

// columnAliases maps lowercase header names to columns. Older exports used
// underscored headers.
var columnAliases = map[string]column{
	"position":   colPosition,
	"track name": colTrack,
	"track_name": colTrack,
	"artist":     colArtist,
	"streams":    colStreams,
	"url":        colURL,
	"track_url":  colURL,
}

type columns struct {
	position, track, artist, streams, url int
}

func locateColumns(header []string) (columns, bool) {
	cols := columns{position: -1, track: -1, artist: -1, streams: -1, url: -1}
	for i, h := range header {
		c, ok := columnAliases[strings.ToLower(strings.TrimSpace(h))]
		if !ok {
			continue
		}
		switch c {
		case colPosition:
			cols.position = i
		case colTrack:
			cols.track = i
		case colArtist:
			cols.artist = i
		case colStreams:
			cols.streams = i
		case colURL:
			cols.url = i
		}
	}
	return cols, cols.position >= 0 && cols.track >= 0 && cols.artist >= 0
}

// ParseTable reads a chart export. An optional note line may precede the
// header. A table whose every track name is "NA" yields no records.
func ParseTable(r io.Reader, dateLabel, region string) ([]chart.Record, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var cols columns
	found := false
	for i := 0; i < maxPreambleRows && !found; i++ {
		row, err := reader.Read()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		cols, found = locateColumns(row)
	}
	if !found {
		return nil, errors.New("no Position/Track Name/Artist header found")
	}

	var records []chart.Record
	allMissing := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		pos, err := strconv.Atoi(strings.TrimSpace(field(row, cols.position)))
		if err != nil {
			continue
		}
		track := field(row, cols.track)
		if track != missingTrack {
			allMissing = false
		}

		records = append(records, chart.Record{
			Position:  pos,
			TrackName: track,
			Artist:    field(row, cols.artist),
			Streams:   parseStreams(field(row, cols.streams)),
			Date:      dateLabel,
			Region:    region,
			SpotifyID: trackID(field(row, cols.url)),
		})
	}

	if allMissing {
		return nil, nil
	}
	return records, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func parseStreams(s string) *int64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// trackID returns the last path segment of a track URL such as
// https://open.spotify.com/track/<id>.
func trackID(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	path := strings.TrimRight(u.Path, "/")
	i := strings.LastIndex(path, "/")
	if i < 0 || i == len(path)-1 {
		return nil
	}
	id := path[i+1:]
	return &id
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, utf8BOM) {
		br.Discard(3)
	}
	return br
}
