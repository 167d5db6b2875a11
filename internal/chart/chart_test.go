package chart

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyNames(t *testing.T) {
	assert.Equal(t, "top_200_daily", Top200Daily.Name())
	assert.Equal(t, "top_200_weekly", Top200Weekly.Name())
	assert.Equal(t, "viral_50_daily", Viral50Daily.Name())
	assert.Equal(t, "viral_50_weekly", Viral50Weekly.Name())
	assert.Equal(t, "viral50_weekly", Viral50Weekly.String())
}

func TestParseKey(t *testing.T) {
	for _, k := range Keys() {
		parsed, err := ParseKey(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseKey("top100_daily")
	assert.Error(t, err)
}

func TestSlot(t *testing.T) {
	s := On(time.Date(2021, 1, 7, 15, 30, 0, 0, time.UTC))
	assert.False(t, s.IsLatest())
	assert.Equal(t, "2021-01-07", s.Label())
	d, ok := s.Date()
	require.True(t, ok)
	assert.Equal(t, 0, d.Hour())

	l := Latest()
	assert.True(t, l.IsLatest())
	assert.Equal(t, "latest", l.Label())
	_, ok = l.Date()
	assert.False(t, ok)
}

func TestErrorMessages(t *testing.T) {
	dateErr := &InvalidDateError{
		Param:       "start",
		Reason:      "Invalid start date for weekly charts.",
		Suggestions: []string{"2021-01-07", "2021-01-14"},
	}
	assert.Equal(t, "Invalid start date for weekly charts. Try one of: 2021-01-07, 2021-01-14.", dateErr.Error())

	regionErr := &InvalidRegionError{Codes: []string{"zz", "xx"}}
	assert.Equal(t, "Unsupported region(s): zz, xx.", regionErr.Error())

	noData := &NoDataError{Chart: "top_200_daily", Misses: []string{"2021-01-01/us", "2021-01-01/gb"}}
	assert.Contains(t, noData.Error(), "2021-01-01/us, 2021-01-01/gb")
}

func TestUpstreamErrorsUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := fmt.Errorf("fetching: %w", &UpstreamError{Source: "entries", Err: cause})

	var upErr *UpstreamError
	require.True(t, errors.As(wrapped, &upErr))
	assert.ErrorIs(t, wrapped, cause)

	auth := &UpstreamAuthError{Source: "entries", Reason: "credential not configured"}
	assert.Equal(t, "entries: credential not configured", auth.Error())
}
