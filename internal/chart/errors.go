package chart

import (
	"fmt"
	"strings"
)

// InvalidDateError reports a malformed date or a weekly start that is not a
// published chart date.
type InvalidDateError struct {
	Param       string
	Value       string
	Reason      string
	Suggestions []string
}

func (e *InvalidDateError) Error() string {
	if len(e.Suggestions) > 0 {
		return fmt.Sprintf("%s Try one of: %s.", e.Reason, strings.Join(e.Suggestions, ", "))
	}
	return e.Reason
}

// InvalidRegionError names every unsupported region code of a request.
type InvalidRegionError struct {
	Codes []string
}

func (e *InvalidRegionError) Error() string {
	return fmt.Sprintf("Unsupported region(s): %s.", strings.Join(e.Codes, ", "))
}

// UpstreamAuthError means the upstream credential is missing or was rejected.
type UpstreamAuthError struct {
	Source string
	Reason string
	Err    error
}

func (e *UpstreamAuthError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamAuthError) Unwrap() error { return e.Err }

// UpstreamError is a non-auth upstream failure: a 4xx/5xx status, a transport
// error or a timeout.
type UpstreamError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream returned status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: upstream request failed: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NoDataError is returned when every requested (date, region) pair missed.
type NoDataError struct {
	Chart  string
	Misses []string
}

func (e *NoDataError) Error() string {
	if len(e.Misses) == 0 {
		return fmt.Sprintf("No %s chart data available.", e.Chart)
	}
	return fmt.Sprintf("No %s chart data available for: %s.", e.Chart, strings.Join(e.Misses, ", "))
}
