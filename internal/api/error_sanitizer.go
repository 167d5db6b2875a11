package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ignite/chart-gateway/internal/chart"
	"github.com/ignite/chart-gateway/internal/pkg/httputil"
	"github.com/ignite/chart-gateway/internal/pkg/logger"
)

// statusClientClosedRequest is logged when the caller went away mid-request.
const statusClientClosedRequest = 499

// respondError maps a domain error to its HTTP status and {"detail": ...}
// body. Input errors carry their own message. Upstream errors are reported as
// 502 with a message that separates credential problems from outages.
// Anything else is a 500 whose cause is logged and never returned.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		dateErr   *chart.InvalidDateError
		regionErr *chart.InvalidRegionError
		authErr   *chart.UpstreamAuthError
		upErr     *chart.UpstreamError
		noData    *chart.NoDataError
	)
	reqID := middleware.GetReqID(r.Context())

	switch {
	case errors.As(err, &dateErr):
		httputil.BadRequest(w, dateErr.Error())
	case errors.As(err, &regionErr):
		httputil.BadRequest(w, regionErr.Error())
	case errors.As(err, &authErr):
		logger.Error("upstream credential problem", "request_id", reqID, "error", err.Error())
		httputil.BadGateway(w, authMessage(authErr))
	case errors.As(err, &upErr):
		logger.Warn("upstream failure", "request_id", reqID, "error", err.Error())
		httputil.BadGateway(w, upstreamMessage(upErr))
	case errors.As(err, &noData):
		httputil.BadGateway(w, noData.Error())
	case errors.Is(err, context.Canceled):
		logger.Info("request cancelled by client", "request_id", reqID)
		w.WriteHeader(statusClientClosedRequest)
	default:
		logger.Error("chart request failed", "request_id", reqID, "error", err.Error())
		httputil.Error(w, http.StatusInternalServerError, "An internal error occurred")
	}
}

func authMessage(err *chart.UpstreamAuthError) string {
	return "Upstream authentication failed (" + err.Reason + "). The upstream access token must be refreshed or configured."
}

func upstreamMessage(err *chart.UpstreamError) string {
	if err.StatusCode != 0 {
		return "Upstream chart service returned status " + strconv.Itoa(err.StatusCode) + "."
	}
	return "Upstream chart service is unavailable."
}
