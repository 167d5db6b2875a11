// Package httputil provides shared HTTP response helpers for handlers.
//
// Every chart handler uses these helpers instead of writing raw
// http.ResponseWriter calls, so success bodies and {"detail": ...} error
// bodies look the same on every endpoint.
package httputil
