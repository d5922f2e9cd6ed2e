// Package httpserver exposes the delivery core over a small JSON API.
//
// All endpoints live under /v1. Mutating operations are POSTs with JSON
// bodies; reads are GETs. Cursor operations return {"applied": bool} where
// false means the request was refused or was a no-op, never an error.
// When metrics are enabled the Prometheus handler is mounted at /metrics.
package httpserver
