// Package server exposes the analysis engine over HTTP with gin.
//
// Routes:
//
//	GET  /health                          liveness
//	GET  /v1/schema                       JSON Schema of the report
//	POST /v1/analyses                     analyze {"path": "..."}; 200 with the report
//	GET  /v1/analyses/:id                 stored report
//	GET  /v1/assets/:fingerprint/history  stored runs of one asset
//
// Runs without a report map to 422 with status "indeterminate" when no
// channel produced evidence and to 499 with status "cancelled" when the
// client went away or the request timed out.
package server
