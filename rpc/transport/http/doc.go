// Package http implements the http admin endpoint of an lKV server. It runs
// next to the line protocol transport and exposes:
//
//   - GET /metrics: the prometheus metrics of the server
//   - POST /command: executes the request line in the body against the same
//     handler as the line protocol and returns the response as plain text
//
// With log level debug every request is logged with its status code and duration.
package http
