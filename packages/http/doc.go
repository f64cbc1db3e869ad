// Package http provides the HTTP session used by the smoke suite.
//
// It wraps the standard library's http package with:
//   - A single keep-alive client shared by every request of a run
//   - Default headers applied to every request
//   - Optional request pacing through a token bucket
//   - Proxy, TLS verification and redirect options
//   - Response capture with body fully read and timing recorded
package http
