// Package runner executes the backend smoke suite.
//
// It provides functionality for:
//   - Holding one HTTP session with fixed JSON headers for the whole run
//   - Running the fixed list of contact, quote and error-handling cases in order
//   - Isolating every case so an error or panic only fails that case
//   - Recording one TestResult per executed case, in execution order
//   - Summarizing totals, pass rate and request latency
//
// Execution is strictly sequential: one request is in flight at a time.
package runner
