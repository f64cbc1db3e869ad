// Package assertions checks HTTP responses from the backend under test.
//
// Supported assertions:
//   - Status code membership (status in 400, 422)
//   - Truthiness of a body field (body.success truthy)
//   - Presence of a body field (body.ticketNumber exists)
//   - String prefix and substring checks (body.referenceNumber startsWith DEV-)
//   - JSON Schema validation against the embedded response schemas
//
// Body paths use gjson syntax after the "body." prefix.
package assertions
