// Package scan implements the screenshot scan pipeline.
//
// A submitted image moves through a fixed sequence: content hash, image-hash
// guard, vision extraction, merge, ledger record, archive. The guard runs
// before extraction so a reposted screenshot is answered from the database
// without spending a vision call, and a guard hit always ends as a skipped
// scan with zero inventory effect.
//
// Every committed attempt lands in the scan ledger together with the exact
// per-piece deltas it applied, which is what makes rollback possible: a
// rollback subtracts those deltas (floored at zero), frees the image hash
// for rescanning, and voids the record in place. History is append-only;
// nothing in this package deletes a scan row.
//
// # HTTP Endpoints
//
//   - POST /scans          : scan a screenshot (multipart; apply or preview)
//   - POST /scans/confirm  : commit a previously previewed scan
//   - POST /scans/rollback : reverse a committed scan by id or scene
//   - GET  /scans          : recent scan history
package scan
