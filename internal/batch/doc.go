// Package batch coordinates multi-record writes and identifier reads.
//
// A Coordinator is created per request. Units are added one at a time and
// either run immediately or, for uniform identifier batches in continue
// mode, are deferred and resolved by Commit with one IN-style statement.
//
// Error handling follows the request flags:
//
//   - rollback: the first failure aborts the request and undoes what the
//     store allows. With native transactions that is everything; with atomic
//     batches the queued writes are dropped; otherwise rollback is
//     best-effort and earlier writes remain.
//   - continue: failures are recorded per unit and Commit reports a
//     *dberr.BatchError listing successes and failures by index.
//   - neither: the first failure aborts without rollback. Writes already
//     applied remain.
//
// Commit always yields one Outcome per unit, in submission order.
package batch
