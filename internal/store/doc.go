// Package store provides SQLite-backed storage for meal plans.
//
// The plan document is stored as one JSON column and replaced wholesale on
// every write. The store offers no compare-and-swap on plans: that is the
// contract the mutator and verifier are built against.
//
// The store also backs the read-mostly collaborators (food catalog, user
// directory), the sub-order transaction log, the alert outbox, the
// verification record, and the lease table behind the cross-process plan
// lock.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Driver errors that mean "try again later" (busy, locked, I/O, closed
// store) are reported as plan.ErrCodeStoreUnavailable.
package store
