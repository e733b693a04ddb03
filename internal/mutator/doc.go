// Package mutator applies member edits to plan documents.
//
// Every mutation is one locked read-modify-write cycle:
//
//  1. acquire the advisory lock for the plan (or for each touched day)
//  2. read the current plan
//  3. apply the edits through plan.Transition
//  4. write back the whole order detail
//  5. release the lock, whatever happened
//
// After a successful write the entries written are handed to a
// verify.Scheduler, which re-reads the plan once the lock is gone and
// reports lost updates. The caller gets the written entries back
// immediately and never sees a mismatch.
//
// Store failures classified STORE_UNAVAILABLE are retried with bounded
// backoff inside the lock. A lock that cannot be acquired in time fails
// with LOCK_TIMEOUT; the edit did not apply.
package mutator
