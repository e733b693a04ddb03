// Package verify detects lost updates on plan documents.
//
// The plan store replaces whole documents without a version check, and the
// plan lock gives no guarantee once released. After a mutation unlocks, a
// Job carrying the entries the mutator wrote is handed to a Verifier, which
// re-reads the plan, compares (foodId, status, requirement) for every
// touched member, and publishes one structured Report when anything
// differs. A match is recorded and nothing is published.
//
// Verification never retries or repairs the edit. A mismatch is never
// returned to the editor; only a failure of the verifier itself is, as
// VERIFICATION_FAILURE.
package verify
