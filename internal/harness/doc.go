// Package harness runs YAML scenarios against a fully wired runtime.
//
// A scenario seeds one plan, applies a sequence of steps (member edits,
// edit batches, concurrent edit groups, sub-order transitions and the
// deadline sweep) and then checks assertions against the settled state:
//
//	name: concurrent_edits
//	description: Two members pick food at the same time
//	seed:
//	  plan_id: plan-1
//	  ...
//	steps:
//	  - concurrent:
//	      - actor: alice
//	        edit: {day: 2024-03-04, member: alice, food: f1}
//	      - actor: bob
//	        edit: {day: 2024-03-04, member: bob, food: f2}
//	assertions:
//	  - type: entry
//	    day: 2024-03-04
//	    member: bob
//	    status: joined
//	    food: f2
//
// Each run uses its own database and a stepping clock, and the runtime is
// closed before assertions are checked, so every queued verification has
// finished. The trace and final state contain no generated identifiers or
// timestamps and can be compared against golden files with RunWithGolden.
package harness
