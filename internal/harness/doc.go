// Package harness runs import scenarios against a fresh ledger.
//
// A scenario seeds an optional target dataset, applies one or more backup
// documents with an import strategy, then checks the resulting ledger.
//
// # Scenario Format
//
// Scenarios are YAML files. Paths are relative to the scenario file:
//
//	name: merge_into_existing
//	description: "Merging A into B reuses B's matching category"
//	target: ../fixtures/target.json
//	steps:
//	  - import: ../fixtures/source.json
//	    strategy: merge
//	    profile: p-b
//	    expect:
//	      added: { categories: 1, transactions: 5 }
//	      skipped: { categories: 1 }
//	assertions:
//	  - type: count
//	    entity: transactions
//	    profile: p-b
//	    count: 5
//	  - type: record
//	    entity: transactions
//	    profile: p-b
//	    where: { note: groceries }
//	    expect: { categoryId: cat-b-food }
//	  - type: integrity
//	    profile: p-b
//
// # Assertion Types
//
//   - count: the profile holds exactly count records of entity
//   - record: some record of entity matches where and expect (subset match)
//   - integrity: every reference inside the profile resolves
//
// # Deterministic Runs
//
// Each run uses an in-memory SQLite database, sequential ids ("id-0001", ...)
// and a clock frozen at testutil.Epoch, so the reports and the final ledger
// are identical across runs and can be compared against golden files.
package harness
