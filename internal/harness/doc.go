// Package harness runs ledger scenarios against a real engine.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: auto_accept_add
//	description: "Alice adds a debt; Bob's mirror is written"
//	accounts:
//	  - id: alice
//	  - id: bob
//	    manual_accept_debts: true
//	connections:
//	  - [alice, bob]
//	steps:
//	  - as: alice
//	    op: add
//	    save: lunch
//	    args: { with: bob, amount: "-12.50", currency_code: EUR, timestamp: "2024-05-01" }
//	    expect:
//	      result: { reverse_accepted: false }
//	  - concurrent:
//	      - { as: alice, op: remove, args: { id: lunch } }
//	      - { as: bob, op: accept, args: { id: lunch }, expect: { error: NOT_FOUND } }
//	assertions:
//	  - type: debt
//	    owner: bob
//	    id: lunch
//	    expect: { amount: "12.50", locked: true }
//
// Steps name the counterparty by account ("with: bob"); the harness resolves
// it to the caller's contact for that account. Debt ids returned by add are
// saved under a label and may be referenced by that label afterwards.
//
// # Assertion Types
//
//   - debt: the owner's row with the id exists and matches expect (subset)
//   - debt_absent: the owner holds no row with the id
//   - debt_count: the owner holds exactly count rows
//   - mirror: both sides hold the id and the rows mirror each other
//
// # Deterministic Testing
//
// Every scenario runs in a fresh in-memory store with a testutil.StepClock
// and testutil.SequenceIDs. Golden snapshots render ids through their
// labels and users through their accounts, so concurrent groups whose
// arrival order varies still produce identical snapshots.
package harness
