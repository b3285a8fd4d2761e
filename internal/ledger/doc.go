// Package ledger defines the debt ledger data model shared by both sides of a
// bilateral obligation, the pure comparator used to reconcile two views of the
// same debt, and the coded error taxonomy surfaced to callers.
//
// # Mirrored Pairs
//
// A single obligation between two connected accounts is stored as zero, one or
// two Debt rows sharing one ID. When both rows exist and are synced:
//
//   - mine.Amount == -theirs.Amount
//   - mine.CurrencyCode == theirs.CurrencyCode
//   - mine.Timestamp == theirs.Timestamp
//
// A one-sided row is valid and means "not yet synced".
//
// # Freshness Ordering
//
// LockedTimestamp is a per-row logical clock. A nil lock is never
// authoritative. Between two rows of one ID the strictly later lock wins and
// the other side may accept from it; an equal or earlier lock closes that
// path and the other side must accept from this side instead.
//
// Conflict resolution is optimistic. Rows are never locked pessimistically:
// a stale write is rejected by the freshness predicate, not serialised.
package ledger
