// Package engine keeps both sides of a synced debt consistent.
//
// It exposes the intention protocol (GetIntentions, AcceptIntention,
// AcceptAllIntentions) and the mutation orchestrators (Add, Update, Remove).
// Every batchable operation goes through a per-account batch.Coalescer:
// concurrent calls from one account share a single read phase, then each
// logical call commits its own transaction so one call's failure never
// reaches another.
//
// Conflicts between the two sides are never resolved with row locks. A row's
// locked timestamp is its logical clock; the strictly fresher side wins and
// an accept against an equal or fresher row fails as reciprocal-forbidden.
//
// All instants produced by the engine are truncated to milliseconds, the
// precision the store persists.
package engine
