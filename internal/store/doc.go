// Package store provides SQLite-backed durable storage for the debt ledger.
//
// Tables:
//   - accounts: account holders
//   - account_settings: per-account manual_accept_debts flag (absent = auto-accept)
//   - users: account-scoped contacts, optionally connected to another account
//   - debts: one row per (id, owner_account_id); a synced obligation is two
//     rows sharing id
//
// # Critical Patterns
//
// Receipt Dedup:
//   - Partial UNIQUE(owner_account_id, user_id, receipt_id) WHERE receipt_id IS NOT NULL
//   - Prevents charging one counterparty twice for one receipt
//
// Logical Lock Ordering:
//   - locked_timestamp is compared, never trusted as wall time
//   - Intention queries ORDER BY locked_timestamp DESC, id DESC
//
// No Pessimistic Locks:
//   - Concurrent writers of one id are resolved by the ledger freshness rule
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Instants are stored as Unix milliseconds and amounts as fixed two-digit
// decimal strings; see codec.go.
package store
