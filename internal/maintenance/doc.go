// Package maintenance runs chatd's periodic housekeeping.
//
// One Runner owns four jobs, executed together once at startup and after
// every server-local midnight: pruning messages past the 30-day retention
// window, removing empty conversations past the same window, clearing
// expired sessions, and resetting every user's daily message count. The
// daily reset complements the lazy per-request reset in the quota gate.
//
// Jobs interact with the rest of the system only through the store and
// carry their own failure handling; an error is logged and retried on the
// next tick.
package maintenance
