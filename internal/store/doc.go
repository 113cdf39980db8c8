// Package store provides SQLite persistence for alert configurations,
// per-alert runtime state, notification destinations, the delivery audit
// log, and raw metric samples. Schema changes are applied through a
// versioned migration list at open time.
package store
