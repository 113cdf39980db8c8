// Package engine implements the alert evaluation core: the per-alert
// hysteresis state machine that turns a stream of breach/non-breach
// observations into entered/active/recovered transitions, and the
// missing-data monitor that synthesizes breaches when an expected
// reporting interval is missed. State changes are persisted before any
// notification is handed to the dispatcher.
package engine
