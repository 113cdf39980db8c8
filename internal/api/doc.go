// Package api implements the HTTP surface: sample ingestion, alert and
// destination management, the audit history listing, and the derived
// display-state endpoint. Ingestion is fire-and-forget: the sample is
// stored, a 202 returned, and evaluation runs on its own goroutine.
package api
