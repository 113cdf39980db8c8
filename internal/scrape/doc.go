// Package scrape implements pull-mode ingestion: Prometheus exposition
// endpoints are fetched on an interval and each readable series becomes a
// sample on the same path push ingestion uses.
package scrape
