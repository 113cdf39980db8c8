// Package model holds the shared data types of the alerting engine:
// alert configurations, runtime counters, destinations, audit records,
// and notification payloads. It is deliberately dependency-free.
package model
