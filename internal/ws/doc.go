// Package ws streams committed alert transitions to WebSocket clients.
// The hub holds the connection set; the evaluation path pushes into it
// after each transition persists.
package ws
