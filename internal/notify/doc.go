// Package notify turns committed alert transitions into outbound webhook
// deliveries. The formatter renders a transition payload for a target
// format (generic, slack, discord); the dispatcher fans a request out to
// every enabled destination on a bounded worker queue and writes one
// audit record per delivery attempt.
package notify
