// Package event defines the parsed representation of a Pi-hole query log
// line and the parser that produces it.
package event

import "time"

// Action classifies what a log line describes.
type Action int

const (
	// ActionQuery is an ordinary DNS query line.
	ActionQuery Action = iota
	// ActionBlocked is a query the Pi-hole declined to resolve
	// (gravity/exact block or deny).
	ActionBlocked
	// ActionOther is any line the parser doesn't recognize. These are
	// passed through so verbose mode can show raw device activity.
	ActionOther
)

// String returns the action name for logs and tests.
func (a Action) String() string {
	switch a {
	case ActionQuery:
		return "query"
	case ActionBlocked:
		return "blocked"
	default:
		return "other"
	}
}

// Event is one parsed log line. Immutable once produced.
type Event struct {
	// Source is the label of the host that produced the line.
	Source string

	// ReceivedAt is when the line arrived locally. Remote timestamps are
	// ignored: the two hosts' clocks aren't assumed synchronized and
	// dnsmasq log timestamps have no year.
	ReceivedAt time.Time

	// Client is the raw address token extracted from the line. Empty for
	// ActionOther lines.
	Client string

	// Action classifies the line.
	Action Action

	// Detail is the remaining free-text payload: the query description for
	// query lines, the full line for blocked and other lines.
	Detail string
}

// Record is an Event plus the resolved client identity, ready for display.
type Record struct {
	Event

	// ClientName is the resolved hostname, or the raw address when
	// resolution failed or never ran.
	ClientName string
}
