// Package filter holds the predicate applied to events before display.
package filter

import (
	"strings"

	"github.com/rileyhilliard/dnstail/internal/event"
)

// Criteria selects which events are shown. The zero value admits everything.
type Criteria struct {
	// Identity, when non-empty, requires a case-insensitive substring match
	// against the resolved display name or the raw client address, so
	// operators can filter by hostname or IP interchangeably.
	Identity string

	// BlockedOnly admits only blocked queries.
	BlockedOnly bool
}

// Empty reports whether no criteria are set.
func (c Criteria) Empty() bool {
	return c.Identity == "" && !c.BlockedOnly
}

// Matches reports whether an event with the given display name passes.
// Both criteria, when present, must hold.
func (c Criteria) Matches(ev event.Event, displayName string) bool {
	if c.BlockedOnly && ev.Action != event.ActionBlocked {
		return false
	}

	if c.Identity != "" {
		needle := strings.ToLower(c.Identity)
		name := strings.ToLower(displayName)
		addr := strings.ToLower(ev.Client)
		if !strings.Contains(name, needle) && !strings.Contains(addr, needle) {
			return false
		}
	}

	return true
}
