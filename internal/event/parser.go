package event

import (
	"regexp"
	"strings"
	"time"
)

// queryPattern matches Pi-hole/dnsmasq query lines:
//
//	Jan 01 12:00:00 dnsmasq[1]: query[A] example.com from 192.168.1.5
//
// The client address is the trailing token after "from".
var queryPattern = regexp.MustCompile(`query\[[^\]]*\].*?from\s+(\S+)$`)

// blockMarkers identify block/deny lines. These lines name the domain but
// not the client; dnsmasq logs them immediately after the query line that
// triggered them.
var blockMarkers = []string{
	"gravity blocked",
	"exactly blocked",
	"exactly denied",
}

// Parser turns raw log lines from one source into Events.
//
// A Parser is stateful and per-source: block lines carry no client address,
// so they are attributed to the client of the most recent query line seen on
// the same source. Parsers must not be shared across sources.
type Parser struct {
	source     string
	lastClient string
}

// NewParser creates a parser for the given source label.
func NewParser(source string) *Parser {
	return &Parser{source: source}
}

// Parse classifies a raw line. The returned bool is false for lines that
// produce no event at all (blank lines). Parse never fails: anything it
// doesn't recognize comes back as ActionOther with the raw line as Detail.
func (p *Parser) Parse(line string, at time.Time) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}

	ev := Event{
		Source:     p.source,
		ReceivedAt: at,
		Detail:     line,
	}

	if m := queryPattern.FindStringSubmatchIndex(line); m != nil {
		client := line[m[2]:m[3]]
		// Detail is everything before " from <client>".
		detail := strings.TrimSpace(line[:m[2]])
		detail = strings.TrimSpace(strings.TrimSuffix(detail, "from"))
		ev.Action = ActionQuery
		ev.Client = client
		ev.Detail = detail
		p.lastClient = client
		return ev, true
	}

	lower := strings.ToLower(line)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			if p.lastClient == "" {
				// Block line before any query line: no client to pin
				// it on, treat as unrecognized.
				ev.Action = ActionOther
				return ev, true
			}
			ev.Action = ActionBlocked
			ev.Client = p.lastClient
			return ev, true
		}
	}

	ev.Action = ActionOther
	return ev, true
}
