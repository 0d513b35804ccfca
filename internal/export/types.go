// Package export renders a processed job's cut list in formats editing
// tools can import.
package export

import "time"

// Cut is one delivered scene on the source timeline.
type Cut struct {
	Name   string
	Source string
	Start  time.Duration
	End    time.Duration
}

func (c Cut) Duration() time.Duration { return c.End - c.Start }
