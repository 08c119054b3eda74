package domain

import (
	"fmt"
	"strings"
	"time"
)

// EventDescription is the human-readable definition of what a market is
// about. Once published its content hash identifies it everywhere else.
type EventDescription struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Outcomes       []string  `json:"outcomes"`
	ResolutionDate time.Time `json:"resolutionDate"`
	ContentHash    string    `json:"contentHash,omitempty"`
}

// Validate checks the fields required before a description can be
// published.
func (d EventDescription) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: description title is required", ErrInvalidRecord)
	}
	if d.ResolutionDate.IsZero() {
		return fmt.Errorf("%w: description resolution date is required", ErrInvalidRecord)
	}
	for i, o := range d.Outcomes {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("%w: outcome %d is empty", ErrInvalidRecord, i)
		}
	}
	return nil
}
