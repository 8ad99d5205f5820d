package models

import (
	"time"

	"agendum/internal/interval"
)

// Block is professional-declared unavailability. It conflicts with
// appointments exactly like a confirmed appointment does, but never moves
// through the appointment lifecycle itself.
type Block struct {
	ID             string    `json:"id"`
	ProfessionalID string    `json:"professional_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Interval returns the blocked window as a half-open interval.
func (b *Block) Interval() interval.Interval {
	return interval.Interval{Start: b.Start, End: b.End}
}
