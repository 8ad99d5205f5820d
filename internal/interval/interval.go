package interval

import (
	"errors"
	"time"
)

// ErrInvalid reports an interval whose start is not strictly before its end.
var ErrInvalid = errors.New("interval start must be before end")

// Interval is a half-open time window [Start, End). End is exclusive, so
// back-to-back intervals share a boundary without overlapping.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds a validated interval.
func New(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Validate checks the Start < End invariant.
func (iv Interval) Validate() error {
	if !iv.Start.Before(iv.End) {
		return ErrInvalid
	}
	return nil
}

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints do not overlap. This predicate is the only overlap definition in
// the codebase; conflict checks must go through it rather than re-deriving
// the comparison.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// Overlaps is the method form of the package-level predicate.
func (iv Interval) Overlaps(other Interval) bool {
	return Overlaps(iv, other)
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Equal compares both endpoints with time.Equal.
func (iv Interval) Equal(other Interval) bool {
	return iv.Start.Equal(other.Start) && iv.End.Equal(other.End)
}
