package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(minute int) time.Time {
	base := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(minute) * time.Minute)
}

func TestNewValidation(t *testing.T) {
	_, err := New(at(10), at(10))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = New(at(20), at(10))
	assert.ErrorIs(t, err, ErrInvalid)

	iv, err := New(at(10), at(20))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, iv.Duration())
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"identical", Interval{at(0), at(10)}, Interval{at(0), at(10)}, true},
		{"partial", Interval{at(0), at(10)}, Interval{at(5), at(15)}, true},
		{"contained", Interval{at(0), at(30)}, Interval{at(10), at(20)}, true},
		{"touching boundary", Interval{at(0), at(10)}, Interval{at(10), at(20)}, false},
		{"disjoint", Interval{at(0), at(10)}, Interval{at(20), at(30)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			// Symmetry must hold for every pair.
			assert.Equal(t, Overlaps(tt.a, tt.b), Overlaps(tt.b, tt.a))
		})
	}
}

func TestContains(t *testing.T) {
	outer := Interval{at(0), at(60)}
	assert.True(t, outer.Contains(Interval{at(0), at(60)}))
	assert.True(t, outer.Contains(Interval{at(10), at(20)}))
	assert.False(t, outer.Contains(Interval{at(50), at(70)}))
	assert.False(t, outer.Contains(Interval{at(-10), at(10)}))
}
