package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name   string
		aStart string
		aEnd   string
		bStart string
		bEnd   string
		want   bool
	}{
		{
			name:   "disjoint intervals",
			aStart: "2025-03-01T10:00:00Z", aEnd: "2025-03-01T12:00:00Z",
			bStart: "2025-03-01T14:00:00Z", bEnd: "2025-03-01T16:00:00Z",
			want: false,
		},
		{
			name:   "partial overlap",
			aStart: "2025-03-01T10:00:00Z", aEnd: "2025-03-01T12:00:00Z",
			bStart: "2025-03-01T11:00:00Z", bEnd: "2025-03-01T13:00:00Z",
			want: true,
		},
		{
			name:   "contained interval",
			aStart: "2025-03-01T10:00:00Z", aEnd: "2025-03-01T16:00:00Z",
			bStart: "2025-03-01T11:00:00Z", bEnd: "2025-03-01T12:00:00Z",
			want: true,
		},
		{
			name:   "identical intervals",
			aStart: "2025-03-01T10:00:00Z", aEnd: "2025-03-01T12:00:00Z",
			bStart: "2025-03-01T10:00:00Z", bEnd: "2025-03-01T12:00:00Z",
			want: true,
		},
		{
			// Half-open semantics: a booking ending at noon does not
			// conflict with one starting at noon.
			name:   "touching endpoints",
			aStart: "2025-03-01T10:00:00Z", aEnd: "2025-03-01T12:00:00Z",
			bStart: "2025-03-01T12:00:00Z", bEnd: "2025-03-01T13:00:00Z",
			want: false,
		},
		{
			name:   "touching endpoints reversed",
			aStart: "2025-03-01T12:00:00Z", aEnd: "2025-03-01T13:00:00Z",
			bStart: "2025-03-01T10:00:00Z", bEnd: "2025-03-01T12:00:00Z",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Overlaps(ts(t, tt.aStart), ts(t, tt.aEnd), ts(t, tt.bStart), ts(t, tt.bEnd))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOverlapsIsSymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		hour := func(label string) (time.Time, time.Time) {
			s := rapid.Int64Range(0, 500).Draw(t, label+"_start")
			d := rapid.Int64Range(1, 100).Draw(t, label+"_len")
			return base.Add(time.Duration(s) * time.Hour), base.Add(time.Duration(s+d) * time.Hour)
		}
		aStart, aEnd := hour("a")
		bStart, bEnd := hour("b")

		if Overlaps(aStart, aEnd, bStart, bEnd) != Overlaps(bStart, bEnd, aStart, aEnd) {
			t.Fatalf("overlap check is not symmetric for [%v,%v) and [%v,%v)", aStart, aEnd, bStart, bEnd)
		}
	})
}

func TestFindConflict(t *testing.T) {
	existing := []Interval{
		{RentalID: 1, Start: ts(t, "2025-03-01T10:00:00Z"), End: ts(t, "2025-03-01T12:00:00Z")},
		{RentalID: 2, Start: ts(t, "2025-03-01T14:00:00Z"), End: ts(t, "2025-03-01T16:00:00Z")},
	}

	iv, ok := FindConflict(existing, ts(t, "2025-03-01T11:00:00Z"), ts(t, "2025-03-01T13:00:00Z"))
	require.True(t, ok)
	assert.Equal(t, int64(1), iv.RentalID)

	_, ok = FindConflict(existing, ts(t, "2025-03-01T12:00:00Z"), ts(t, "2025-03-01T14:00:00Z"))
	assert.False(t, ok, "gap between bookings must be bookable")

	_, ok = FindConflict(nil, ts(t, "2025-03-01T11:00:00Z"), ts(t, "2025-03-01T13:00:00Z"))
	assert.False(t, ok)
}

func TestRentalStatusTerminal(t *testing.T) {
	assert.False(t, RentalStatusActive.Terminal())
	assert.True(t, RentalStatusCompleted.Terminal())
	assert.True(t, RentalStatusExpired.Terminal())
	assert.True(t, RentalStatusCancelled.Terminal())
}

func TestErrorCodes(t *testing.T) {
	err := NewBookingConflict(7, ts(t, "2025-03-01T10:00:00Z"), ts(t, "2025-03-01T12:00:00Z"), 3)
	assert.Equal(t, ErrCodeBookingConflict, CodeOf(err))
	assert.Contains(t, err.Error(), "garment 7")
	assert.Contains(t, err.Error(), "rental 3")

	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.True(t, IsCode(NewNotFound("rental", 9), ErrCodeNotFound))
}
