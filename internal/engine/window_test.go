package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ids(occ []NextOccurrence) []int64 {
	out := make([]int64, len(occ))
	for i, o := range occ {
		out[i] = o.AnchorID
	}
	return out
}

// TestComputeUpcoming_Example covers the reference dashboard scenario.
func TestComputeUpcoming_Example(t *testing.T) {
	ref := date(2024, 3, 10)
	anchors := []Anchor{
		{ID: 1, Month: time.March, Day: 15},
		{ID: 2, Month: time.April, Day: 9},
		{ID: 3, Month: time.January, Day: 1},
	}

	got, err := ComputeUpcoming(ref, 30, anchors)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, NextOccurrence{AnchorID: 1, Date: date(2024, 3, 15), DaysUntil: 5}, got[0])
	assert.Equal(t, NextOccurrence{AnchorID: 2, Date: date(2024, 4, 9), DaysUntil: 30}, got[1])

	// The excluded anchor is 297 days away.
	_, days, err := Next(ref, time.January, 1)
	require.NoError(t, err)
	assert.Equal(t, 297, days)
}

func TestComputeUpcoming_SortedAndStable(t *testing.T) {
	ref := date(2025, 6, 1)
	anchors := []Anchor{
		{ID: 10, Month: time.June, Day: 20},
		{ID: 11, Month: time.June, Day: 2},
		{ID: 12, Month: time.June, Day: 20},
		{ID: 13, Month: time.June, Day: 1},
		{ID: 14, Month: time.June, Day: 2},
	}

	got, err := ComputeUpcoming(ref, 30, anchors)
	require.NoError(t, err)

	assert.Equal(t, []int64{13, 11, 14, 10, 12}, ids(got))
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].DaysUntil, got[i].DaysUntil)
	}
}

func TestComputeUpcoming_WindowBoundary(t *testing.T) {
	ref := date(2025, 1, 1)
	anchors := []Anchor{
		{ID: 1, Month: time.January, Day: 11}, // 10 days
		{ID: 2, Month: time.January, Day: 12}, // 11 days
	}

	got, err := ComputeUpcoming(ref, 10, anchors)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(got), "daysUntil == window is included, window+1 is not")
}

func TestComputeUpcoming_YearWraparound(t *testing.T) {
	ref := date(2024, 12, 20)
	got, err := ComputeUpcoming(ref, 30, []Anchor{{ID: 1, Month: time.January, Day: 5}})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, date(2025, 1, 5), got[0].Date)
	assert.Equal(t, 16, got[0].DaysUntil)
}

func TestComputeUpcoming_TodayIncluded(t *testing.T) {
	// Time of day and location must not matter, only the calendar date.
	east := time.FixedZone("UTC+2", 2*60*60)
	ref := time.Date(2025, 7, 14, 23, 59, 0, 0, east)

	got, err := ComputeUpcoming(ref, 0, []Anchor{
		{ID: 1, Month: time.July, Day: 14},
		{ID: 2, Month: time.July, Day: 15},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].AnchorID)
	assert.Equal(t, 0, got[0].DaysUntil)
	assert.Equal(t, date(2025, 7, 14), got[0].Date)
}

func TestComputeUpcoming_LeapDay(t *testing.T) {
	leapling := []Anchor{{ID: 1, Month: time.February, Day: 29}}

	tests := []struct {
		name     string
		ref      time.Time
		window   int
		wantDate time.Time
		wantDays int
	}{
		{
			name:     "Non-leap year clamps to Feb 28",
			ref:      date(2025, 2, 1),
			window:   30,
			wantDate: date(2025, 2, 28),
			wantDays: 27,
		},
		{
			name:     "Leap year keeps Feb 29",
			ref:      date(2024, 1, 1),
			window:   FullYearWindow,
			wantDate: date(2024, 2, 29),
			wantDays: 59,
		},
		{
			name:     "Passed this year, next year is non-leap",
			ref:      date(2024, 3, 1),
			window:   FullYearWindow,
			wantDate: date(2025, 2, 28),
			wantDays: 364,
		},
		{
			name:     "Passed this year, next year is leap",
			ref:      date(2027, 3, 1),
			window:   FullYearWindow,
			wantDate: date(2028, 2, 29),
			wantDays: 365,
		},
		{
			name:     "Clamped day is today",
			ref:      date(2025, 2, 28),
			window:   0,
			wantDate: date(2025, 2, 28),
			wantDays: 0,
		},
		{
			name:     "Century non-leap year",
			ref:      date(2100, 1, 1),
			window:   FullYearWindow,
			wantDate: date(2100, 2, 28),
			wantDays: 58,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeUpcoming(tt.ref, tt.window, leapling)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantDate, got[0].Date)
			assert.Equal(t, tt.wantDays, got[0].DaysUntil)
		})
	}
}

func TestComputeUpcoming_DuplicatesPreserved(t *testing.T) {
	ref := date(2025, 5, 1)
	anchors := []Anchor{
		{ID: 7, Month: time.May, Day: 3},
		{ID: 3, Month: time.May, Day: 2},
		{ID: 5, Month: time.May, Day: 3},
	}

	got, err := ComputeUpcoming(ref, 5, anchors)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7, 5}, ids(got))
}

func TestComputeUpcoming_Empty(t *testing.T) {
	for _, window := range []int{0, 30, FullYearWindow} {
		got, err := ComputeUpcoming(date(2025, 1, 1), window, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestComputeUpcoming_InvalidArgument(t *testing.T) {
	tests := []struct {
		name    string
		window  int
		anchors []Anchor
	}{
		{"Negative window with no anchors", -1, nil},
		{"Negative window with anchors", -1, []Anchor{{ID: 1, Month: time.May, Day: 1}}},
		{"April 31", 30, []Anchor{{ID: 1, Month: time.April, Day: 31}}},
		{"February 30", 30, []Anchor{{ID: 1, Month: time.February, Day: 30}}},
		{"Month 13", 30, []Anchor{{ID: 1, Month: 13, Day: 1}}},
		{"Month 0", 30, []Anchor{{ID: 1, Month: 0, Day: 1}}},
		{"Day 0", 30, []Anchor{{ID: 1, Month: time.May, Day: 0}}},
		{"Invalid after valid", 30, []Anchor{
			{ID: 1, Month: time.May, Day: 1},
			{ID: 2, Month: time.June, Day: 31},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeUpcoming(date(2025, 1, 1), tt.window, tt.anchors)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidArgument))
			assert.Nil(t, got, "No partial result on failure")
		})
	}
}

func TestComputeUpcoming_DoesNotMutateInput(t *testing.T) {
	anchors := []Anchor{
		{ID: 1, Month: time.December, Day: 1},
		{ID: 2, Month: time.January, Day: 2},
	}
	snapshot := append([]Anchor(nil), anchors...)

	_, err := ComputeUpcoming(date(2025, 1, 1), FullYearWindow, anchors)
	require.NoError(t, err)
	assert.Equal(t, snapshot, anchors)
}

// TestComputeUpcoming_Concurrent exercises the function from many goroutines.
// Run this with `go test -race`.
func TestComputeUpcoming_Concurrent(t *testing.T) {
	anchors := make([]Anchor, 0, 366)
	for d := date(2024, 1, 1); d.Year() == 2024; d = d.AddDate(0, 0, 1) {
		anchors = append(anchors, AnchorOf(int64(d.YearDay()), d))
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			ref := date(2025, 1, 1).AddDate(0, 0, offset)
			got, err := ComputeUpcoming(ref, FullYearWindow, anchors)
			assert.NoError(t, err)
			assert.Len(t, got, len(anchors))
		}(i * 20)
	}
	wg.Wait()
}

func TestValidateMonthDay(t *testing.T) {
	assert.NoError(t, ValidateMonthDay(time.February, 29))
	assert.NoError(t, ValidateMonthDay(time.December, 31))
	assert.ErrorIs(t, ValidateMonthDay(time.November, 31), ErrInvalidArgument)
	assert.ErrorIs(t, ValidateMonthDay(time.February, 30), ErrInvalidArgument)
}

func TestIsLeapYear(t *testing.T) {
	assert.True(t, IsLeapYear(2000))
	assert.True(t, IsLeapYear(2024))
	assert.False(t, IsLeapYear(1900))
	assert.False(t, IsLeapYear(2025))
}

func TestAgeAt(t *testing.T) {
	assert.Equal(t, 35, AgeAt(date(1990, 6, 15), date(2025, 6, 15)))
	assert.Equal(t, 0, AgeAt(date(2025, 5, 1), date(2025, 5, 1)))
}
