package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestLateDays(t *testing.T) {
	tests := []struct {
		name       string
		dueDate    string
		returnDate string
		want       int
	}{
		{"five days late", "2024-01-15", "2024-01-20", 5},
		{"returned early", "2024-01-15", "2024-01-10", 0},
		{"returned on due date", "2024-01-15", "2024-01-15", 0},
		{"one day late", "2024-01-15", "2024-01-16", 1},
		{"late across month boundary", "2024-01-28", "2024-02-03", 6},
		{"late across leap day", "2024-02-27", "2024-03-01", 3},
		{"late across year boundary", "2023-12-30", "2024-01-02", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LateDays(day(tt.dueDate), day(tt.returnDate)))
		})
	}
}

func TestLateDaysTruncatesPartialDays(t *testing.T) {
	due := day("2024-01-15")

	// 23 hours past due is still zero whole days.
	assert.Equal(t, 0, LateDays(due, due.Add(23*time.Hour)))
	assert.Equal(t, 1, LateDays(due, due.Add(24*time.Hour)))
	assert.Equal(t, 1, LateDays(due, due.Add(47*time.Hour)))
}

func TestLateDaysProperties(t *testing.T) {
	epoch := day("2020-01-01")

	rapid.Check(t, func(t *rapid.T) {
		dueOffset := rapid.IntRange(0, 5000).Draw(t, "dueOffset")
		returnOffset := rapid.IntRange(0, 5000).Draw(t, "returnOffset")

		due := epoch.AddDate(0, 0, dueOffset)
		returned := epoch.AddDate(0, 0, returnOffset)

		got := LateDays(due, returned)
		if got < 0 {
			t.Fatalf("late days went negative: %d", got)
		}
		if returnOffset <= dueOffset && got != 0 {
			t.Fatalf("return on or before due date must be 0 late days, got %d", got)
		}
		if returnOffset > dueOffset && got != returnOffset-dueOffset {
			t.Fatalf("whole-day difference: want %d, got %d", returnOffset-dueOffset, got)
		}
	})
}
