package ledger

import "time"

// LateDays reports how many whole days returnDate falls after dueDate.
// Partial days truncate toward zero; a return on or before the due date
// counts as zero late days.
func LateDays(dueDate, returnDate time.Time) int {
	days := returnDate.Sub(dueDate) / (24 * time.Hour)
	if days < 0 {
		return 0
	}
	return int(days)
}
