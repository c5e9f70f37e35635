package core

import (
	"fmt"
	"time"
)

// InvoiceNumber formats the globally unique invoice number for the seq-th
// payment of a day: INV-20260828-0001. Sequences are per day and assigned
// from a locked counter row so numbering is monotonic and gap-free within
// the day.
func InvoiceNumber(day time.Time, seq int) string {
	return fmt.Sprintf("INV-%s-%04d", day.Format("20060102"), seq)
}
