package domain

import "time"

type RentalStatus string

const (
	RentalStatusActive    RentalStatus = "active"
	RentalStatusCompleted RentalStatus = "completed"
	RentalStatusExpired   RentalStatus = "expired"
	RentalStatusCancelled RentalStatus = "cancelled"
)

// ValidRentalStatus reports whether s is one of the known rental states.
func ValidRentalStatus(s RentalStatus) bool {
	switch s {
	case RentalStatusActive, RentalStatusCompleted, RentalStatusExpired, RentalStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is a final state. No transition leaves a
// terminal state.
func (s RentalStatus) Terminal() bool {
	return s == RentalStatusCompleted || s == RentalStatusExpired || s == RentalStatusCancelled
}

// Rental is a time-bounded booking of one garment, optionally tied to a
// client. Active rentals on the same garment must have pairwise
// non-overlapping intervals.
type Rental struct {
	ID        int64        `json:"id"`
	GarmentID int64        `json:"garment_id"`
	ClientID  *int64       `json:"client_id,omitempty"`
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
	Status    RentalStatus `json:"status"`
	Cost      *float64     `json:"cost,omitempty"`
	Notes     string       `json:"notes"`
	// Display fields denormalized from the joined client/garment rows.
	ClientName  string    `json:"client_name"`
	GarmentName string    `json:"garment_name"`
	CreatedOn   time.Time `json:"created_on"`
	UpdatedOn   time.Time `json:"updated_on"`
}

// RentalPatch is a partial update. Nil fields are left unchanged.
type RentalPatch struct {
	StartTime *time.Time
	EndTime   *time.Time
	Status    *RentalStatus
	Cost      *float64
	Notes     *string
}

// RentalFilter narrows rental listings.
type RentalFilter struct {
	ClientID  *int64
	GarmentID *int64
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// RentalStats summarizes the ledger for the dashboard.
type RentalStats struct {
	Total        int64   `json:"total"`
	Active       int64   `json:"active"`
	Completed    int64   `json:"completed"`
	MonthRevenue float64 `json:"month_revenue"`
	TotalRevenue float64 `json:"total_revenue"`
}

// Interval is a rental time window used for conflict checks.
type Interval struct {
	RentalID int64
	Start    time.Time
	End      time.Time
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Back-to-back bookings sharing an exact
// boundary instant do not conflict.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FindConflict returns the first existing interval that overlaps
// [start, end), if any.
func FindConflict(existing []Interval, start, end time.Time) (Interval, bool) {
	for _, iv := range existing {
		if Overlaps(iv.Start, iv.End, start, end) {
			return iv, true
		}
	}
	return Interval{}, false
}
