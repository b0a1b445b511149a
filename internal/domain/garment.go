package domain

import "time"

type GarmentStatus string

const (
	GarmentStatusAvailable    GarmentStatus = "available"
	GarmentStatusRented       GarmentStatus = "rented"
	GarmentStatusMaintenance  GarmentStatus = "maintenance"
	GarmentStatusOutOfService GarmentStatus = "out_of_service"
)

// ValidGarmentStatus reports whether s is one of the known garment states.
func ValidGarmentStatus(s GarmentStatus) bool {
	switch s {
	case GarmentStatusAvailable, GarmentStatusRented, GarmentStatusMaintenance, GarmentStatusOutOfService:
		return true
	}
	return false
}

// Garment is a rentable inventory item. Status available/rented follows
// the rental ledger; maintenance and out_of_service are set manually.
type Garment struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      GarmentStatus `json:"status"`
	Active      bool          `json:"active"`
	CreatedOn   time.Time     `json:"created_on"`
}
