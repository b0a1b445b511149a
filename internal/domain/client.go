package domain

import "time"

// Client is a person who rents garments. Soft deletion clears Active
// rather than removing the row so historic rentals keep their names.
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Active    bool      `json:"active"`
	CreatedOn time.Time `json:"created_on"`
}
