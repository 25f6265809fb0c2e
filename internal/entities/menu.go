package entities

import (
	"time"

	"github.com/google/uuid"
)

// MenuItem is a catalog item available for ordering. Price is stored in
// minor currency units (paisa) to avoid floating point rounding.
type MenuItem struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Category    string    `json:"category"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
