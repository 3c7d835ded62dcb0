package domain

import (
	"time"

	"github.com/google/uuid"
)

type Stand struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Location       *string   `json:"location"`
	Description    *string   `json:"description"`
	OperatingHours *string   `json:"operating_hours"`
	IsActive       bool      `json:"is_active"`
	AvailableStock int       `json:"available_stock"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
