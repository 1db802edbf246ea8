package equipment

import "time"

// ===== Requests =====

type CreateEquipmentRequest struct {
	Code       string   `json:"code" binding:"required"`
	Name       string   `json:"name" binding:"required"`
	CategoryID uint     `json:"category_id" binding:"required"`
	Cost       *float64 `json:"cost,omitempty"`
	AcquiredOn *string  `json:"acquired_on,omitempty"` // "2006-01-02"
	Notes      *string  `json:"notes,omitempty"`
}

type UpdateEquipmentRequest struct {
	Name       *string  `json:"name,omitempty"`
	CategoryID *uint    `json:"category_id,omitempty"`
	Cost       *float64 `json:"cost,omitempty"`
	Status     *string  `json:"status,omitempty"`
	Notes      *string  `json:"notes,omitempty"`
}

// ===== Responses =====

type EquipmentResponse struct {
	EquipmentID uint64     `json:"equipment_id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	CategoryID  uint       `json:"category_id"`
	Cost        *float64   `json:"cost,omitempty"`
	Status      string     `json:"status"`
	AcquiredOn  *time.Time `json:"acquired_on,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
