package directory

import "time"

// ===== Requests =====

type CreatePersonRequest struct {
	Code      string  `json:"code" binding:"required"`
	LastName  string  `json:"last_name" binding:"required"`
	FirstName string  `json:"first_name" binding:"required"`
	Email     *string `json:"email,omitempty"`
	Lab       *string `json:"lab,omitempty"`
}

type UpdatePersonRequest struct {
	LastName  *string `json:"last_name,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Lab       *string `json:"lab,omitempty"`
}

// ===== Responses =====

type PersonResponse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	LastName  string    `json:"last_name"`
	FirstName string    `json:"first_name"`
	Email     *string   `json:"email,omitempty"`
	Lab       *string   `json:"lab,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
