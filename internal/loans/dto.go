package loans

import "time"

// Loan creation request. Dates travel as "2006-01-02" strings (DATE).
type CreateLoanRequest struct {
	EquipmentCode string  `json:"equipment_code" binding:"required"`
	HolderKind    string  `json:"holder_kind" binding:"required"`
	HolderCode    string  `json:"holder_code" binding:"required"`
	AssignedOn    string  `json:"assigned_on" binding:"required"`
	Note          *string `json:"note,omitempty"`
}

type CloseLoanRequest struct {
	EquipmentCode string `json:"equipment_code" binding:"required"`
	HolderKind    string `json:"holder_kind" binding:"required"`
	HolderCode    string `json:"holder_code" binding:"required"`
	ReturnedOn    string `json:"returned_on" binding:"required"`
}

type ReopenLoanRequest struct {
	EquipmentCode string `json:"equipment_code" binding:"required"`
	HolderKind    string `json:"holder_kind" binding:"required"`
	HolderCode    string `json:"holder_code" binding:"required"`
}

type LoanResponse struct {
	LoanID        int64      `json:"loan_id"`
	LoanULID      string     `json:"loan_ulid"`
	EquipmentCode string     `json:"equipment_code"`
	HolderKind    string     `json:"holder_kind"`
	HolderCode    string     `json:"holder_code"`
	AssignedOn    time.Time  `json:"assigned_on"`
	ReturnedOn    *time.Time `json:"returned_on,omitempty"`
	Note          *string    `json:"note,omitempty"`
	Open          bool       `json:"open"`
}

func buildLoanResponse(l *Loan) LoanResponse {
	resp := LoanResponse{
		LoanID:        l.LoanID,
		LoanULID:      l.LoanULID,
		EquipmentCode: l.EquipmentCode,
		HolderKind:    string(l.HolderKind),
		HolderCode:    l.HolderCode,
		AssignedOn:    l.AssignedOn,
		Open:          l.Open(),
	}
	if l.ReturnedOn.Valid {
		val := l.ReturnedOn.Time
		resp.ReturnedOn = &val
	}
	if l.Note.Valid {
		val := l.Note.String
		resp.Note = &val
	}
	return resp
}
