package loans

import (
	"database/sql"
	"time"
)

// HolderKind discriminates the two kinds of borrowers sharing one
// exclusivity domain per equipment.
type HolderKind string

const (
	HolderResearcher      HolderKind = "researcher"
	HolderDoctoralStudent HolderKind = "doctoral_student"
)

func (k HolderKind) valid() bool {
	return k == HolderResearcher || k == HolderDoctoralStudent
}

// Loan is one row of equipment_loans. returned_on IS NULL means the loan
// is open, i.e. the holder currently has the equipment.
type Loan struct {
	LoanID        int64
	LoanULID      string
	EquipmentCode string
	HolderKind    HolderKind
	HolderCode    string
	AssignedOn    time.Time
	ReturnedOn    sql.NullTime
	Note          sql.NullString
}

// Open reports whether the loan is currently active.
func (l *Loan) Open() bool { return !l.ReturnedOn.Valid }

type LoanFilter struct {
	EquipmentCode *string
	HolderKind    *HolderKind
	HolderCode    *string
	Open          *bool
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}
