package directory

import (
	"database/sql"
	"time"
)

// Kind selects one of the two directory tables.
type Kind string

const (
	KindResearcher      Kind = "researcher"
	KindDoctoralStudent Kind = "doctoral_student"
)

func (k Kind) table() string {
	if k == KindDoctoralStudent {
		return "doctoral_students"
	}
	return "researchers"
}

// Person is one row of researchers or doctoral_students.
type Person struct {
	ID        int64
	Code      string
	LastName  string
	FirstName string
	Email     sql.NullString
	Lab       sql.NullString
	CreatedAt time.Time
}

func (p *Person) toDTO() PersonResponse {
	resp := PersonResponse{
		ID:        p.ID,
		Code:      p.Code,
		LastName:  p.LastName,
		FirstName: p.FirstName,
		CreatedAt: p.CreatedAt,
	}
	if p.Email.Valid {
		val := p.Email.String
		resp.Email = &val
	}
	if p.Lab.Valid {
		val := p.Lab.String
		resp.Lab = &val
	}
	return resp
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}
