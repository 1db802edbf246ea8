package supervisions

import (
	"database/sql"
	"time"
)

// MaxThemeLength bounds the free-text thesis theme.
const MaxThemeLength = 250

// Supervision is one row of supervisions. ended_on IS NULL means the
// pairing is currently active.
type Supervision struct {
	SupervisionID   int64
	SupervisionULID string
	ResearcherCode  string
	StudentCode     string
	Theme           string
	StartedOn       time.Time
	EndedOn         sql.NullTime
}

// Open reports whether the pairing is currently active.
func (s *Supervision) Open() bool { return !s.EndedOn.Valid }

type SupervisionFilter struct {
	ResearcherCode *string
	StudentCode    *string
	Open           *bool
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}
