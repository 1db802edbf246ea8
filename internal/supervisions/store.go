package supervisions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	mysql "github.com/go-sql-driver/mysql"

	"RIMS-backend/internal/interval"
	"RIMS-backend/internal/platform/db"
)

// Unique indexes on supervisions. The two open-marker indexes are partial
// uniqueness guards built on a stored generated column (1 while ended_on
// IS NULL, NULL afterwards): at most one active supervision per researcher
// and per student can ever be committed.
const (
	uqPair           = "uq_sup_pair"
	uqResearcherOpen = "uq_sup_researcher_open"
	uqStudentOpen    = "uq_sup_student_open"
)

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

const supervisionColumns = `supervision_id, supervision_ulid, researcher_code, student_code, theme, started_on, ended_on`

func scanSupervision(row *sql.Row) (*Supervision, error) {
	var s Supervision
	if err := row.Scan(
		&s.SupervisionID, &s.SupervisionULID, &s.ResearcherCode, &s.StudentCode,
		&s.Theme, &s.StartedOn, &s.EndedOn,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != 1062 {
		return "", false
	}
	for _, key := range []string{uqPair, uqResearcherOpen, uqStudentOpen} {
		if strings.Contains(me.Message, key) {
			return key, true
		}
	}
	return "", true
}

// lockOpenByResearcher locks the researcher's active supervision, if any,
// serializing concurrent check-then-write on that slot.
func (s *Store) lockOpenByResearcher(ctx context.Context, tx db.DBTX, researcher string) (*Supervision, error) {
	q := `SELECT ` + supervisionColumns + ` FROM supervisions
	WHERE researcher_code = ? AND ended_on IS NULL LIMIT 1 FOR UPDATE`
	row, err := scanSupervision(tx.QueryRowContext(ctx, q, researcher))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

// lockOpenByStudent locks the student's active supervision, if any.
func (s *Store) lockOpenByStudent(ctx context.Context, tx db.DBTX, student string) (*Supervision, error) {
	q := `SELECT ` + supervisionColumns + ` FROM supervisions
	WHERE student_code = ? AND ended_on IS NULL LIMIT 1 FOR UPDATE`
	row, err := scanSupervision(tx.QueryRowContext(ctx, q, student))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

func (s *Store) lockPair(ctx context.Context, tx db.DBTX, researcher, student string) (*Supervision, error) {
	q := `SELECT ` + supervisionColumns + ` FROM supervisions
	WHERE researcher_code = ? AND student_code = ? FOR UPDATE`
	row, err := scanSupervision(tx.QueryRowContext(ctx, q, researcher, student))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("supervision not found")
		}
		return nil, err
	}
	return row, nil
}

// ---- Transactional methods ----

// ExecCreate runs the full pairing flow in one transaction: pair-history
// check, then per-slot open checks, then INSERT. The pair check comes
// first so re-submitting an exact pair reports the pair error whether the
// existing record is open or closed. Unique indexes back the checks up;
// a writer losing a race is rejected with a stable error, never committed.
func (s *Store) ExecCreate(ctx context.Context, m *Supervision) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM supervisions WHERE researcher_code = ? AND student_code = ? LIMIT 1`,
			m.ResearcherCode, m.StudentCode,
		).Scan(&one)
		if err == nil {
			return ErrAlreadyRecorded()
		}
		if err != sql.ErrNoRows {
			return err
		}

		rOpen, err := s.lockOpenByResearcher(ctx, tx, m.ResearcherCode)
		if err != nil {
			return err
		}
		if rOpen != nil {
			return ErrResearcherBusy(m.ResearcherCode)
		}
		sOpen, err := s.lockOpenByStudent(ctx, tx, m.StudentCode)
		if err != nil {
			return err
		}
		if sOpen != nil {
			return ErrStudentBusy(m.StudentCode)
		}

		const q = `
		INSERT INTO supervisions
		(supervision_ulid, researcher_code, student_code, theme, started_on)
		VALUES (?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, q,
			m.SupervisionULID, m.ResearcherCode, m.StudentCode, m.Theme,
			m.StartedOn.Format(interval.DateLayout),
		)
		if err != nil {
			if key, dup := duplicateKey(err); dup {
				if key == uqPair {
					return ErrAlreadyRecorded()
				}
				return ErrConcurrentConflict()
			}
			return err
		}
		id, _ := res.LastInsertId()
		m.SupervisionID = id
		return nil
	})
}

// ExecClose sets ended_on on the pair's record, validating the interval
// against the started_on read under the row lock.
func (s *Store) ExecClose(ctx context.Context, researcher, student string, endedOn time.Time) (*Supervision, error) {
	var out *Supervision
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		row, err := s.lockPair(ctx, tx, researcher, student)
		if err != nil {
			return err
		}
		if !interval.Validate(row.StartedOn, &endedOn) {
			return ErrInvalidInterval()
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE supervisions SET ended_on = ? WHERE supervision_id = ?`,
			endedOn.Format(interval.DateLayout), row.SupervisionID,
		)
		if err != nil {
			return err
		}
		if aff, _ := res.RowsAffected(); aff != 1 {
			return ErrInternal("failed to update supervisions.ended_on")
		}
		row.EndedOn = sql.NullTime{Time: endedOn, Valid: true}
		out = row
		return nil
	})
	return out, err
}

// ExecReopen clears ended_on, re-validating both exclusivity slots at that
// moment.
func (s *Store) ExecReopen(ctx context.Context, researcher, student string) (*Supervision, error) {
	var out *Supervision
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		row, err := s.lockPair(ctx, tx, researcher, student)
		if err != nil {
			return err
		}
		if row.Open() {
			out = row
			return nil
		}

		rOpen, err := s.lockOpenByResearcher(ctx, tx, researcher)
		if err != nil {
			return err
		}
		if rOpen != nil {
			return ErrResearcherBusy(researcher)
		}
		sOpen, err := s.lockOpenByStudent(ctx, tx, student)
		if err != nil {
			return err
		}
		if sOpen != nil {
			return ErrStudentBusy(student)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE supervisions SET ended_on = NULL WHERE supervision_id = ?`, row.SupervisionID,
		); err != nil {
			if _, dup := duplicateKey(err); dup {
				return ErrConcurrentConflict()
			}
			return err
		}
		row.EndedOn = sql.NullTime{}
		out = row
		return nil
	})
	return out, err
}

// UpdateTheme replaces the thesis theme on the pair's record.
func (s *Store) UpdateTheme(ctx context.Context, researcher, student, theme string) (*Supervision, error) {
	var out *Supervision
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		row, err := s.lockPair(ctx, tx, researcher, student)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE supervisions SET theme = ? WHERE supervision_id = ?`, theme, row.SupervisionID,
		); err != nil {
			return err
		}
		row.Theme = theme
		out = row
		return nil
	})
	return out, err
}

// Delete removes a supervision row unconditionally.
func (s *Store) Delete(ctx context.Context, researcher, student string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM supervisions WHERE researcher_code = ? AND student_code = ?`,
		researcher, student,
	)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrNotFound("supervision not found")
	}
	return nil
}

// ---- Queries ----

func (s *Store) GetPair(ctx context.Context, researcher, student string) (*Supervision, error) {
	q := `SELECT ` + supervisionColumns + ` FROM supervisions
	WHERE researcher_code = ? AND student_code = ?`
	row, err := scanSupervision(s.db.QueryRowContext(ctx, q, researcher, student))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("supervision not found")
		}
		return nil, err
	}
	return row, nil
}

func (s *Store) List(ctx context.Context, f SupervisionFilter, p Page) ([]Supervision, int64, error) {
	var (
		wheres []string
		args   []any
	)
	if f.ResearcherCode != nil && *f.ResearcherCode != "" {
		wheres = append(wheres, "researcher_code = ?")
		args = append(args, *f.ResearcherCode)
	}
	if f.StudentCode != nil && *f.StudentCode != "" {
		wheres = append(wheres, "student_code = ?")
		args = append(args, *f.StudentCode)
	}
	if f.Open != nil {
		if *f.Open {
			wheres = append(wheres, "ended_on IS NULL")
		} else {
			wheres = append(wheres, "ended_on IS NOT NULL")
		}
	}
	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	order := "DESC"
	if strings.ToLower(p.Order) == "asc" {
		order = "ASC"
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	q := fmt.Sprintf(`SELECT `+supervisionColumns+` FROM supervisions%s ORDER BY started_on %s, supervision_id %s LIMIT ? OFFSET ?`,
		where, order, order)
	rows, err := s.db.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Supervision
	for rows.Next() {
		var m Supervision
		if err := rows.Scan(
			&m.SupervisionID, &m.SupervisionULID, &m.ResearcherCode, &m.StudentCode,
			&m.Theme, &m.StartedOn, &m.EndedOn,
		); err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM supervisions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
