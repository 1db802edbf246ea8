package loans

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

// Unique indexes on equipment_loans. uqOpen is a partial-uniqueness guard:
// it covers (equipment_code, open_marker) where open_marker is a stored
// generated column that is 1 while returned_on IS NULL and NULL afterwards,
// so at most one open loan per equipment can ever be committed, whichever
// holder kind wrote it.
const (
	uqOpen = "uq_loans_open"
	uqPair = "uq_loans_pair"
)

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

const loanColumns = `loan_id, loan_ulid, equipment_code, holder_kind, holder_code, assigned_on, returned_on, note`

func scanLoan(row *sql.Row) (*Loan, error) {
	var l Loan
	if err := row.Scan(
		&l.LoanID, &l.LoanULID, &l.EquipmentCode, &l.HolderKind, &l.HolderCode,
		&l.AssignedOn, &l.ReturnedOn, &l.Note,
	); err != nil {
		return nil, err
	}
	return &l, nil
}

// duplicateKey returns the offending index name if err is a MySQL 1062.
func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != 1062 {
		return "", false
	}
	for _, key := range []string{uqOpen, uqPair} {
		if strings.Contains(me.Message, key) {
			return key, true
		}
	}
	return "", true
}

// lockOpenLoan fetches the open loan for an equipment with FOR UPDATE,
// serializing concurrent check-then-write sequences on the same equipment.
func (s *Store) lockOpenLoan(ctx context.Context, tx db.DBTX, equipment string) (*Loan, error) {
	q := `SELECT ` + loanColumns + ` FROM equipment_loans
	WHERE equipment_code = ? AND returned_on IS NULL LIMIT 1 FOR UPDATE`
	l, err := scanLoan(tx.QueryRowContext(ctx, q, equipment))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

func (s *Store) lockLoanByHolder(ctx context.Context, tx db.DBTX, equipment string, kind HolderKind, holder string) (*Loan, error) {
	q := `SELECT ` + loanColumns + ` FROM equipment_loans
	WHERE equipment_code = ? AND holder_kind = ? AND holder_code = ? FOR UPDATE`
	l, err := scanLoan(tx.QueryRowContext(ctx, q, equipment, kind, holder))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("loan not found")
		}
		return nil, err
	}
	return l, nil
}

// ---- Transactional methods ----

// ExecReserve runs the full reservation flow in one transaction:
// open-loan check, pair-history check, INSERT. The unique indexes back the
// checks up, so a writer that loses a race still cannot commit a second
// open loan; that case surfaces as CONCURRENT_CONFLICT.
func (s *Store) ExecReserve(ctx context.Context, m *Loan) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		open, err := s.lockOpenLoan(ctx, tx, m.EquipmentCode)
		if err != nil {
			return err
		}
		if open != nil {
			return ErrResourceBusy(m.EquipmentCode)
		}

		var one int
		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM equipment_loans WHERE equipment_code = ? AND holder_kind = ? AND holder_code = ? LIMIT 1`,
			m.EquipmentCode, m.HolderKind, m.HolderCode,
		).Scan(&one)
		if err == nil {
			return ErrDuplicateAssignment(m.EquipmentCode)
		}
		if err != sql.ErrNoRows {
			return err
		}

		const q = `
		INSERT INTO equipment_loans
		(loan_ulid, equipment_code, holder_kind, holder_code, assigned_on, note)
		VALUES (?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, q,
			m.LoanULID, m.EquipmentCode, m.HolderKind, m.HolderCode,
			m.AssignedOn.Format(interval.DateLayout), nullStrOrNil(m.Note),
		)
		if err != nil {
			if key, dup := duplicateKey(err); dup {
				if key == uqPair {
					return ErrDuplicateAssignment(m.EquipmentCode)
				}
				return ErrConcurrentConflict()
			}
			return err
		}
		id, _ := res.LastInsertId()
		m.LoanID = id
		return nil
	})
}

// ExecClose sets returned_on on the holder's loan. The interval check runs
// against the assigned_on read under the row lock.
func (s *Store) ExecClose(ctx context.Context, equipment string, kind HolderKind, holder string, returnedOn time.Time) (*Loan, error) {
	var out *Loan
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		l, err := s.lockLoanByHolder(ctx, tx, equipment, kind, holder)
		if err != nil {
			return err
		}
		if !interval.Validate(l.AssignedOn, &returnedOn) {
			return ErrInvalidInterval()
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE equipment_loans SET returned_on = ? WHERE loan_id = ?`,
			returnedOn.Format(interval.DateLayout), l.LoanID,
		)
		if err != nil {
			return err
		}
		if aff, _ := res.RowsAffected(); aff != 1 {
			return ErrInternal("failed to update equipment_loans.returned_on")
		}
		l.ReturnedOn = sql.NullTime{Time: returnedOn, Valid: true}
		out = l
		return nil
	})
	return out, err
}

// ExecReopen clears returned_on, re-validating equipment exclusivity at
// that moment. The uq_loans_open index catches writers racing past the
// pre-check.
func (s *Store) ExecReopen(ctx context.Context, equipment string, kind HolderKind, holder string) (*Loan, error) {
	var out *Loan
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		l, err := s.lockLoanByHolder(ctx, tx, equipment, kind, holder)
		if err != nil {
			return err
		}
		if l.Open() {
			out = l
			return nil
		}

		open, err := s.lockOpenLoan(ctx, tx, equipment)
		if err != nil {
			return err
		}
		if open != nil {
			return ErrResourceBusy(equipment)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE equipment_loans SET returned_on = NULL WHERE loan_id = ?`, l.LoanID,
		); err != nil {
			if _, dup := duplicateKey(err); dup {
				return ErrConcurrentConflict()
			}
			return err
		}
		l.ReturnedOn = sql.NullTime{}
		out = l
		return nil
	})
	return out, err
}

// Delete removes a loan row unconditionally (administrative correction,
// no invariant re-check).
func (s *Store) Delete(ctx context.Context, equipment string, kind HolderKind, holder string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM equipment_loans WHERE equipment_code = ? AND holder_kind = ? AND holder_code = ?`,
		equipment, kind, holder,
	)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrNotFound("loan not found")
	}
	return nil
}

// ---- Queries ----

func (s *Store) GetByULID(ctx context.Context, ulid string) (*Loan, error) {
	q := `SELECT ` + loanColumns + ` FROM equipment_loans WHERE loan_ulid = ?`
	l, err := scanLoan(s.db.QueryRowContext(ctx, q, ulid))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("loan not found")
		}
		return nil, err
	}
	return l, nil
}

func (s *Store) ListOpen(ctx context.Context, equipment string) ([]Loan, error) {
	q := `SELECT ` + loanColumns + ` FROM equipment_loans
	WHERE equipment_code = ? AND returned_on IS NULL ORDER BY assigned_on DESC`
	rows, err := s.db.QueryContext(ctx, q, equipment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLoans(rows)
}

func (s *Store) List(ctx context.Context, f LoanFilter, p Page) ([]Loan, int64, error) {
	where, args := buildLoanWhere(f)

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

	q := fmt.Sprintf(`SELECT `+loanColumns+` FROM equipment_loans%s ORDER BY assigned_on %s, loan_id %s LIMIT ? OFFSET ?`,
		where, order, order)
	rows, err := s.db.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectLoans(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM equipment_loans`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func buildLoanWhere(f LoanFilter) (string, []any) {
	var (
		wheres []string
		args   []any
	)
	if f.EquipmentCode != nil && *f.EquipmentCode != "" {
		wheres = append(wheres, "equipment_code = ?")
		args = append(args, *f.EquipmentCode)
	}
	if f.HolderKind != nil {
		wheres = append(wheres, "holder_kind = ?")
		args = append(args, *f.HolderKind)
	}
	if f.HolderCode != nil && *f.HolderCode != "" {
		wheres = append(wheres, "holder_code = ?")
		args = append(args, *f.HolderCode)
	}
	if f.Open != nil {
		if *f.Open {
			wheres = append(wheres, "returned_on IS NULL")
		} else {
			wheres = append(wheres, "returned_on IS NOT NULL")
		}
	}
	if len(wheres) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wheres, " AND "), args
}

func collectLoans(rows *sql.Rows) ([]Loan, error) {
	var out []Loan
	for rows.Next() {
		var l Loan
		if err := rows.Scan(
			&l.LoanID, &l.LoanULID, &l.EquipmentCode, &l.HolderKind, &l.HolderCode,
			&l.AssignedOn, &l.ReturnedOn, &l.Note,
		); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullStrOrNil(ns sql.NullString) any {
	if ns.Valid {
		return ns.String
	}
	return nil
}
