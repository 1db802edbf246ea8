package directory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

const personColumns = `id, code, last_name, first_name, email, lab, created_at`

func (s *Store) Insert(ctx context.Context, kind Kind, p *Person) error {
	q := fmt.Sprintf(`
	INSERT INTO %s (code, last_name, first_name, email, lab, search_name, created_at)
	VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`, kind.table())
	res, err := s.db.ExecContext(ctx, q,
		p.Code, p.LastName, p.FirstName, nullStrOrNil(p.Email), nullStrOrNil(p.Lab),
		foldName(p.LastName, p.FirstName),
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	p.ID = id
	return nil
}

func (s *Store) GetByCode(ctx context.Context, kind Kind, code string) (*Person, error) {
	q := fmt.Sprintf(`SELECT `+personColumns+` FROM %s WHERE code = ?`, kind.table())
	var p Person
	err := s.db.QueryRowContext(ctx, q, code).Scan(
		&p.ID, &p.Code, &p.LastName, &p.FirstName, &p.Email, &p.Lab, &p.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) Exists(ctx context.Context, kind Kind, code string) (bool, error) {
	q := fmt.Sprintf(`SELECT 1 FROM %s WHERE code = ? LIMIT 1`, kind.table())
	var one int
	err := s.db.QueryRowContext(ctx, q, code).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update applies a partial update and refreshes search_name when a name
// part changed.
func (s *Store) Update(ctx context.Context, kind Kind, code string, in UpdatePersonRequest) (*Person, error) {
	sets := []string{}
	args := []any{}
	if in.LastName != nil {
		sets = append(sets, "last_name = ?")
		args = append(args, *in.LastName)
	}
	if in.FirstName != nil {
		sets = append(sets, "first_name = ?")
		args = append(args, *in.FirstName)
	}
	if in.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *in.Email)
	}
	if in.Lab != nil {
		sets = append(sets, "lab = ?")
		args = append(args, *in.Lab)
	}
	if len(sets) == 0 {
		return s.GetByCode(ctx, kind, code)
	}

	q := fmt.Sprintf(`UPDATE %s SET %s WHERE code = ?`, kind.table(), strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, q, append(args, code)...)
	if err != nil {
		return nil, err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		// Could also mean identical values; confirm the row exists.
		if _, err := s.GetByCode(ctx, kind, code); err != nil {
			return nil, err
		}
	}

	p, err := s.GetByCode(ctx, kind, code)
	if err != nil {
		return nil, err
	}
	if in.LastName != nil || in.FirstName != nil {
		uq := fmt.Sprintf(`UPDATE %s SET search_name = ? WHERE code = ?`, kind.table())
		if _, err := s.db.ExecContext(ctx, uq, foldName(p.LastName, p.FirstName), code); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *Store) Delete(ctx context.Context, kind Kind, code string) (bool, error) {
	q := fmt.Sprintf(`DELETE FROM %s WHERE code = ?`, kind.table())
	res, err := s.db.ExecContext(ctx, q, code)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

// List filters on the folded search_name column so accents and case do
// not matter.
func (s *Store) List(ctx context.Context, kind Kind, search string, p Page) ([]Person, int64, error) {
	where := ""
	args := []any{}
	if search != "" {
		where = ` WHERE search_name LIKE ?`
		args = append(args, "%"+foldName(search)+"%")
	}

	order := "ASC"
	if strings.ToLower(p.Order) == "desc" {
		order = "DESC"
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	q := fmt.Sprintf(`SELECT `+personColumns+` FROM %s%s ORDER BY last_name %s, first_name %s LIMIT ? OFFSET ?`,
		kind.table(), where, order, order)
	rows, err := s.db.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Person
	for rows.Next() {
		var m Person
		if err := rows.Scan(&m.ID, &m.Code, &m.LastName, &m.FirstName, &m.Email, &m.Lab, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	cq := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, kind.table(), where)
	if err := s.db.QueryRowContext(ctx, cq, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func nullStrOrNil(ns sql.NullString) any {
	if ns.Valid {
		return ns.String
	}
	return nil
}
