package categories

import (
	"context"
	"database/sql"
	"strings"
)

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

func (s *Store) List(ctx context.Context, includeDisabled bool) ([]EquipmentCategory, error) {
	q := `SELECT category_id, label, code, is_disabled FROM equipment_categories`
	if !includeDisabled {
		q += ` WHERE is_disabled = 0`
	}
	q += ` ORDER BY category_id`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make([]EquipmentCategory, 0, 16)
	for rows.Next() {
		var c EquipmentCategory
		if err := rows.Scan(&c.CategoryID, &c.Label, &c.Code, &c.IsDisabled); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) Get(ctx context.Context, id uint) (*EquipmentCategory, error) {
	const q = `SELECT category_id, label, code, is_disabled FROM equipment_categories WHERE category_id = ?`
	var c EquipmentCategory
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&c.CategoryID, &c.Label, &c.Code, &c.IsDisabled); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) Insert(ctx context.Context, label, code string) (uint, error) {
	const q = `INSERT INTO equipment_categories (label, code, is_disabled) VALUES (?, ?, 0)`
	res, err := s.db.ExecContext(ctx, q, label, code)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	return uint(id), nil
}

func (s *Store) Update(ctx context.Context, id uint, in UpdateCategoryRequest) error {
	sets := []string{}
	args := []any{}
	if in.Label != nil {
		sets = append(sets, "label = ?")
		args = append(args, *in.Label)
	}
	if in.Code != nil {
		sets = append(sets, "code = ?")
		args = append(args, *in.Code)
	}
	if in.IsDisabled != nil {
		sets = append(sets, "is_disabled = ?")
		args = append(args, *in.IsDisabled)
	}
	if len(sets) == 0 {
		return nil
	}
	q := `UPDATE equipment_categories SET ` + strings.Join(sets, ", ") + ` WHERE category_id = ?`
	_, err := s.db.ExecContext(ctx, q, append(args, id)...)
	return err
}

func (s *Store) Delete(ctx context.Context, id uint) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM equipment_categories WHERE category_id = ?`, id)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}
