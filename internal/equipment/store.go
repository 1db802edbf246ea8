package equipment

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

type equipmentRow struct {
	EquipmentID uint64
	Code        string
	Name        string
	CategoryID  uint
	Cost        sql.NullFloat64
	Status      string
	AcquiredOn  sql.NullTime
	Notes       sql.NullString
	CreatedAt   time.Time
}

func (r *equipmentRow) toDTO() EquipmentResponse {
	resp := EquipmentResponse{
		EquipmentID: r.EquipmentID,
		Code:        r.Code,
		Name:        r.Name,
		CategoryID:  r.CategoryID,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
	}
	if r.Cost.Valid {
		val := r.Cost.Float64
		resp.Cost = &val
	}
	if r.AcquiredOn.Valid {
		val := r.AcquiredOn.Time
		resp.AcquiredOn = &val
	}
	if r.Notes.Valid {
		val := r.Notes.String
		resp.Notes = &val
	}
	return resp
}

const equipmentColumns = `equipment_id, code, name, category_id, cost, status, acquired_on, notes, created_at`

func (s *Store) Insert(ctx context.Context, in CreateEquipmentRequest, acquiredOn *time.Time) (uint64, error) {
	const q = `
	INSERT INTO equipments (code, name, category_id, cost, status, acquired_on, notes, created_at)
	VALUES (?, ?, ?, ?, 'available', ?, ?, CURRENT_TIMESTAMP)`
	var on any
	if acquiredOn != nil {
		on = acquiredOn.Format("2006-01-02")
	}
	var notes any
	if in.Notes != nil && *in.Notes != "" {
		notes = *in.Notes
	}
	var cost any
	if in.Cost != nil {
		cost = *in.Cost
	}
	res, err := s.db.ExecContext(ctx, q, in.Code, in.Name, in.CategoryID, cost, on, notes)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	return uint64(id), nil
}

func (s *Store) getRow(ctx context.Context, by string, arg any) (*equipmentRow, error) {
	q := fmt.Sprintf(`SELECT `+equipmentColumns+` FROM equipments WHERE %s = ?`, by)
	var r equipmentRow
	err := s.db.QueryRowContext(ctx, q, arg).Scan(
		&r.EquipmentID, &r.Code, &r.Name, &r.CategoryID, &r.Cost, &r.Status,
		&r.AcquiredOn, &r.Notes, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) GetByID(ctx context.Context, id uint64) (*equipmentRow, error) {
	return s.getRow(ctx, "equipment_id", id)
}

func (s *Store) GetByCode(ctx context.Context, code string) (*equipmentRow, error) {
	return s.getRow(ctx, "code", code)
}

func (s *Store) Exists(ctx context.Context, code string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM equipments WHERE code = ? LIMIT 1`, code).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) UpdateByCode(ctx context.Context, code string, in UpdateEquipmentRequest) error {
	sets := []string{}
	args := []any{}
	if in.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *in.Name)
	}
	if in.CategoryID != nil {
		sets = append(sets, "category_id = ?")
		args = append(args, *in.CategoryID)
	}
	if in.Cost != nil {
		sets = append(sets, "cost = ?")
		args = append(args, *in.Cost)
	}
	if in.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *in.Status)
	}
	if in.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *in.Notes)
	}
	if len(sets) == 0 {
		return nil
	}
	q := fmt.Sprintf(`UPDATE equipments SET %s WHERE code = ?`, strings.Join(sets, ", "))
	_, err := s.db.ExecContext(ctx, q, append(args, code)...)
	return err
}

func (s *Store) DeleteByCode(ctx context.Context, code string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM equipments WHERE code = ?`, code)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

func (s *Store) List(ctx context.Context, categoryID *uint, status, search string, p Page) ([]equipmentRow, int64, error) {
	var (
		wheres []string
		args   []any
	)
	if categoryID != nil {
		wheres = append(wheres, "category_id = ?")
		args = append(args, *categoryID)
	}
	if status != "" {
		wheres = append(wheres, "status = ?")
		args = append(args, status)
	}
	if search != "" {
		wheres = append(wheres, "(code LIKE ? OR name LIKE ?)")
		args = append(args, "%"+search+"%", "%"+search+"%")
	}
	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
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

	q := fmt.Sprintf(`SELECT `+equipmentColumns+` FROM equipments%s ORDER BY code %s LIMIT ? OFFSET ?`, where, order)
	rows, err := s.db.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []equipmentRow
	for rows.Next() {
		var r equipmentRow
		if err := rows.Scan(
			&r.EquipmentID, &r.Code, &r.Name, &r.CategoryID, &r.Cost, &r.Status,
			&r.AcquiredOn, &r.Notes, &r.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM equipments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
