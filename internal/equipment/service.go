package equipment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	mysql "github.com/go-sql-driver/mysql"
)

// ===== Error model =====

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}

// Equipment lifecycle statuses. The loans ledger does not read these;
// they are inventory bookkeeping only.
var validStatuses = map[string]struct{}{
	"available": {},
	"on_loan":   {},
	"repair":    {},
	"retired":   {},
}

// ===== Service =====

type Service struct {
	db    *sql.DB
	store *Store
}

func NewService(conn *sql.DB) *Service { return &Service{db: conn, store: NewStore(conn)} }

// Exists is the catalog check the loans ledger consumes before a write.
func (s *Service) Exists(ctx context.Context, code string) (bool, error) {
	return s.store.Exists(ctx, code)
}

func (s *Service) Create(ctx context.Context, in CreateEquipmentRequest) (EquipmentResponse, error) {
	if strings.TrimSpace(in.Code) == "" || strings.TrimSpace(in.Name) == "" || in.CategoryID == 0 {
		return EquipmentResponse{}, ErrInvalid("code, name and category_id are required")
	}

	var acquiredOn *time.Time
	if in.AcquiredOn != nil && *in.AcquiredOn != "" {
		parsed, err := time.ParseInLocation("2006-01-02", *in.AcquiredOn, time.UTC)
		if err != nil {
			return EquipmentResponse{}, ErrInvalid("acquired_on must be YYYY-MM-DD")
		}
		acquiredOn = &parsed
	}

	id, err := s.store.Insert(ctx, in, acquiredOn)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) {
			switch me.Number {
			case 1062:
				return EquipmentResponse{}, ErrConflict("equipment code already exists")
			case 1452:
				return EquipmentResponse{}, ErrInvalid("invalid category_id")
			}
		}
		return EquipmentResponse{}, err
	}

	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		return EquipmentResponse{}, err
	}
	return row.toDTO(), nil
}

func (s *Service) Get(ctx context.Context, code string) (EquipmentResponse, error) {
	row, err := s.store.GetByCode(ctx, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return EquipmentResponse{}, ErrNotFound("equipment not found")
		}
		return EquipmentResponse{}, err
	}
	return row.toDTO(), nil
}

func (s *Service) Update(ctx context.Context, code string, in UpdateEquipmentRequest) (EquipmentResponse, error) {
	if in.Status != nil {
		if _, ok := validStatuses[*in.Status]; !ok {
			return EquipmentResponse{}, ErrInvalid("status must be one of available, on_loan, repair, retired")
		}
	}
	if _, err := s.store.GetByCode(ctx, code); err != nil {
		if err == sql.ErrNoRows {
			return EquipmentResponse{}, ErrNotFound("equipment not found")
		}
		return EquipmentResponse{}, err
	}
	if err := s.store.UpdateByCode(ctx, code, in); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1452 {
			return EquipmentResponse{}, ErrInvalid("invalid category_id")
		}
		return EquipmentResponse{}, err
	}
	row, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return EquipmentResponse{}, err
	}
	return row.toDTO(), nil
}

func (s *Service) Delete(ctx context.Context, code string) error {
	ok, err := s.store.DeleteByCode(ctx, code)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1451 {
			return ErrConflict("cannot delete: loan records reference this equipment")
		}
		return err
	}
	if !ok {
		return ErrNotFound("equipment not found")
	}
	return nil
}

func (s *Service) List(ctx context.Context, categoryID *uint, status, search string, p Page) ([]EquipmentResponse, int64, error) {
	if status != "" {
		if _, ok := validStatuses[status]; !ok {
			return nil, 0, ErrInvalid("unknown status filter")
		}
	}
	items, total, err := s.store.List(ctx, categoryID, status, search, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]EquipmentResponse, 0, len(items))
	for i := range items {
		out = append(out, items[i].toDTO())
	}
	return out, total, nil
}
