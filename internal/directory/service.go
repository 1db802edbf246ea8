package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mysql "github.com/go-sql-driver/mysql"
)

// ===== Error model (same shape as the other feature packages) =====

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

// ===== Service =====

type Service struct {
	db    *sql.DB
	store *Store
}

func NewService(conn *sql.DB) *Service { return &Service{db: conn, store: NewStore(conn)} }

// ResearcherExists and StudentExists are the referential-integrity checks
// the ledgers consume before a write.
func (s *Service) ResearcherExists(ctx context.Context, code string) (bool, error) {
	return s.store.Exists(ctx, KindResearcher, code)
}

func (s *Service) StudentExists(ctx context.Context, code string) (bool, error) {
	return s.store.Exists(ctx, KindDoctoralStudent, code)
}

func (s *Service) Create(ctx context.Context, kind Kind, in CreatePersonRequest) (PersonResponse, error) {
	if strings.TrimSpace(in.Code) == "" || strings.TrimSpace(in.LastName) == "" || strings.TrimSpace(in.FirstName) == "" {
		return PersonResponse{}, ErrInvalid("code, last_name and first_name are required")
	}

	p := &Person{
		Code:      strings.TrimSpace(in.Code),
		LastName:  strings.TrimSpace(in.LastName),
		FirstName: strings.TrimSpace(in.FirstName),
	}
	if in.Email != nil && *in.Email != "" {
		p.Email.String = *in.Email
		p.Email.Valid = true
	}
	if in.Lab != nil && *in.Lab != "" {
		p.Lab.String = *in.Lab
		p.Lab.Valid = true
	}

	if err := s.store.Insert(ctx, kind, p); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return PersonResponse{}, ErrConflict("code already exists")
		}
		return PersonResponse{}, err
	}

	out, err := s.store.GetByCode(ctx, kind, p.Code)
	if err != nil {
		return PersonResponse{}, err
	}
	return out.toDTO(), nil
}

func (s *Service) Get(ctx context.Context, kind Kind, code string) (PersonResponse, error) {
	p, err := s.store.GetByCode(ctx, kind, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return PersonResponse{}, ErrNotFound(string(kind) + " not found")
		}
		return PersonResponse{}, err
	}
	return p.toDTO(), nil
}

func (s *Service) Update(ctx context.Context, kind Kind, code string, in UpdatePersonRequest) (PersonResponse, error) {
	p, err := s.store.Update(ctx, kind, code, in)
	if err != nil {
		if err == sql.ErrNoRows {
			return PersonResponse{}, ErrNotFound(string(kind) + " not found")
		}
		return PersonResponse{}, err
	}
	return p.toDTO(), nil
}

func (s *Service) Delete(ctx context.Context, kind Kind, code string) error {
	ok, err := s.store.Delete(ctx, kind, code)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1451 {
			// Row referenced by a ledger record.
			return ErrConflict("cannot delete: ledger records reference this " + string(kind))
		}
		return err
	}
	if !ok {
		return ErrNotFound(string(kind) + " not found")
	}
	return nil
}

func (s *Service) List(ctx context.Context, kind Kind, search string, p Page) ([]PersonResponse, int64, error) {
	items, total, err := s.store.List(ctx, kind, search, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]PersonResponse, 0, len(items))
	for i := range items {
		out = append(out, items[i].toDTO())
	}
	return out, total, nil
}
