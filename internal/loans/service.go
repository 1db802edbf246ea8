package loans

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

	ulid "github.com/oklog/ulid/v2"

	"RIMS-backend/internal/interval"
)

// ---- Clock & ID ----

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// ---- Collaborator contracts ----

// HolderDirectory confirms a holder code exists before a write. The ledger
// never renders directory data.
type HolderDirectory interface {
	ResearcherExists(ctx context.Context, code string) (bool, error)
	StudentExists(ctx context.Context, code string) (bool, error)
}

// Catalog confirms an equipment code exists. Inventory metadata is
// irrelevant here.
type Catalog interface {
	Exists(ctx context.Context, code string) (bool, error)
}

// LedgerStore is what the service needs from persistence. *Store satisfies
// it; tests substitute an in-memory ledger.
type LedgerStore interface {
	ExecReserve(ctx context.Context, m *Loan) error
	ExecClose(ctx context.Context, equipment string, kind HolderKind, holder string, returnedOn time.Time) (*Loan, error)
	ExecReopen(ctx context.Context, equipment string, kind HolderKind, holder string) (*Loan, error)
	Delete(ctx context.Context, equipment string, kind HolderKind, holder string) error
	GetByULID(ctx context.Context, ulid string) (*Loan, error)
	ListOpen(ctx context.Context, equipment string) ([]Loan, error)
	List(ctx context.Context, f LoanFilter, p Page) ([]Loan, int64, error)
}

// ---- Service ----

type Service struct {
	store     LedgerStore
	directory HolderDirectory
	catalog   Catalog
	clock     Clock
	id        IDGen
}

func NewService(conn *sql.DB, directory HolderDirectory, catalog Catalog) *Service {
	return &Service{
		store:     NewStore(conn),
		directory: directory,
		catalog:   catalog,
		clock:     realClock{},
		id:        ulidGen{},
	}
}

func parseHolderKind(s string) (HolderKind, error) {
	k := HolderKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.valid() {
		return "", ErrInvalid("holder_kind must be 'researcher' or 'doctoral_student'")
	}
	return k, nil
}

func (s *Service) checkHolderExists(ctx context.Context, kind HolderKind, code string) error {
	var (
		ok  bool
		err error
	)
	switch kind {
	case HolderResearcher:
		ok, err = s.directory.ResearcherExists(ctx, code)
	case HolderDoctoralStudent:
		ok, err = s.directory.StudentExists(ctx, code)
	}
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalid("unknown holder: " + code)
	}
	return nil
}

// Reserve creates an open loan for (equipment, holder).
func (s *Service) Reserve(ctx context.Context, req CreateLoanRequest) (*LoanResponse, error) {
	kind, err := parseHolderKind(req.HolderKind)
	if err != nil {
		return nil, err
	}
	if req.EquipmentCode == "" || req.HolderCode == "" {
		return nil, ErrInvalid("equipment_code and holder_code are required")
	}
	assignedOn, err := interval.ParseDate(req.AssignedOn)
	if err != nil {
		return nil, ErrInvalid("assigned_on must be YYYY-MM-DD")
	}

	if err := s.checkHolderExists(ctx, kind, req.HolderCode); err != nil {
		return nil, err
	}
	ok, err := s.catalog.Exists(ctx, req.EquipmentCode)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalid("unknown equipment: " + req.EquipmentCode)
	}

	m := &Loan{
		LoanULID:      s.id.NewULID(s.clock.Now()),
		EquipmentCode: req.EquipmentCode,
		HolderKind:    kind,
		HolderCode:    req.HolderCode,
		AssignedOn:    assignedOn,
	}
	if req.Note != nil && *req.Note != "" {
		m.Note.String = *req.Note
		m.Note.Valid = true
	}

	if err := s.store.ExecReserve(ctx, m); err != nil {
		return nil, err
	}
	resp := buildLoanResponse(m)
	return &resp, nil
}

// Close sets the return date on the holder's loan.
func (s *Service) Close(ctx context.Context, req CloseLoanRequest) (*LoanResponse, error) {
	kind, err := parseHolderKind(req.HolderKind)
	if err != nil {
		return nil, err
	}
	returnedOn, err := interval.ParseDate(req.ReturnedOn)
	if err != nil {
		return nil, ErrInvalid("returned_on must be YYYY-MM-DD")
	}

	l, err := s.store.ExecClose(ctx, req.EquipmentCode, kind, req.HolderCode, returnedOn)
	if err != nil {
		return nil, err
	}
	resp := buildLoanResponse(l)
	return &resp, nil
}

// Reopen clears the return date, re-checking equipment exclusivity.
func (s *Service) Reopen(ctx context.Context, req ReopenLoanRequest) (*LoanResponse, error) {
	kind, err := parseHolderKind(req.HolderKind)
	if err != nil {
		return nil, err
	}
	l, err := s.store.ExecReopen(ctx, req.EquipmentCode, kind, req.HolderCode)
	if err != nil {
		return nil, err
	}
	resp := buildLoanResponse(l)
	return &resp, nil
}

// Delete removes a loan record with no invariant check.
func (s *Service) Delete(ctx context.Context, equipment, holderKind, holderCode string) error {
	kind, err := parseHolderKind(holderKind)
	if err != nil {
		return err
	}
	if equipment == "" || holderCode == "" {
		return ErrInvalid("equipment_code and holder_code are required")
	}
	return s.store.Delete(ctx, equipment, kind, holderCode)
}

func (s *Service) GetByULID(ctx context.Context, ulidStr string) (*LoanResponse, error) {
	if ulidStr == "" {
		return nil, ErrInvalid("loan_ulid is required")
	}
	l, err := s.store.GetByULID(ctx, ulidStr)
	if err != nil {
		return nil, err
	}
	resp := buildLoanResponse(l)
	return &resp, nil
}

// ListOpenFor returns the open loans for an equipment (at most one when
// the ledger invariants hold).
func (s *Service) ListOpenFor(ctx context.Context, equipment string) ([]LoanResponse, error) {
	if equipment == "" {
		return nil, ErrInvalid("equipment_code is required")
	}
	items, err := s.store.ListOpen(ctx, equipment)
	if err != nil {
		return nil, err
	}
	out := make([]LoanResponse, 0, len(items))
	for i := range items {
		out = append(out, buildLoanResponse(&items[i]))
	}
	return out, nil
}

// ListHistory returns loan records matching the filter, open and closed.
func (s *Service) ListHistory(ctx context.Context, f LoanFilter, p Page) ([]LoanResponse, int64, error) {
	items, total, err := s.store.List(ctx, f, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]LoanResponse, 0, len(items))
	for i := range items {
		out = append(out, buildLoanResponse(&items[i]))
	}
	return out, total, nil
}
