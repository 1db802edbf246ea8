package supervisions

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"time"
	"unicode/utf8"

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

// ---- Collaborator contract ----

// HolderDirectory confirms both sides of a pairing exist before a write.
type HolderDirectory interface {
	ResearcherExists(ctx context.Context, code string) (bool, error)
	StudentExists(ctx context.Context, code string) (bool, error)
}

// LedgerStore is what the service needs from persistence. *Store satisfies
// it; tests substitute an in-memory ledger.
type LedgerStore interface {
	ExecCreate(ctx context.Context, m *Supervision) error
	ExecClose(ctx context.Context, researcher, student string, endedOn time.Time) (*Supervision, error)
	ExecReopen(ctx context.Context, researcher, student string) (*Supervision, error)
	UpdateTheme(ctx context.Context, researcher, student, theme string) (*Supervision, error)
	Delete(ctx context.Context, researcher, student string) error
	GetPair(ctx context.Context, researcher, student string) (*Supervision, error)
	List(ctx context.Context, f SupervisionFilter, p Page) ([]Supervision, int64, error)
}

// ---- Service ----

type Service struct {
	store     LedgerStore
	directory HolderDirectory
	clock     Clock
	id        IDGen
}

func NewService(conn *sql.DB, directory HolderDirectory) *Service {
	return &Service{
		store:     NewStore(conn),
		directory: directory,
		clock:     realClock{},
		id:        ulidGen{},
	}
}

func validTheme(theme string) error {
	t := strings.TrimSpace(theme)
	if t == "" {
		return ErrInvalid("theme is required")
	}
	// Characters, not bytes: themes carry accented names and titles.
	if utf8.RuneCountInString(t) > MaxThemeLength {
		return ErrInvalid("theme must be at most 250 characters")
	}
	return nil
}

func (s *Service) checkPairExists(ctx context.Context, researcher, student string) error {
	ok, err := s.directory.ResearcherExists(ctx, researcher)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalid("unknown researcher: " + researcher)
	}
	ok, err = s.directory.StudentExists(ctx, student)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalid("unknown doctoral student: " + student)
	}
	return nil
}

// Create records a new active researcher/student pairing.
func (s *Service) Create(ctx context.Context, req CreateSupervisionRequest) (*SupervisionResponse, error) {
	if req.ResearcherCode == "" || req.StudentCode == "" {
		return nil, ErrInvalid("researcher_code and student_code are required")
	}
	if err := validTheme(req.Theme); err != nil {
		return nil, err
	}
	startedOn, err := interval.ParseDate(req.StartedOn)
	if err != nil {
		return nil, ErrInvalid("started_on must be YYYY-MM-DD")
	}
	if err := s.checkPairExists(ctx, req.ResearcherCode, req.StudentCode); err != nil {
		return nil, err
	}

	m := &Supervision{
		SupervisionULID: s.id.NewULID(s.clock.Now()),
		ResearcherCode:  req.ResearcherCode,
		StudentCode:     req.StudentCode,
		Theme:           strings.TrimSpace(req.Theme),
		StartedOn:       startedOn,
	}
	if err := s.store.ExecCreate(ctx, m); err != nil {
		return nil, err
	}
	resp := buildSupervisionResponse(m)
	return &resp, nil
}

// Close sets the end date on the pairing.
func (s *Service) Close(ctx context.Context, req CloseSupervisionRequest) (*SupervisionResponse, error) {
	endedOn, err := interval.ParseDate(req.EndedOn)
	if err != nil {
		return nil, ErrInvalid("ended_on must be YYYY-MM-DD")
	}
	row, err := s.store.ExecClose(ctx, req.ResearcherCode, req.StudentCode, endedOn)
	if err != nil {
		return nil, err
	}
	resp := buildSupervisionResponse(row)
	return &resp, nil
}

// Reopen clears the end date, re-checking both exclusivity slots.
func (s *Service) Reopen(ctx context.Context, req ReopenSupervisionRequest) (*SupervisionResponse, error) {
	row, err := s.store.ExecReopen(ctx, req.ResearcherCode, req.StudentCode)
	if err != nil {
		return nil, err
	}
	resp := buildSupervisionResponse(row)
	return &resp, nil
}

// UpdateTheme replaces the thesis theme (administrative).
func (s *Service) UpdateTheme(ctx context.Context, req UpdateThemeRequest) (*SupervisionResponse, error) {
	if err := validTheme(req.Theme); err != nil {
		return nil, err
	}
	row, err := s.store.UpdateTheme(ctx, req.ResearcherCode, req.StudentCode, strings.TrimSpace(req.Theme))
	if err != nil {
		return nil, err
	}
	resp := buildSupervisionResponse(row)
	return &resp, nil
}

// Delete removes a pairing record with no invariant check.
func (s *Service) Delete(ctx context.Context, researcher, student string) error {
	if researcher == "" || student == "" {
		return ErrInvalid("researcher_code and student_code are required")
	}
	return s.store.Delete(ctx, researcher, student)
}

func (s *Service) GetPair(ctx context.Context, researcher, student string) (*SupervisionResponse, error) {
	if researcher == "" || student == "" {
		return nil, ErrInvalid("researcher_code and student_code are required")
	}
	row, err := s.store.GetPair(ctx, researcher, student)
	if err != nil {
		return nil, err
	}
	resp := buildSupervisionResponse(row)
	return &resp, nil
}

// List returns pairing records matching the filter, open and closed.
func (s *Service) List(ctx context.Context, f SupervisionFilter, p Page) ([]SupervisionResponse, int64, error) {
	items, total, err := s.store.List(ctx, f, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]SupervisionResponse, 0, len(items))
	for i := range items {
		out = append(out, buildSupervisionResponse(&items[i]))
	}
	return out, total, nil
}
