package loans

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLedger emulates the equipment_loans table with its two unique
// indexes. Checks and writes happen under one mutex, matching the
// serialization the MySQL store gets from its transaction + index guards.
type memLedger struct {
	mu     sync.Mutex
	rows   []*Loan
	nextID int64
}

func (m *memLedger) ExecReserve(_ context.Context, l *Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.EquipmentCode == l.EquipmentCode && r.Open() {
			return ErrResourceBusy(l.EquipmentCode)
		}
	}
	for _, r := range m.rows {
		if r.EquipmentCode == l.EquipmentCode && r.HolderKind == l.HolderKind && r.HolderCode == l.HolderCode {
			return ErrDuplicateAssignment(l.EquipmentCode)
		}
	}
	m.nextID++
	l.LoanID = m.nextID
	cp := *l
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memLedger) find(equipment string, kind HolderKind, holder string) *Loan {
	for _, r := range m.rows {
		if r.EquipmentCode == equipment && r.HolderKind == kind && r.HolderCode == holder {
			return r
		}
	}
	return nil
}

func (m *memLedger) ExecClose(_ context.Context, equipment string, kind HolderKind, holder string, returnedOn time.Time) (*Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.find(equipment, kind, holder)
	if r == nil {
		return nil, ErrNotFound("loan not found")
	}
	if returnedOn.Before(r.AssignedOn) {
		return nil, ErrInvalidInterval()
	}
	r.ReturnedOn = sql.NullTime{Time: returnedOn, Valid: true}
	cp := *r
	return &cp, nil
}

func (m *memLedger) ExecReopen(_ context.Context, equipment string, kind HolderKind, holder string) (*Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.find(equipment, kind, holder)
	if r == nil {
		return nil, ErrNotFound("loan not found")
	}
	if !r.Open() {
		for _, other := range m.rows {
			if other != r && other.EquipmentCode == equipment && other.Open() {
				return nil, ErrResourceBusy(equipment)
			}
		}
		r.ReturnedOn = sql.NullTime{}
	}
	cp := *r
	return &cp, nil
}

func (m *memLedger) Delete(_ context.Context, equipment string, kind HolderKind, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.EquipmentCode == equipment && r.HolderKind == kind && r.HolderCode == holder {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound("loan not found")
}

func (m *memLedger) GetByULID(_ context.Context, ulid string) (*Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.LoanULID == ulid {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound("loan not found")
}

func (m *memLedger) ListOpen(_ context.Context, equipment string) ([]Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Loan
	for _, r := range m.rows {
		if r.EquipmentCode == equipment && r.Open() {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memLedger) List(_ context.Context, f LoanFilter, _ Page) ([]Loan, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Loan
	for _, r := range m.rows {
		if f.EquipmentCode != nil && r.EquipmentCode != *f.EquipmentCode {
			continue
		}
		if f.HolderCode != nil && r.HolderCode != *f.HolderCode {
			continue
		}
		if f.HolderKind != nil && r.HolderKind != *f.HolderKind {
			continue
		}
		if f.Open != nil && r.Open() != *f.Open {
			continue
		}
		out = append(out, *r)
	}
	return out, int64(len(out)), nil
}

// openCountPerEquipment is the invariant scan: at most one open loan per
// equipment must ever be observable.
func (m *memLedger) openCountPerEquipment() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	for _, r := range m.rows {
		if r.Open() {
			counts[r.EquipmentCode]++
		}
	}
	return counts
}

type stubDirectory struct{}

func (stubDirectory) ResearcherExists(_ context.Context, code string) (bool, error) {
	return code != "", nil
}
func (stubDirectory) StudentExists(_ context.Context, code string) (bool, error) {
	return code != "", nil
}

type stubCatalog struct{}

func (stubCatalog) Exists(_ context.Context, code string) (bool, error) { return code != "", nil }

func newTestService(t *testing.T) (*Service, *memLedger) {
	t.Helper()
	ledger := &memLedger{}
	svc := &Service{
		store:     ledger,
		directory: stubDirectory{},
		catalog:   stubCatalog{},
		clock:     realClock{},
		id:        ulidGen{},
	}
	return svc, ledger
}

func apiCode(t *testing.T, err error) Code {
	t.Helper()
	require.Error(t, err)
	api, ok := err.(*APIError)
	require.True(t, ok, "expected *APIError, got %T", err)
	return api.Code
}

func TestReserveExclusivity(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()

	// INV-1 goes to researcher R5.
	first, err := svc.Reserve(ctx, CreateLoanRequest{
		EquipmentCode: "INV-1", HolderKind: "researcher", HolderCode: "R5", AssignedOn: "2024-01-01",
	})
	require.NoError(t, err)
	assert.True(t, first.Open)

	// A doctoral student cannot take it while the loan is open.
	_, err = svc.Reserve(ctx, CreateLoanRequest{
		EquipmentCode: "INV-1", HolderKind: "doctoral_student", HolderCode: "S9", AssignedOn: "2024-02-01",
	})
	assert.Equal(t, CodeResourceBusy, apiCode(t, err))

	// After the return the student can.
	_, err = svc.Close(ctx, CloseLoanRequest{
		EquipmentCode: "INV-1", HolderKind: "researcher", HolderCode: "R5", ReturnedOn: "2024-03-01",
	})
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, CreateLoanRequest{
		EquipmentCode: "INV-1", HolderKind: "doctoral_student", HolderCode: "S9", AssignedOn: "2024-03-02",
	})
	require.NoError(t, err)

	for eq, n := range ledger.openCountPerEquipment() {
		assert.LessOrEqual(t, n, 1, "equipment %s has %d open loans", eq, n)
	}
}

func TestReservePairRecordedOnlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, CreateLoanRequest{
		EquipmentCode: "INV-2", HolderKind: "researcher", HolderCode: "R5", AssignedOn: "2024-01-01",
	})
	require.NoError(t, err)
	_, err = svc.Close(ctx, CloseLoanRequest{
		EquipmentCode: "INV-2", HolderKind: "researcher", HolderCode: "R5", ReturnedOn: "2024-02-01",
	})
	require.NoError(t, err)

	// Same holder, same equipment: rejected even after the return.
	_, err = svc.Reserve(ctx, CreateLoanRequest{
		EquipmentCode: "INV-2", HolderKind: "researcher", HolderCode: "R5", AssignedOn: "2024-02-15",
	})
	assert.Equal(t, CodeDuplicateAssignment, apiCode(t, err))
}

func TestCloseValidatesInterval(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, CreateLoanRequest{
		EquipmentCode: "INV-3", HolderKind: "researcher", HolderCode: "R5", AssignedOn: "2024-01-01",
	})
	require.NoError(t, err)

	_, err = svc.Close(ctx, CloseLoanRequest{
		EquipmentCode: "INV-3", HolderKind: "researcher", HolderCode: "R5", ReturnedOn: "2023-12-31",
	})
	assert.Equal(t, CodeInvalidInterval, apiCode(t, err))

	// Same-day return is a valid interval.
	res, err := svc.Close(ctx, CloseLoanRequest{
		EquipmentCode: "INV-3", HolderKind: "researcher", HolderCode: "R5", ReturnedOn: "2024-01-01",
	})
	require.NoError(t, err)
	assert.False(t, res.Open)
}

func TestCloseUnknownLoan(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Close(context.Background(), CloseLoanRequest{
		EquipmentCode: "INV-404", HolderKind: "researcher", HolderCode: "R5", ReturnedOn: "2024-01-01",
	})
	assert.Equal(t, CodeNotFound, apiCode(t, err))
}

func TestReopenRechecksExclusivity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, CreateLoanRequest{
		EquipmentCode: "INV-4", HolderKind: "researcher", HolderCode: "R1", AssignedOn: "2024-01-01",
	})
	require.NoError(t, err)
	_, err = svc.Close(ctx, CloseLoanRequest{
		EquipmentCode: "INV-4", HolderKind: "researcher", HolderCode: "R1", ReturnedOn: "2024-02-01",
	})
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, CreateLoanRequest{
		EquipmentCode: "INV-4", HolderKind: "doctoral_student", HolderCode: "S2", AssignedOn: "2024-02-02",
	})
	require.NoError(t, err)

	// The equipment moved on; the old loan cannot be reopened.
	_, err = svc.Reopen(ctx, ReopenLoanRequest{
		EquipmentCode: "INV-4", HolderKind: "researcher", HolderCode: "R1",
	})
	assert.Equal(t, CodeResourceBusy, apiCode(t, err))

	// Once the student returns it, reopening works again.
	_, err = svc.Close(ctx, CloseLoanRequest{
		EquipmentCode: "INV-4", HolderKind: "doctoral_student", HolderCode: "S2", ReturnedOn: "2024-03-01",
	})
	require.NoError(t, err)

	res, err := svc.Reopen(ctx, ReopenLoanRequest{
		EquipmentCode: "INV-4", HolderKind: "researcher", HolderCode: "R1",
	})
	require.NoError(t, err)
	assert.True(t, res.Open)
}

func TestDeleteIsUnconditional(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, CreateLoanRequest{
		EquipmentCode: "INV-5", HolderKind: "researcher", HolderCode: "R1", AssignedOn: "2024-01-01",
	})
	require.NoError(t, err)

	// Open loan, no invariant check on removal.
	require.NoError(t, svc.Delete(ctx, "INV-5", "researcher", "R1"))
	assert.Empty(t, ledger.rows)

	err = svc.Delete(ctx, "INV-5", "researcher", "R1")
	assert.Equal(t, CodeNotFound, apiCode(t, err))
}

func TestReserveValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, CreateLoanRequest{
		EquipmentCode: "INV-6", HolderKind: "professor", HolderCode: "P1", AssignedOn: "2024-01-01",
	})
	assert.Equal(t, CodeInvalidArgument, apiCode(t, err))

	_, err = svc.Reserve(ctx, CreateLoanRequest{
		EquipmentCode: "INV-6", HolderKind: "researcher", HolderCode: "R1", AssignedOn: "01/01/2024",
	})
	assert.Equal(t, CodeInvalidArgument, apiCode(t, err))

	_, err = svc.Reserve(ctx, CreateLoanRequest{
		EquipmentCode: "", HolderKind: "researcher", HolderCode: "R1", AssignedOn: "2024-01-01",
	})
	assert.Equal(t, CodeInvalidArgument, apiCode(t, err))
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()

	holders := []CreateLoanRequest{
		{EquipmentCode: "INV-7", HolderKind: "researcher", HolderCode: "R5", AssignedOn: "2024-01-01"},
		{EquipmentCode: "INV-7", HolderKind: "doctoral_student", HolderCode: "S9", AssignedOn: "2024-01-01"},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(holders))
	for i := range holders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(ctx, holders[i])
		}(i)
	}
	wg.Wait()

	var successes int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		code := apiCode(t, err)
		assert.Contains(t, []Code{CodeResourceBusy, CodeConcurrentConflict}, code)
	}
	assert.Equal(t, 1, successes, "exactly one concurrent reserve must win")
	assert.Equal(t, 1, ledger.openCountPerEquipment()["INV-7"])
}

func TestListOpenForIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, CreateLoanRequest{
		EquipmentCode: "INV-8", HolderKind: "doctoral_student", HolderCode: "S1", AssignedOn: "2024-01-01",
	})
	require.NoError(t, err)

	first, err := svc.ListOpenFor(ctx, "INV-8")
	require.NoError(t, err)
	second, err := svc.ListOpenFor(ctx, "INV-8")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first, 1)
	assert.Equal(t, "S1", first[0].HolderCode)
}

func TestListHistoryFiltersByHolder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, CreateLoanRequest{
		EquipmentCode: "INV-9", HolderKind: "researcher", HolderCode: "R1", AssignedOn: "2024-01-01",
	})
	require.NoError(t, err)
	_, err = svc.Close(ctx, CloseLoanRequest{
		EquipmentCode: "INV-9", HolderKind: "researcher", HolderCode: "R1", ReturnedOn: "2024-02-01",
	})
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, CreateLoanRequest{
		EquipmentCode: "INV-9", HolderKind: "researcher", HolderCode: "R2", AssignedOn: "2024-02-02",
	})
	require.NoError(t, err)

	holder := "R1"
	items, total, err := svc.ListHistory(ctx, LoanFilter{HolderCode: &holder}, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.False(t, items[0].Open)
}
