package supervisions

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLedger emulates the supervisions table with its three unique indexes.
// Checks and writes happen under one mutex, matching the serialization the
// MySQL store gets from its transaction + index guards.
type memLedger struct {
	mu     sync.Mutex
	rows   []*Supervision
	nextID int64
}

func (m *memLedger) ExecCreate(_ context.Context, s *Supervision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Pair history first: an exact pair reports the pair error whether the
	// existing record is open or closed.
	for _, r := range m.rows {
		if r.ResearcherCode == s.ResearcherCode && r.StudentCode == s.StudentCode {
			return ErrAlreadyRecorded()
		}
	}
	for _, r := range m.rows {
		if r.Open() && r.ResearcherCode == s.ResearcherCode {
			return ErrResearcherBusy(s.ResearcherCode)
		}
	}
	for _, r := range m.rows {
		if r.Open() && r.StudentCode == s.StudentCode {
			return ErrStudentBusy(s.StudentCode)
		}
	}
	m.nextID++
	s.SupervisionID = m.nextID
	cp := *s
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memLedger) find(researcher, student string) *Supervision {
	for _, r := range m.rows {
		if r.ResearcherCode == researcher && r.StudentCode == student {
			return r
		}
	}
	return nil
}

func (m *memLedger) ExecClose(_ context.Context, researcher, student string, endedOn time.Time) (*Supervision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.find(researcher, student)
	if r == nil {
		return nil, ErrNotFound("supervision not found")
	}
	if endedOn.Before(r.StartedOn) {
		return nil, ErrInvalidInterval()
	}
	r.EndedOn = sql.NullTime{Time: endedOn, Valid: true}
	cp := *r
	return &cp, nil
}

func (m *memLedger) ExecReopen(_ context.Context, researcher, student string) (*Supervision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.find(researcher, student)
	if r == nil {
		return nil, ErrNotFound("supervision not found")
	}
	if !r.Open() {
		for _, other := range m.rows {
			if other != r && other.Open() && other.ResearcherCode == researcher {
				return nil, ErrResearcherBusy(researcher)
			}
		}
		for _, other := range m.rows {
			if other != r && other.Open() && other.StudentCode == student {
				return nil, ErrStudentBusy(student)
			}
		}
		r.EndedOn = sql.NullTime{}
	}
	cp := *r
	return &cp, nil
}

func (m *memLedger) UpdateTheme(_ context.Context, researcher, student, theme string) (*Supervision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.find(researcher, student)
	if r == nil {
		return nil, ErrNotFound("supervision not found")
	}
	r.Theme = theme
	cp := *r
	return &cp, nil
}

func (m *memLedger) Delete(_ context.Context, researcher, student string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.ResearcherCode == researcher && r.StudentCode == student {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound("supervision not found")
}

func (m *memLedger) GetPair(_ context.Context, researcher, student string) (*Supervision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.find(researcher, student)
	if r == nil {
		return nil, ErrNotFound("supervision not found")
	}
	cp := *r
	return &cp, nil
}

func (m *memLedger) List(_ context.Context, f SupervisionFilter, _ Page) ([]Supervision, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Supervision
	for _, r := range m.rows {
		if f.ResearcherCode != nil && r.ResearcherCode != *f.ResearcherCode {
			continue
		}
		if f.StudentCode != nil && r.StudentCode != *f.StudentCode {
			continue
		}
		if f.Open != nil && r.Open() != *f.Open {
			continue
		}
		out = append(out, *r)
	}
	return out, int64(len(out)), nil
}

// openCounts is the invariant scan: at most one active supervision per
// researcher and per student.
func (m *memLedger) openCounts() (map[string]int, map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	researchers := map[string]int{}
	students := map[string]int{}
	for _, r := range m.rows {
		if r.Open() {
			researchers[r.ResearcherCode]++
			students[r.StudentCode]++
		}
	}
	return researchers, students
}

type stubDirectory struct{}

func (stubDirectory) ResearcherExists(_ context.Context, code string) (bool, error) {
	return code != "", nil
}
func (stubDirectory) StudentExists(_ context.Context, code string) (bool, error) {
	return code != "", nil
}

func newTestService(t *testing.T) (*Service, *memLedger) {
	t.Helper()
	ledger := &memLedger{}
	svc := &Service{
		store:     ledger,
		directory: stubDirectory{},
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

func TestCreateSupervisionExclusivity(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S100", Theme: "Thesis A", StartedOn: "2020-01-01",
	})
	require.NoError(t, err)

	// One active supervision per researcher.
	_, err = svc.Create(ctx, CreateSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S200", Theme: "Thesis B", StartedOn: "2020-02-01",
	})
	assert.Equal(t, CodeResearcherBusy, apiCode(t, err))

	// One active supervision per student.
	_, err = svc.Create(ctx, CreateSupervisionRequest{
		ResearcherCode: "R2", StudentCode: "S100", Theme: "Thesis C", StartedOn: "2020-02-01",
	})
	assert.Equal(t, CodeStudentBusy, apiCode(t, err))

	// After the defence the researcher takes a new student.
	_, err = svc.Close(ctx, CloseSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S100", EndedOn: "2022-01-01",
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S200", Theme: "Thesis B", StartedOn: "2022-02-01",
	})
	require.NoError(t, err)

	researchers, students := ledger.openCounts()
	for code, n := range researchers {
		assert.LessOrEqual(t, n, 1, "researcher %s has %d active supervisions", code, n)
	}
	for code, n := range students {
		assert.LessOrEqual(t, n, 1, "student %s has %d active supervisions", code, n)
	}
}

func TestCreateSupervisionPairRecordedOnlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S1", Theme: "Thesis", StartedOn: "2020-01-01",
	})
	require.NoError(t, err)

	// Re-submitting the exact pair while it is still open reports the pair
	// error, not the slot error.
	_, err = svc.Create(ctx, CreateSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S1", Theme: "Thesis resubmit", StartedOn: "2020-06-01",
	})
	assert.Equal(t, CodeAlreadyRecorded, apiCode(t, err))

	_, err = svc.Close(ctx, CloseSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S1", EndedOn: "2021-01-01",
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S1", Theme: "Thesis again", StartedOn: "2021-06-01",
	})
	assert.Equal(t, CodeAlreadyRecorded, apiCode(t, err))
}

func TestCreateReportsResearcherSlotWhenBothBusy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S8", Theme: "Thesis A", StartedOn: "2020-01-01",
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateSupervisionRequest{
		ResearcherCode: "R8", StudentCode: "S1", Theme: "Thesis B", StartedOn: "2020-01-01",
	})
	require.NoError(t, err)

	// Both slots are taken by other pairings; the researcher slot is
	// checked first, so the error is deterministic.
	_, err = svc.Create(ctx, CreateSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S1", Theme: "Thesis C", StartedOn: "2020-02-01",
	})
	assert.Equal(t, CodeResearcherBusy, apiCode(t, err))
}

func TestCloseSupervisionValidatesInterval(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S1", Theme: "Thesis", StartedOn: "2024-01-01",
	})
	require.NoError(t, err)

	_, err = svc.Close(ctx, CloseSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S1", EndedOn: "2023-12-31",
	})
	assert.Equal(t, CodeInvalidInterval, apiCode(t, err))

	res, err := svc.Close(ctx, CloseSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S1", EndedOn: "2024-01-01",
	})
	require.NoError(t, err)
	assert.False(t, res.Open)
}

func TestReopenSupervisionRechecksSlots(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S1", Theme: "Thesis", StartedOn: "2020-01-01",
	})
	require.NoError(t, err)
	_, err = svc.Close(ctx, CloseSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S1", EndedOn: "2021-01-01",
	})
	require.NoError(t, err)

	// Researcher moved on to another student.
	_, err = svc.Create(ctx, CreateSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S2", Theme: "Thesis B", StartedOn: "2021-02-01",
	})
	require.NoError(t, err)

	_, err = svc.Reopen(ctx, ReopenSupervisionRequest{ResearcherCode: "R1", StudentCode: "S1"})
	assert.Equal(t, CodeResearcherBusy, apiCode(t, err))

	_, err = svc.Close(ctx, CloseSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S2", EndedOn: "2022-01-01",
	})
	require.NoError(t, err)

	res, err := svc.Reopen(ctx, ReopenSupervisionRequest{ResearcherCode: "R1", StudentCode: "S1"})
	require.NoError(t, err)
	assert.True(t, res.Open)
}

func TestUpdateTheme(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S1", Theme: "Draft title", StartedOn: "2024-01-01",
	})
	require.NoError(t, err)

	res, err := svc.UpdateTheme(ctx, UpdateThemeRequest{
		ResearcherCode: "R1", StudentCode: "S1", Theme: "Final title",
	})
	require.NoError(t, err)
	assert.Equal(t, "Final title", res.Theme)

	_, err = svc.UpdateTheme(ctx, UpdateThemeRequest{
		ResearcherCode: "R1", StudentCode: "S1", Theme: strings.Repeat("x", MaxThemeLength+1),
	})
	assert.Equal(t, CodeInvalidArgument, apiCode(t, err))
}

func TestThemeLengthCountsCharacters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// 250 accented characters are 500 bytes but still a valid theme.
	accented := strings.Repeat("é", MaxThemeLength)
	res, err := svc.Create(ctx, CreateSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S1", Theme: accented, StartedOn: "2024-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, accented, res.Theme)

	_, err = svc.UpdateTheme(ctx, UpdateThemeRequest{
		ResearcherCode: "R1", StudentCode: "S1", Theme: strings.Repeat("é", MaxThemeLength+1),
	})
	assert.Equal(t, CodeInvalidArgument, apiCode(t, err))
}

func TestDeleteSupervisionIsUnconditional(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateSupervisionRequest{
		ResearcherCode: "R1", StudentCode: "S1", Theme: "Thesis", StartedOn: "2024-01-01",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "R1", "S1"))
	assert.Empty(t, ledger.rows)

	err = svc.Delete(ctx, "R1", "S1")
	assert.Equal(t, CodeNotFound, apiCode(t, err))
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()

	// Two students racing for the same researcher.
	reqs := []CreateSupervisionRequest{
		{ResearcherCode: "R9", StudentCode: "S1", Theme: "Thesis A", StartedOn: "2024-01-01"},
		{ResearcherCode: "R9", StudentCode: "S2", Theme: "Thesis B", StartedOn: "2024-01-01"},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(reqs))
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, reqs[i])
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
		assert.Contains(t, []Code{CodeResearcherBusy, CodeConcurrentConflict}, code)
	}
	assert.Equal(t, 1, successes, "exactly one concurrent create must win")

	researchers, _ := ledger.openCounts()
	assert.Equal(t, 1, researchers["R9"])
}
