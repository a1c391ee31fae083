package reporting

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory reporting repository for tests.
type MemoryRepo struct {
	mu sync.Mutex

	Rows []memoryRow
}

type memoryRow struct {
	CompanyID string
	Row       CallRow
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Add(companyID string, row CallRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Rows = append(r.Rows, memoryRow{CompanyID: companyID, Row: row})
}

func (r *MemoryRepo) ListCallRows(_ context.Context, companyID string, from, to time.Time) ([]CallRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]CallRow, 0)
	for _, m := range r.Rows {
		if companyID != "" && m.CompanyID != companyID {
			continue
		}
		if m.Row.CallTime.Before(from) || m.Row.CallTime.After(to) {
			continue
		}
		out = append(out, m.Row)
	}
	return out, nil
}
