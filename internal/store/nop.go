package store

import (
	"context"
	"sync"
	"time"

	"github.com/mofyally02/atozbot/internal/model"
)

var (
	_ History         = (*Nop)(nil)
	_ model.SeenStore = (*MemorySeen)(nil)
)

// MemorySeen remembers acted-on refs for the life of the process.
type MemorySeen struct {
	mu   sync.Mutex
	refs map[string]struct{}
}

func NewMemorySeen() *MemorySeen {
	return &MemorySeen{refs: make(map[string]struct{})}
}

func (m *MemorySeen) HasSeen(ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.refs[ref]
	return ok, nil
}

func (m *MemorySeen) MarkSeen(ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[ref] = struct{}{}
	return nil
}

// Nop is the history used when store.driver is "none". Nothing is persisted,
// but acted-on refs are still remembered in memory so a session never acts
// on the same job twice.
type Nop struct {
	*MemorySeen
}

func NewNop() *Nop { return &Nop{MemorySeen: NewMemorySeen()} }

func (Nop) CreateSession(context.Context, Session) error { return nil }
func (Nop) UpdateCounters(context.Context, string, Counters) error { return nil }
func (Nop) SetLoginStatus(context.Context, string, string) error { return nil }
func (Nop) EndSession(context.Context, string, string, time.Time) error { return nil }
func (Nop) Sessions(context.Context, int) ([]Session, error) { return nil, nil }
func (Nop) AddJob(context.Context, JobRow) error { return nil }
func (Nop) Jobs(context.Context, JobQuery) ([]JobRow, error) { return nil, nil }
func (Nop) AddLog(context.Context, LogEntry) error { return nil }
func (Nop) Logs(context.Context, string, int) ([]LogEntry, error) { return nil, nil }
func (Nop) AddAnalytics(context.Context, AnalyticsPeriod) error { return nil }
func (Nop) Analytics(context.Context, int) ([]AnalyticsPeriod, error) { return nil, nil }
func (Nop) Cleanup(context.Context, time.Time) error { return nil }
func (Nop) Close() error { return nil }
