package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AngelCh415/mkt-kpi/internal/models"
	"github.com/AngelCh415/mkt-kpi/internal/telemetry"
)

var ErrNoData = errors.New("no data available; upload marketing event data first")

// Snapshot is one published generation. It is never modified after it has
// been published.
type Snapshot struct {
	Generation  uint64
	Events      *models.EventDataset
	Costs       *models.CostDataset
	Result      *models.KPIResult
	PublishedAt time.Time
}

type Computer interface {
	Compute(ctx context.Context, events *models.EventDataset, costs *models.CostDataset) (models.KPIResult, error)
}

// MemoryStore keeps the last accepted datasets and their KPIs in memory.
// Writers are serialised by mu; readers load the current pointer and never
// wait for a recomputation in flight.
type MemoryStore struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	comp    Computer
	tel     *telemetry.Metrics
	now     func() time.Time
}

func NewMemoryStore(comp Computer, tel *telemetry.Metrics) *MemoryStore {
	s := &MemoryStore{comp: comp, tel: tel, now: time.Now}
	s.current.Store(&Snapshot{})
	return s
}

// Current returns the last published snapshot.
func (s *MemoryStore) Current() *Snapshot { return s.current.Load() }

// Result returns the published KPIs or ErrNoData.
func (s *MemoryStore) Result() (*models.KPIResult, error) {
	snap := s.Current()
	if snap.Result == nil {
		return nil, ErrNoData
	}
	return snap.Result, nil
}

// PublishEvents replaces the events dataset and recomputes against the
// current costs.
func (s *MemoryStore) PublishEvents(ctx context.Context, ev *models.EventDataset) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publish(ctx, ev, s.current.Load().Costs)
}

// PublishCosts replaces the costs dataset. KPIs are recomputed when events
// are already loaded.
func (s *MemoryStore) PublishCosts(ctx context.Context, costs *models.CostDataset) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publish(ctx, s.current.Load().Events, costs)
}

// Publish replaces both datasets at once.
func (s *MemoryStore) Publish(ctx context.Context, ev *models.EventDataset, costs *models.CostDataset) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publish(ctx, ev, costs)
}

// publish must be called with mu held. On error the previous snapshot
// stays current.
func (s *MemoryStore) publish(ctx context.Context, ev *models.EventDataset, costs *models.CostDataset) (*Snapshot, error) {
	prev := s.current.Load()
	next := &Snapshot{
		Generation:  prev.Generation + 1,
		Events:      ev,
		Costs:       costs,
		PublishedAt: s.now().UTC(),
	}
	if ev != nil {
		start := time.Now()
		res, err := s.comp.Compute(ctx, ev, costs)
		if err != nil {
			return prev, err
		}
		s.tel.Compute(time.Since(start))
		next.Result = &res
	}
	s.current.Store(next)
	s.tel.Generation(next.Generation)
	return next, nil
}
