package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/mkt-kpi/internal/models"
)

// fakeComputer echoes the number of event records into Views.
type fakeComputer struct {
	err error
}

func (f fakeComputer) Compute(_ context.Context, ev *models.EventDataset, costs *models.CostDataset) (models.KPIResult, error) {
	if f.err != nil {
		return models.KPIResult{}, f.err
	}
	res := models.KPIResult{Views: int64(len(ev.Records))}
	if costs != nil {
		res.Purchases = int64(len(costs.Records))
	}
	return res, nil
}

func dataset(n int) *models.EventDataset {
	return &models.EventDataset{Records: make([]models.EventRecord, n)}
}

func TestEmptyStore(t *testing.T) {
	st := NewMemoryStore(fakeComputer{}, nil)
	_, err := st.Result()
	assert.ErrorIs(t, err, ErrNoData)
	assert.Zero(t, st.Current().Generation)
}

func TestPublishSeparately(t *testing.T) {
	st := NewMemoryStore(fakeComputer{}, nil)

	snap, err := st.PublishCosts(context.Background(), &models.CostDataset{Records: make([]models.CostRecord, 2)})
	require.NoError(t, err)
	assert.Nil(t, snap.Result)
	assert.EqualValues(t, 1, snap.Generation)

	snap, err = st.PublishEvents(context.Background(), dataset(3))
	require.NoError(t, err)
	require.NotNil(t, snap.Result)
	assert.EqualValues(t, 3, snap.Result.Views)
	assert.EqualValues(t, 2, snap.Result.Purchases)
	assert.EqualValues(t, 2, snap.Generation)

	res, err := st.Result()
	require.NoError(t, err)
	assert.Same(t, snap.Result, res)
}

func TestFailedComputeKeepsPreviousSnapshot(t *testing.T) {
	st := NewMemoryStore(fakeComputer{}, nil)
	good, err := st.PublishEvents(context.Background(), dataset(1))
	require.NoError(t, err)

	boom := errors.New("boom")
	st.comp = fakeComputer{err: boom}
	_, err = st.PublishEvents(context.Background(), dataset(5))
	assert.ErrorIs(t, err, boom)
	assert.Same(t, good, st.Current())
}

func TestConcurrentReadersSeeCompleteSnapshots(t *testing.T) {
	st := NewMemoryStore(fakeComputer{}, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 1; w <= 8; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, err := st.Publish(ctx, dataset(n), &models.CostDataset{Records: make([]models.CostRecord, n)})
				assert.NoError(t, err)
			}
		}(w)
	}
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := st.Current()
				if snap.Result == nil {
					continue
				}
				// events and costs of one snapshot were published together
				assert.Equal(t, snap.Result.Views, snap.Result.Purchases)
				assert.EqualValues(t, len(snap.Events.Records), snap.Result.Views)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 400, st.Current().Generation)
}

// gatedComputer holds its first Compute call until release is closed.
type gatedComputer struct {
	fakeComputer
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedComputer) Compute(ctx context.Context, ev *models.EventDataset, costs *models.CostDataset) (models.KPIResult, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.fakeComputer.Compute(ctx, ev, costs)
}

func TestPublishEventsKeepsCostsPublishedMeanwhile(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(fakeComputer{}, nil)
	_, err := st.Publish(ctx, dataset(1), &models.CostDataset{Records: make([]models.CostRecord, 1)})
	require.NoError(t, err)

	gate := &gatedComputer{entered: make(chan struct{}), release: make(chan struct{})}
	st.comp = gate
	newCosts := &models.CostDataset{Records: make([]models.CostRecord, 2)}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := st.PublishCosts(ctx, newCosts)
		assert.NoError(t, err)
	}()
	<-gate.entered
	go func() {
		defer wg.Done()
		_, err := st.PublishEvents(ctx, dataset(3))
		assert.NoError(t, err)
	}()
	close(gate.release)
	wg.Wait()

	snap := st.Current()
	assert.EqualValues(t, 3, snap.Generation)
	assert.Same(t, newCosts, snap.Costs)
	assert.EqualValues(t, 3, snap.Result.Views)
	assert.EqualValues(t, 2, snap.Result.Purchases)
}
