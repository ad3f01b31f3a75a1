package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sitefreelance/backend/internal/monitoring"
	"github.com/sitefreelance/backend/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsJobs(t *testing.T) {
	s := New()
	var runs int32
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
	}))

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(), "second start must fail")

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) > 0 }, 3*time.Second, 50*time.Millisecond)
	_, ok := s.LastRun("tick")
	assert.True(t, ok)

	<-s.Stop().Done()
	assert.False(t, s.IsRunning())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := New()
	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("Stop on an idle scheduler should return a finished context")
	}
}

func TestScheduler_BadSpec(t *testing.T) {
	assert.Error(t, New().Add("bad", "every now and then", func(context.Context) {}))
}

func TestPurgeLedger(t *testing.T) {
	ledger, err := ratelimit.NewLedger(10, 30*time.Second)
	require.NoError(t, err)

	now := time.Now()
	ledger.Record("old", now.Add(-time.Minute))
	ledger.Record("fresh", now)

	PurgeLedger(ledger, func() time.Time { return now })(context.Background())
	assert.Equal(t, 1, ledger.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(monitoring.Get().LedgerEntries))
}

type fakePool struct{}

func (fakePool) PoolStats() (int, int) { return 2, 3 }

func TestPublishPoolStats(t *testing.T) {
	PublishPoolStats(fakePool{})(context.Background())
	assert.Equal(t, 2.0, testutil.ToFloat64(monitoring.Get().DBConnectionsActive))
	assert.Equal(t, 3.0, testutil.ToFloat64(monitoring.Get().DBConnectionsIdle))
}

func TestRegisterMaintenance_DegradedSkipsPool(t *testing.T) {
	ledger, err := ratelimit.NewLedger(10, 30*time.Second)
	require.NoError(t, err)

	s := New()
	require.NoError(t, RegisterMaintenance(s, ledger, nil))
	assert.Len(t, s.cron.Entries(), 1)
}
