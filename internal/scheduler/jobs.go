package scheduler

import (
	"context"
	"time"

	"github.com/sitefreelance/backend/internal/monitoring"
)

// MaintenanceSpec is how often maintenance jobs run
const MaintenanceSpec = "@every 1m"

// LedgerPurger is the part of the rate ledger maintenance touches
type LedgerPurger interface {
	Purge(now time.Time) int
	Len() int
}

// PoolStatter reports database pool usage
type PoolStatter interface {
	PoolStats() (active, idle int)
}

// PurgeLedger drops stale rate-ledger entries and publishes its size
func PurgeLedger(ledger LedgerPurger, now func() time.Time) func(context.Context) {
	return func(context.Context) {
		ledger.Purge(now())
		monitoring.SetLedgerEntries(ledger.Len())
	}
}

// PublishPoolStats copies pool usage into the database gauges
func PublishPoolStats(pool PoolStatter) func(context.Context) {
	return func(context.Context) {
		monitoring.SetDBConnections(pool.PoolStats())
	}
}

// RegisterMaintenance adds the standard jobs. pool may be nil in degraded mode.
func RegisterMaintenance(s *Scheduler, ledger LedgerPurger, pool PoolStatter) error {
	if err := s.Add("purge_rate_ledger", MaintenanceSpec, PurgeLedger(ledger, time.Now)); err != nil {
		return err
	}
	if pool != nil {
		if err := s.Add("publish_pool_stats", MaintenanceSpec, PublishPoolStats(pool)); err != nil {
			return err
		}
	}
	return nil
}
