package shopsrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/multistore/shop"
)

const newCustomerWindow = 7 * 24 * time.Hour

type StatsService struct {
	stats shop.StatsRepository
	now   func() time.Time
}

func NewStatsService(stats shop.StatsRepository) *StatsService {
	return &StatsService{
		stats: stats,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Stats reports the active tenant's store; "new" customers joined in the
// last week.
func (s *StatsService) Stats(ctx context.Context) (*shop.StoreStats, error) {
	return s.stats.Stats(ctx, s.now().Add(-newCustomerWindow))
}
