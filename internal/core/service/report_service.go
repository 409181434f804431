package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// ReportService derives time-bucketed in/out totals from the ledger.
// Movements are bucketed by the UTC calendar date of their timestamp.
type ReportService struct {
	store port.Store
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewReportService(store port.Store, log *zap.SugaredLogger) *ReportService {
	return &ReportService{
		store: store,
		log:   log.With("service", "report"),
		now:   time.Now,
	}
}

// WithReportClock fixes the clock; used by tests.
func (r *ReportService) WithReportClock(now func() time.Time) *ReportService {
	r.now = now
	return r
}

// DailySeries returns exactly windowDays consecutive days ending today
// (UTC), ascending, zero-filled for days without movements. This is the
// primary charting series: gap-free and totally ordered.
func (r *ReportService) DailySeries(ctx context.Context, windowDays int) ([]domain.DailyStat, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("window must cover at least one day, got %d", windowDays)
	}

	today := startOfDay(r.now().UTC())
	from := today.AddDate(0, 0, -(windowDays - 1))
	to := today.AddDate(0, 0, 1)

	mvs, err := r.store.ListMovementsRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	buckets := bucketByDate(mvs)

	series := make([]domain.DailyStat, 0, windowDays)
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		key := day.Format(domain.DateFormat)
		stat := domain.DailyStat{Date: key}
		if b, ok := buckets[key]; ok {
			stat = b
		}
		series = append(series, stat)
	}
	return series, nil
}

// RangeSeries is the sparse variant: only dates with at least one movement
// inside [from, to) appear, ascending. Useful for charting raw ledger
// contents without a fixed window.
func (r *ReportService) RangeSeries(ctx context.Context, from, to time.Time) ([]domain.DailyStat, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("range end %s is not after start %s", to.Format(domain.DateFormat), from.Format(domain.DateFormat))
	}

	mvs, err := r.store.ListMovementsRange(ctx, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}

	buckets := bucketByDate(mvs)
	series := make([]domain.DailyStat, 0, len(buckets))
	for _, stat := range buckets {
		series = append(series, stat)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	return series, nil
}

func bucketByDate(mvs []domain.Movement) map[string]domain.DailyStat {
	buckets := make(map[string]domain.DailyStat)
	for _, mv := range mvs {
		key := mv.Timestamp.UTC().Format(domain.DateFormat)
		stat := buckets[key]
		stat.Date = key
		if mv.Kind == domain.MovementIn {
			stat.TotalIn += mv.Quantity
		} else {
			stat.TotalOut += mv.Quantity
		}
		buckets[key] = stat
	}
	return buckets
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
