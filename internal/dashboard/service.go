package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/supratours/virements/internal/shared"
)

const mostOverdueLimit = 10

// Service builds the unpaid-invoice aging and keeps it cached.
type Service struct {
	repo   Repository
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the repository with a cache.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// Summary returns today's aging, from cache when possible.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	today := shared.Today(s.now())
	key, err := s.cache.Key(ctx, today)
	if err != nil {
		s.logger.Warn("dashboard cache unavailable", slog.Any("error", err))
		return s.build(ctx, today)
	}
	res, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.cache.Fetch(ctx, key, func(ctx context.Context) (Summary, error) {
			return s.build(ctx, today)
		})
	})
	if err != nil {
		return Summary{}, err
	}
	return res.(Summary), nil
}

// PayablesChanged invalidates the cached summaries.
func (s *Service) PayablesChanged(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) build(ctx context.Context, today time.Time) (Summary, error) {
	var (
		unpaid  []UnpaidInvoice
		overdue []UnpaidInvoice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		unpaid, err = s.repo.UnpaidInvoices(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		overdue, err = s.repo.MostOverdue(gctx, today, mostOverdueLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	summary := Aggregate(unpaid, today)
	if overdue == nil {
		overdue = []UnpaidInvoice{}
	}
	summary.MostOverdue = overdue
	return summary, nil
}

// Aggregate buckets the invoices globally and per beneficiary, keeping
// beneficiaries in first-seen order.
func Aggregate(invoices []UnpaidInvoice, today time.Time) Summary {
	out := Summary{AsOf: today, Buckets: emptyBuckets(), Total: decimal.Zero, Beneficiaries: []BeneficiaryAging{}}
	index := map[int64]int{}
	for _, inv := range invoices {
		i := bucketIndex(BucketFor(inv.DateEcheance, today))
		out.Buckets[i].Count++
		out.Buckets[i].Total = out.Buckets[i].Total.Add(inv.MntNetAPayer)
		out.Total = out.Total.Add(inv.MntNetAPayer)

		pos, ok := index[inv.BeneficiaireID]
		if !ok {
			pos = len(out.Beneficiaries)
			index[inv.BeneficiaireID] = pos
			out.Beneficiaries = append(out.Beneficiaries, BeneficiaryAging{
				BeneficiaireID:  inv.BeneficiaireID,
				BeneficiaireNom: inv.BeneficiaireNom,
				Buckets:         emptyBuckets(),
				Total:           decimal.Zero,
			})
		}
		b := &out.Beneficiaries[pos]
		b.Buckets[i].Count++
		b.Buckets[i].Total = b.Buckets[i].Total.Add(inv.MntNetAPayer)
		b.Total = b.Total.Add(inv.MntNetAPayer)
	}
	return out
}
