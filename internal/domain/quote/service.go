package quote

import (
	"context"
	"fmt"
	"log/slog"

	"miniloan/internal/domain/emi"
	"miniloan/internal/domain/rate"
	"miniloan/internal/infrastructure/monitoring"

	"github.com/shopspring/decimal"
)

// Cache stores computed quotes keyed by their inputs. Implementations must
// report a miss with found == false and a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (q *Quote, found bool, err error)
	Set(ctx context.Context, key string, q *Quote) error
}

type NopCache struct{}

func (NopCache) Get(context.Context, string) (*Quote, bool, error) { return nil, false, nil }

func (NopCache) Set(context.Context, string, *Quote) error { return nil }

type Calculator interface {
	Calculate(ctx context.Context, req Request) (*Quote, error)
}

type Service struct {
	policy        *rate.Policy
	limits        Limits
	defaultIncome decimal.Decimal
	cache         Cache
	logger        *slog.Logger
}

func NewService(policy *rate.Policy, limits Limits, defaultIncome decimal.Decimal, cache Cache, logger *slog.Logger) *Service {
	if policy == nil {
		policy = rate.Default()
	}
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{
		policy:        policy,
		limits:        limits,
		defaultIncome: defaultIncome,
		cache:         cache,
		logger:        logger.With("component", "QuoteService"),
	}
}

func (s *Service) Limits() Limits {
	return s.limits
}

func (s *Service) Tiers() []rate.Tier {
	return s.policy.Tiers()
}

func (s *Service) Calculate(ctx context.Context, req Request) (*Quote, error) {
	if err := s.limits.Validate(req.Principal, req.TenureMonths); err != nil {
		return nil, err
	}

	income := s.defaultIncome
	if req.MonthlyIncome != nil {
		income = *req.MonthlyIncome
	}
	annualRate, err := s.policy.ForIncome(income)
	if err != nil {
		return nil, err
	}

	q, err := s.cachedQuote(ctx, req.Principal, req.TenureMonths, annualRate)
	if err != nil {
		return nil, err
	}
	q.MonthlyIncome = income

	if req.IncludeSchedule {
		schedule, err := emi.Schedule(req.Principal, annualRate, req.TenureMonths)
		if err != nil {
			return nil, err
		}
		q.Schedule = schedule
	}
	return q, nil
}

func (s *Service) cachedQuote(ctx context.Context, principal decimal.Decimal, tenure int, annualRate decimal.Decimal) (*Quote, error) {
	key := cacheKey(principal, tenure, annualRate)

	cached, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "Quote cache lookup failed", "key", key, "error", err)
	}
	if found && cached != nil {
		monitoring.RecordQuote("hit")
		copied := *cached
		return &copied, nil
	}

	result, err := emi.Compute(principal, annualRate, tenure)
	if err != nil {
		return nil, err
	}
	q := &Quote{
		Principal:         principal,
		TenureMonths:      tenure,
		AnnualRatePercent: annualRate,
		MonthlyEmi:        result.MonthlyEmi,
		TotalInterest:     result.TotalInterest,
		TotalPayment:      result.TotalPayment,
	}
	monitoring.RecordQuote("miss")

	if err := s.cache.Set(ctx, key, q); err != nil {
		s.logger.WarnContext(ctx, "Quote cache store failed", "key", key, "error", err)
	}
	copied := *q
	return &copied, nil
}

func cacheKey(principal decimal.Decimal, tenure int, annualRate decimal.Decimal) string {
	return fmt.Sprintf("quote:%s:%d:%s", principal.StringFixed(emi.CurrencyPlaces), tenure, annualRate.String())
}
