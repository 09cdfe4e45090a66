package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type StaleApplicationExpirer interface {
	ExpireStaleApplications(ctx context.Context, olderThan time.Duration) (int, error)
}

// ExpireStaleApplicationsJob rejects PENDING applications nobody decided on
// within the configured age.
type ExpireStaleApplicationsJob struct {
	loans  StaleApplicationExpirer
	maxAge time.Duration
	logger *slog.Logger
}

func NewExpireStaleApplicationsJob(loans StaleApplicationExpirer, maxAge time.Duration, logger *slog.Logger) *ExpireStaleApplicationsJob {
	if loans == nil || logger == nil {
		panic("ExpireStaleApplicationsJob dependencies cannot be nil")
	}
	if maxAge <= 0 {
		panic("ExpireStaleApplicationsJob max age must be positive")
	}
	return &ExpireStaleApplicationsJob{
		loans:  loans,
		maxAge: maxAge,
		logger: logger.With("job", "ExpireStaleApplications"),
	}
}

func (j *ExpireStaleApplicationsJob) Name() string {
	return "ExpireStaleApplications"
}

func (j *ExpireStaleApplicationsJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting stale application expiry job.", slog.Duration("max_age", j.maxAge))

	rejected, err := j.loans.ExpireStaleApplications(ctx, j.maxAge)
	summary := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("applications_rejected", rejected),
	)
	if err != nil {
		summary.ErrorContext(ctx, "Stale application expiry job finished with errors.", slog.Any("error", err))
		return fmt.Errorf("stale application expiry failed: %w", err)
	}

	summary.InfoContext(ctx, "Stale application expiry job finished successfully.")
	return nil
}
