package batch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"miniloan/internal/batch"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockExpirer struct {
	mock.Mock
}

func (m *MockExpirer) ExpireStaleApplications(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

func TestExpireStaleApplicationsJobRun(t *testing.T) {
	t.Run("passes the configured age", func(t *testing.T) {
		expirer := new(MockExpirer)
		expirer.On("ExpireStaleApplications", mock.Anything, 72*time.Hour).Return(3, nil).Once()

		job := batch.NewExpireStaleApplicationsJob(expirer, 72*time.Hour, logger)
		require.NoError(t, job.Run(context.Background()))
		expirer.AssertExpectations(t)
	})

	t.Run("reports partial failures", func(t *testing.T) {
		expirer := new(MockExpirer)
		expirer.On("ExpireStaleApplications", mock.Anything, mock.Anything).Return(1, errors.New("2 of 3 rejections failed")).Once()

		job := batch.NewExpireStaleApplicationsJob(expirer, time.Hour, logger)
		err := job.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "2 of 3 rejections failed")
	})
}

func TestNewExpireStaleApplicationsJobValidates(t *testing.T) {
	assert.Panics(t, func() { batch.NewExpireStaleApplicationsJob(nil, time.Hour, logger) })
	assert.Panics(t, func() { batch.NewExpireStaleApplicationsJob(new(MockExpirer), 0, logger) })
}

type recordingJob struct {
	ran chan time.Time
}

func (j *recordingJob) Name() string { return "recording" }

func (j *recordingJob) Run(ctx context.Context) error {
	deadline, _ := ctx.Deadline()
	j.ran <- deadline
	return nil
}

func TestSchedule(t *testing.T) {
	t.Run("rejects a malformed cron expression", func(t *testing.T) {
		c := cron.New()
		_, err := batch.Schedule(c, "every tuesday", time.Minute, &recordingJob{}, logger)
		assert.Error(t, err)
		assert.Empty(t, c.Entries())
	})

	t.Run("runs the job with a bounded context", func(t *testing.T) {
		c := cron.New()
		job := &recordingJob{ran: make(chan time.Time, 1)}
		id, err := batch.Schedule(c, "@every 1h", 30*time.Second, job, logger)
		require.NoError(t, err)

		entry := c.Entry(id)
		require.True(t, entry.Valid())

		before := time.Now()
		entry.WrappedJob.Run()
		select {
		case deadline := <-job.ran:
			assert.WithinDuration(t, before.Add(30*time.Second), deadline, 5*time.Second)
		case <-time.After(time.Second):
			t.Fatal("job did not run")
		}
	})
}
