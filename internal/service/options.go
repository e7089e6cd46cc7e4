package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"service-schedule/internal/domain"
	"service-schedule/internal/metrics"
	"service-schedule/internal/repository"
)

// Options carries the collaborators shared by every service.
type Options struct {
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	ReadRetry RetryPolicy
	// Location is the zone "today" is computed in.
	Location *time.Location
	Clock    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if o.ReadRetry.Attempts <= 0 {
		o.ReadRetry.Attempts = 1
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// today is the civil date of the clock in the configured zone.
func (o Options) today() time.Time {
	return domain.CivilDate(o.Clock().In(o.Location))
}

// RetryPolicy bounds automatic retries of read-only store work.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// retryRead runs fn until it succeeds, fails with a non-transient error, ctx
// ends or the attempts run out. Writes never go through here.
func (o Options) retryRead(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || attempt >= o.ReadRetry.Attempts || !repository.IsTransient(err) || ctx.Err() != nil {
			return err
		}
		o.Metrics.ReadRetries.WithLabelValues(op).Inc()
		o.Logger.Warn("retrying read after transient store error",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(o.ReadRetry.Backoff * time.Duration(attempt)):
		}
	}
}

// readTx runs a read-only transaction under the retry policy.
func (o Options) readTx(ctx context.Context, txManager repository.TxManager, op string, fn func(ctx context.Context, repos repository.TxRepositories) error) error {
	return o.retryRead(ctx, op, func() error {
		return txManager.WithTx(ctx, fn)
	})
}

// stamp assigns the outbox id and the time the event happened.
func (o Options) stamp(event domain.TimetableEvent) domain.TimetableEvent {
	event.ID = newID()
	event.OccurredAt = o.Clock().UTC()
	return event
}

var newID = uuid.New
