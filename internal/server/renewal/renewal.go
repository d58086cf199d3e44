// Package renewal keeps the secret-manager lease alive for the lifetime of
// the process. When renewal cannot succeed within the retry budget it fires
// the shutdown signal once and stops.
package renewal

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/genesis/internal/common"
	"github.com/dmitrijs2005/genesis/internal/logging"
	"github.com/dmitrijs2005/genesis/internal/server/credentials"
	"github.com/dmitrijs2005/genesis/internal/server/metrics"
	"github.com/dmitrijs2005/genesis/internal/server/shutdown"
	"github.com/sethvargo/go-retry"
)

const (
	defaultBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Authenticator obtains and extends leases from the secret manager.
type Authenticator interface {
	Login(ctx context.Context) (*credentials.Lease, error)
	Renew(ctx context.Context, lease *credentials.Lease) (*credentials.Lease, error)
}

// Config tunes the renewal loop.
type Config struct {
	// Margin is how long before expiry renewal starts. It is capped to half the TTL.
	Margin time.Duration
	// MaxAttempts is the total number of renewal attempts per cycle.
	MaxAttempts uint64
	// Backoff is the base delay of the exponential backoff between attempts.
	Backoff time.Duration
	// AttemptTimeout bounds each call to the secret manager.
	AttemptTimeout time.Duration
}

// Handle is held for the process lifetime. It carries no control over the
// loop; cancellation flows from the loop to the shutdown trigger.
type Handle struct {
	done chan struct{}
}

// Done is closed when the renewal loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

type coordinator struct {
	cfg     Config
	auth    Authenticator
	store   *credentials.Store
	trigger shutdown.Trigger
	log     logging.Logger
	now     func() time.Time
}

// Start performs the initial login, publishes the lease to store and spawns
// the renewal loop. A failed initial login is returned and nothing is spawned.
func Start(ctx context.Context, cfg Config, auth Authenticator, store *credentials.Store, trigger shutdown.Trigger, log logging.Logger) (*Handle, error) {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}

	c := &coordinator{
		cfg:     cfg,
		auth:    auth,
		store:   store,
		trigger: trigger,
		log:     log.With("module", "renewal"),
		now:     time.Now,
	}

	lease, err := c.attempt(ctx, auth.Login)
	if err != nil {
		return nil, fmt.Errorf("initial login: %w", err)
	}
	c.publish(lease)
	c.log.Info(ctx, "credentials acquired", "ttl", lease.TTL.String(), "renewable", lease.Renewable)

	h := &Handle{done: make(chan struct{})}
	go c.run(ctx, h.done)
	return h, nil
}

func (c *coordinator) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for {
		lease := c.store.Current()

		if !c.sleep(ctx, c.untilRenewal(lease)) {
			c.log.Debug(ctx, "renewal loop stopped")
			return
		}

		next, err := c.renew(ctx, lease)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error(ctx, "credential renewal exhausted, requesting shutdown",
				"attempts", c.cfg.MaxAttempts, "error", err)
			c.trigger(fmt.Errorf("%w: %w", common.ErrRenewalExhausted, err))
			return
		}

		c.publish(next)
		c.log.Info(ctx, "credentials renewed", "ttl", next.TTL.String())
	}
}

// untilRenewal returns how long to wait before renewing lease, or a negative
// duration when the lease never expires.
func (c *coordinator) untilRenewal(lease *credentials.Lease) time.Duration {
	if lease == nil || lease.TTL <= 0 {
		return -1
	}

	margin := c.cfg.Margin
	if half := lease.TTL / 2; margin > half {
		margin = half
	}

	d := lease.ExpiresAt().Add(-margin).Sub(c.now())
	if d < 0 {
		return 0
	}
	return d
}

// sleep waits for d (forever when negative) and reports false when ctx ended first.
func (c *coordinator) sleep(ctx context.Context, d time.Duration) bool {
	if d < 0 {
		<-ctx.Done()
		return false
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *coordinator) renew(ctx context.Context, lease *credentials.Lease) (*credentials.Lease, error) {
	b := retry.NewExponential(c.cfg.Backoff)
	b = retry.WithJitterPercent(10, b)
	b = retry.WithCappedDuration(maxBackoff, b)
	b = retry.WithMaxRetries(c.cfg.MaxAttempts-1, b)

	n := 0
	return retry.DoValue(ctx, b, func(ctx context.Context) (*credentials.Lease, error) {
		n++
		next, err := c.attempt(ctx, func(ctx context.Context) (*credentials.Lease, error) {
			return c.auth.Renew(ctx, lease)
		})
		metrics.IncrementRenewalAttempt(err == nil)
		if err != nil {
			c.log.Warn(ctx, "credential renewal attempt failed", "attempt", n, "error", err)
			return nil, retry.RetryableError(err)
		}
		return next, nil
	})
}

// attempt runs fn bounded by the per-attempt timeout. A timeout counts as a
// failed attempt.
func (c *coordinator) attempt(ctx context.Context, fn func(context.Context) (*credentials.Lease, error)) (*credentials.Lease, error) {
	if c.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.AttemptTimeout)
		defer cancel()
	}
	return fn(ctx)
}

func (c *coordinator) publish(lease *credentials.Lease) {
	c.store.Set(lease)
	metrics.SetLeaseExpiry(lease.ExpiresAt())
}
