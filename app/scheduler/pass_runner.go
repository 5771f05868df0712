package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cantalab/leadflow/app/services"
	"github.com/sirupsen/logrus"
)

// PassFunc is one scheduler pass
type PassFunc func(ctx context.Context) error

// PassRunner runs a pass at most once at a time: in-process through an atomic flag,
// and across replicas through a lease.
type PassRunner struct {
	name     string
	pass     PassFunc
	lease    services.Lease
	leaseTTL time.Duration
	timeout  time.Duration
	logger   logrus.FieldLogger

	running atomic.Bool
}

// NewPassRunner creates a runner. A nil lease only guards within the process.
func NewPassRunner(name string, pass PassFunc, lease services.Lease, timeout, leaseTTL time.Duration, logger logrus.FieldLogger) *PassRunner {
	if lease == nil {
		lease = services.NoopLease{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if leaseTTL < timeout {
		leaseTTL = timeout
	}
	return &PassRunner{
		name:     name,
		pass:     pass,
		lease:    lease,
		leaseTTL: leaseTTL,
		timeout:  timeout,
		logger:   logger.WithField("pass", name),
	}
}

// Name returns the pass name used in logs, metrics and lease keys
func (r *PassRunner) Name() string { return r.name }

// Run executes the pass unless it is already running here or elsewhere.
// It returns the metric result recorded for the invocation.
func (r *PassRunner) Run(ctx context.Context) string {
	return r.guard(ctx, r.name, r.pass)
}

// RunNow executes fn under the same guard and lease as the pass, so it never overlaps a run of it.
// Results are recorded under the label "<pass>_now".
func (r *PassRunner) RunNow(ctx context.Context, fn PassFunc) string {
	return r.guard(ctx, r.name+"_now", fn)
}

func (r *PassRunner) guard(ctx context.Context, label string, fn PassFunc) string {
	log := r.logger.WithField("run", label)
	if !r.running.CompareAndSwap(false, true) {
		passRunsTotal.WithLabelValues(label, resultSkipped).Inc()
		log.Debug("previous run still in progress; skipping")
		return resultSkipped
	}
	defer r.running.Store(false)

	release, err := r.lease.Acquire(ctx, "pass:"+r.name, r.leaseTTL)
	if err != nil {
		passRunsTotal.WithLabelValues(label, resultError).Inc()
		log.WithError(err).Warn("failed to acquire pass lease")
		return resultError
	}
	if release == nil {
		passRunsTotal.WithLabelValues(label, resultLocked).Inc()
		log.Debug("pass lease held by another replica; skipping")
		return resultLocked
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			log.WithError(err).Warn("failed to release pass lease")
		}
	}()

	passCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err = safeRun(passCtx, fn)
	passDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	if err != nil {
		passRunsTotal.WithLabelValues(label, resultError).Inc()
		log.WithError(err).Error("pass failed")
		return resultError
	}
	passRunsTotal.WithLabelValues(label, resultOK).Inc()
	return resultOK
}

// safeRun keeps a panicking pass from taking the scheduler loop down
func safeRun(ctx context.Context, fn PassFunc) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p}
		}
	}()
	return fn(ctx)
}

type panicError struct{ value any }

func (e *panicError) Error() string {
	return fmt.Sprintf("pass panicked: %v", e.value)
}
