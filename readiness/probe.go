package readiness

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPath           = "/key-exchange"
	DefaultInterval       = 5 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultTimeout        = 1200 * time.Second
)

// Pinger is satisfied by clients.CommerceClient.
type Pinger interface {
	Ping(ctx context.Context, path string) error
}

type Options struct {
	// URL is only used in log lines.
	URL            string
	Path           string
	Interval       time.Duration
	RequestTimeout time.Duration
	Timeout        time.Duration
}

func (o Options) withDefaults() Options {
	if o.Path == "" {
		o.Path = DefaultPath
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// TimeoutError is returned when the backend never answered within the overall timeout.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Timeout: Backend not ready within %d seconds", int(e.After.Seconds()))
}

// Wait polls the backend until it answers, the overall timeout passes or ctx
// is cancelled.
func Wait(ctx context.Context, p Pinger, opts Options, logger *zap.Logger) error {
	opts = opts.withDefaults()
	start := time.Now()

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	for {
		reqCtx, reqCancel := context.WithTimeout(waitCtx, opts.RequestTimeout)
		err := p.Ping(reqCtx, opts.Path)
		reqCancel()
		if err == nil {
			logger.Info("Backend is ready!")
			return nil
		}

		elapsed := int(time.Since(start).Seconds())
		logger.Info(fmt.Sprintf("Waiting for backend at %s... Elapsed: %ds", opts.URL, elapsed), zap.Error(err))

		timer := time.NewTimer(opts.Interval)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TimeoutError{After: opts.Timeout}
		case <-timer.C:
		}
	}
}
