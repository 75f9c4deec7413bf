// Package retry runs collaborator calls with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/common"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// Policy describes how often and how patiently a call is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	// NonRetryable short-circuits errors that will not succeed on retry.
	// Nil uses DefaultNonRetryable.
	NonRetryable func(error) bool
}

// Default returns three attempts starting at 500ms and doubling up to 5s.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    5 * time.Second,
	}
}

// DefaultNonRetryable treats validation failures, missing records,
// cancellation and Binance request rejections as permanent.
func DefaultNonRetryable(err error) bool {
	return domain.IsValidation(err) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvariantViolation) ||
		errors.Is(err, context.Canceled) ||
		rejectedByExchange(err)
}

// transientAPICodes are the Binance error codes that describe the server or
// the clock rather than the request.
var transientAPICodes = map[int64]bool{
	-1000: true, // unknown error
	-1001: true, // internal disconnect
	-1003: true, // too many requests
	-1006: true, // unexpected response
	-1007: true, // backend timeout
	-1008: true, // server overloaded
	-1021: true, // timestamp outside recvWindow
}

// rejectedByExchange reports a Binance API error for a bad request: invalid
// symbol, precision, margin, signature. Code 0 means the body was not a Binance
// error document, which is typical of a 5xx from a proxy.
func rejectedByExchange(err error) bool {
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code != 0 && !transientAPICodes[apiErr.Code]
}

func (p Policy) permanent(err error) bool {
	if p.NonRetryable != nil {
		return p.NonRetryable(err)
	}
	return DefaultNonRetryable(err)
}

// Delay returns the wait before the given retry, counting from zero.
func (p Policy) Delay(retry int) time.Duration {
	d := p.BaseDelay
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	for i := 0; i < retry; i++ {
		d = time.Duration(float64(d) * mult)
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

// Do calls fn until it succeeds, fails permanently, exhausts attempts or ctx
// is done. The last error is returned wrapped with the attempt count.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if p.permanent(err) || i == attempts-1 {
			break
		}
		t := time.NewTimer(p.Delay(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
	if attempts == 1 || p.permanent(err) {
		return err
	}
	return fmt.Errorf("retry: %d attempts: %w", attempts, err)
}

// Value is Do for calls that return a result.
func Value[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
