package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AltairaLabs/roboshen/runtime/i18n"
	"github.com/AltairaLabs/roboshen/runtime/logger"
	"github.com/AltairaLabs/roboshen/runtime/transcript"
)

// FailureAck is returned to the model for every failed invocation.
const FailureAck = "Sorry, I couldn't do that."

// DefaultTimeout bounds a single invocation.
const DefaultTimeout = 2 * time.Minute

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Registry *Registry

	// Printer renders the failure notice. Defaults to Persian.
	Printer *i18n.Printer

	// RateLimit is the sustained invocation rate shared by all batches.
	// Zero means unlimited.
	RateLimit rate.Limit
	Burst     int

	// Timeout bounds each invocation. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Dispatcher executes invocation batches.
type Dispatcher struct {
	registry *Registry
	printer  *i18n.Printer
	limiter  *rate.Limiter
	timeout  time.Duration
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, errors.New("tools: dispatcher requires a registry")
	}
	if cfg.Printer == nil {
		cfg.Printer = i18n.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Dispatcher{
		registry: cfg.Registry,
		printer:  cfg.Printer,
		limiter:  rate.NewLimiter(limit, burst),
		timeout:  cfg.Timeout,
	}, nil
}

// Registry returns the registry the dispatcher executes against.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs batch concurrently and calls deliver exactly once per
// invocation, in completion order. deliver calls never overlap. Dispatch
// returns after the last delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, batch []Invocation, deliver func(Result)) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	for _, inv := range batch {
		g.Go(func() error {
			res := d.run(ctx, inv)
			mu.Lock()
			defer mu.Unlock()
			deliver(res)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) run(ctx context.Context, inv Invocation) Result {
	ctx = logger.WithInvocation(ctx, inv.Name, inv.ID)
	logger.ToolCall(ctx, inv.Name, inv.ID)

	start := time.Now()
	outcome, err := d.execute(ctx, inv)
	res := Result{Invocation: inv, Duration: time.Since(start)}

	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		res.Outcome = d.failure()
	} else {
		res.Status = StatusCompleted
		res.Outcome = *outcome
	}

	logger.ToolResult(ctx, inv.Name, inv.ID, res.Duration, err)
	return res
}

func (d *Dispatcher) execute(ctx context.Context, inv Invocation) (out *Outcome, err error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %s: %v", ErrCapabilityPanic, inv.Name, r)
		}
	}()
	return d.registry.Execute(ctx, inv)
}

// failure is the outcome recorded for every failed invocation.
func (d *Dispatcher) failure() Outcome {
	return Outcome{
		Kind:    transcript.KindText,
		Payload: d.printer.Text(i18n.ToolFailureNotice),
		Ack:     FailureAck,
	}
}
