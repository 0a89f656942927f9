// Package dispatch is the per-subscription message dispatch engine: given
// one raw broker delivery it selects which registered handler item consumes
// it, runs the handler through the combined middleware chain, publishes any
// responses, and records the attempt outcome on the watcher for the
// transport's acknowledgment decision.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"relay/internal/logger"
	apperrors "relay/pkg/errors"
	"relay/pkg/logging"
	"relay/pkg/metrics"
	"relay/pkg/models"
	"relay/pkg/watch"
)

const (
	statusProcessed = "processed"
	statusStopped   = "stopped"
	statusError     = "error"
	statusUnhandled = "unhandled"
	statusSkipped   = "skipped"
)

// Config wires one Dispatcher. Watcher defaults to the unlimited policy and
// LogContext to DefaultLogContext.
type Config struct {
	Name            string
	Middlewares     []MiddlewareFactory
	Watcher         watch.Watcher
	LogContext      LogContextBuilder
	GracefulTimeout time.Duration
	Logger          logger.Logger
}

// Dispatcher owns the ordered handler items, the running flag, the global
// middleware factories and the drain lock for one subscription. Many
// Consume calls may run concurrently against the same Dispatcher; each call
// owns its envelopes and middleware scopes exclusively.
type Dispatcher struct {
	name            string
	middlewares     []MiddlewareFactory
	watcher         watch.Watcher
	logContext      LogContextBuilder
	gracefulTimeout time.Duration
	logger          logger.Logger

	mu      sync.Mutex
	items   []*HandlerItem
	running atomic.Bool
	lock    *MultiLock
}

func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		name:            cfg.Name,
		middlewares:     append([]MiddlewareFactory(nil), cfg.Middlewares...),
		watcher:         cfg.Watcher,
		logContext:      cfg.LogContext,
		gracefulTimeout: cfg.GracefulTimeout,
		logger:          cfg.Logger,
		lock:            NewMultiLock(),
	}

	if d.watcher == nil {
		d.watcher = watch.NewUnlimited()
	}
	if d.logContext == nil {
		d.logContext = DefaultLogContext
	}
	if d.logger == nil {
		d.logger = logger.NopLogger()
	}

	return d
}

func (d *Dispatcher) Name() string { return d.name }

// Register appends one handler item. The registry is append-only and frozen
// once the dispatcher starts.
func (d *Dispatcher) Register(reg Registration) (*HandlerItem, error) {
	if reg.Handler == nil {
		return nil, apperrors.NewError("NO_HANDLER", "registration requires a handler").AsFatal()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return nil, apperrors.NewError("ALREADY_STARTED", "cannot register handlers on a started subscription").AsFatal()
	}

	item := newHandlerItem(reg)
	d.items = append(d.items, item)
	return item, nil
}

// Items returns the registered handler items in registration order.
func (d *Dispatcher) Items() []*HandlerItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*HandlerItem(nil), d.items...)
}

// Start flips the running flag. Idempotent.
func (d *Dispatcher) Start() {
	d.running.Store(true)
}

func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

// InFlight reports deliveries currently inside Consume.
func (d *Dispatcher) InFlight() int {
	return d.lock.Size()
}

// Close stops accepting new deliveries and waits up to the graceful timeout
// for in-flight dispatch calls to drain. It returns after the timeout even
// if work remains; in-flight calls are never cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.running.Store(false)

	if drained := d.lock.Wait(d.gracefulTimeout); !drained {
		d.logger.WarnwCtx(ctx, "Subscription closed with work still in flight",
			"subscription", d.name,
			"in_flight", d.lock.Size(),
			"graceful_timeout", d.gracefulTimeout,
		)
	}
	return nil
}

// stop flips the running flag without draining. Used for the handler-raised
// stop signal, where the current delivery itself still holds the drain lock.
func (d *Dispatcher) stop() {
	d.running.Store(false)
}

// Consume dispatches one raw delivery. It returns the value produced by the
// handler item that consumed the message, or nil when the dispatcher is not
// running. Handler errors propagate to the caller after being recorded on
// the watcher; the drain lock and every middleware scope are released on all
// paths.
func (d *Dispatcher) Consume(ctx context.Context, raw *models.RawMessage) (_ any, err error) {
	if !d.running.Load() {
		return nil, nil
	}

	start := time.Now()
	status := statusProcessed

	d.lock.Acquire()
	metrics.MessagesInFlight.WithLabelValues(d.name).Inc()
	defer func() {
		metrics.MessagesInFlight.WithLabelValues(d.name).Dec()
		metrics.MessagesDispatchedTotal.WithLabelValues(d.name, status).Inc()
		metrics.DispatchDuration.WithLabelValues(d.name, status).
			Observe(float64(time.Since(start).Milliseconds()))
		d.lock.Release()
	}()

	ctx = logging.WithSubscription(ctx, d.name)

	// Middleware scopes opened for this delivery, global and per-item alike.
	// They are torn down in reverse order before Consume returns, with the
	// error about to propagate.
	var opened []Middleware
	defer func() {
		for i := len(opened) - 1; i >= 0; i-- {
			if cerr := opened[i].Close(ctx, err); cerr != nil {
				d.logger.ErrorwCtx(ctx, "Middleware teardown failed", "error", cerr)
			}
		}
	}()

	global := make([]Middleware, 0, len(d.middlewares))
	for _, factory := range d.middlewares {
		m, ferr := factory(ctx, raw)
		if ferr != nil {
			status = statusError
			err = ferr
			return nil, err
		}
		opened = append(opened, m)
		global = append(global, m)
	}

	var (
		resultValue any
		logged      bool
		processed   bool
	)

	for _, item := range d.items {
		chain := global
		if len(item.middlewares) > 0 {
			chain = make([]Middleware, 0, len(global)+len(item.middlewares))
			chain = append(chain, global...)
			for _, factory := range item.middlewares {
				m, ferr := factory(ctx, raw)
				if ferr != nil {
					status = statusError
					err = ferr
					return nil, err
				}
				opened = append(opened, m)
				chain = append(chain, m)
			}
		}

		env, perr := item.parser(ctx, raw)
		if perr != nil {
			status = statusError
			err = d.recordFailure(ctx, messageID(raw, nil), perr)
			return nil, err
		}

		if !logged {
			ctx = logging.WithDispatchFields(ctx, d.logContext(env))
			logged = true
		}

		body, derr := item.decoder(ctx, env)
		if derr != nil {
			status = statusError
			err = d.recordFailure(ctx, messageID(raw, env), derr)
			return nil, err
		}
		env.DecodedBody = body
		env.Processed = processed

		matched, ferr := item.filter(ctx, env)
		if ferr != nil {
			status = statusError
			err = d.recordFailure(ctx, messageID(raw, env), ferr)
			return nil, err
		}
		if !matched {
			continue
		}

		if processed {
			status = statusError
			err = apperrors.ErrMultipleConsumers.WithDetail("handler", item.name)
			d.logger.ErrorwCtx(ctx, "Overlapping handler filters matched one delivery",
				"handler", item.name,
			)
			return nil, err
		}

		res, herr := d.invoke(ctx, item, env, chain)
		switch {
		case herr != nil:
			status = statusError
			err = d.recordFailure(ctx, messageID(raw, env), herr)
			return nil, err

		case res != nil && res.Stop:
			// Handler-initiated stop: terminal-success-like, nothing is
			// published and nothing propagates to the caller.
			d.stop()
			d.record(ctx, messageID(raw, env), watch.Outcome{Kind: watch.OutcomeStopped})
			status = statusStopped
			d.logger.InfowCtx(ctx, "Handler requested subscription stop",
				"handler", item.name,
			)

		default:
			if res != nil {
				resultValue = res.Value
				publishers := collectPublishers(res, item)
				for _, pub := range publishers {
					if perr := d.publish(ctx, pub, res.Value, env.CorrelationID, chain); perr != nil {
						metrics.PublishesTotal.WithLabelValues(d.name, "error").Inc()
						status = statusError
						err = d.recordFailure(ctx, messageID(raw, env), perr)
						return nil, err
					}
					metrics.PublishesTotal.WithLabelValues(d.name, "ok").Inc()
				}
			}

			d.record(ctx, messageID(raw, env), watch.Outcome{Kind: watch.OutcomeSuccess, Value: resultValue})
			env.Processed = true
			processed = true
			// Keep scanning the remaining items: a second match is the
			// overlapping-filter invariant violation and must surface.
		}
	}

	if d.running.Load() && !processed {
		status = statusUnhandled
		err = apperrors.ErrUnhandledMessage.WithDetail("subscription", d.name)
		d.logger.ErrorwCtx(ctx, "No handler filter covers this message shape")
		return nil, err
	}

	if !processed && status == statusProcessed {
		status = statusSkipped
	}
	return resultValue, nil
}

// invoke runs one handler inside the consume scopes of the combined chain.
// Panics become fatal errors; EndConsume runs in reverse order on every exit
// path and observes the final error.
func (d *Dispatcher) invoke(ctx context.Context, item *HandlerItem, env *models.Envelope, chain []Middleware) (res *Result, err error) {
	entered := 0
	defer func() {
		endConsume(ctx, chain, entered, err)
	}()
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = apperrors.RecoverPanic(r)
		}
	}()

	body, entered, err := beginConsume(ctx, chain, env.DecodedBody)
	if err != nil {
		return nil, err
	}
	env.DecodedBody = body

	return item.handler(ctx, env)
}

// publish sends one outgoing value through the publish scopes of the
// combined chain, propagating the inbound correlation id.
func (d *Dispatcher) publish(ctx context.Context, pub Publisher, message any, correlationID string, chain []Middleware) (err error) {
	entered := 0
	defer func() {
		endPublish(ctx, chain, entered, err)
	}()
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
		}
	}()

	message, entered, err = beginPublish(ctx, chain, message)
	if err != nil {
		return err
	}

	return pub.Publish(ctx, message, correlationID)
}

func (d *Dispatcher) record(ctx context.Context, id string, outcome watch.Outcome) watch.Decision {
	decision := d.watcher.Decide(ctx, id, outcome)
	metrics.WatcherDecisionsTotal.WithLabelValues(d.name, decision.String()).Inc()
	return decision
}

// recordFailure records the attempt on the watcher and folds the decision
// into the propagated error: a reject decision pins the error fatal so the
// transport's retry loop stops redelivering.
func (d *Dispatcher) recordFailure(ctx context.Context, id string, failure error) error {
	decision := d.record(ctx, id, watch.Outcome{Kind: watch.OutcomeFailure, Err: failure})
	if decision == watch.DecisionReject && !apperrors.IsFatal(failure) {
		return apperrors.Wrap(failure, apperrors.ErrRejected)
	}
	return failure
}

func collectPublishers(res *Result, item *HandlerItem) []Publisher {
	publishers := make([]Publisher, 0, len(item.publishers)+1)
	if res.Response != nil {
		publishers = append(publishers, res.Response)
	}
	for _, pub := range item.publishers {
		if pub != nil {
			publishers = append(publishers, pub)
		}
	}
	return publishers
}

func messageID(raw *models.RawMessage, env *models.Envelope) string {
	if env != nil && env.MessageID != "" {
		return env.MessageID
	}
	if raw.ID != "" {
		return raw.ID
	}
	return raw.Header("message_id")
}
