package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"learnhub/internal/platform/metrics"
	"learnhub/pkg/platform/circuit"
	"learnhub/pkg/requestcontext"
)

const (
	defaultQueueSize    = 1024
	defaultWorkers      = 2
	defaultBatchSize    = 50
	defaultWriteTimeout = 3 * time.Second
)

// Dispatcher fans notifications from a bounded queue out to a sink. A full
// queue, an open circuit or a failed write drops the batch; the request that
// produced it has already succeeded.
type Dispatcher struct {
	queue        chan Notification
	sink         Sink
	breaker      *circuit.Breaker
	workers      int
	batchSize    int
	writeTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type Option func(*Dispatcher)

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Notification, n)
		}
	}
}

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithWriteTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.writeTimeout = t
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(d *Dispatcher) {
		d.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func NewDispatcher(sink Sink, opts ...Option) (*Dispatcher, error) {
	if sink == nil {
		return nil, errors.New("notification sink is required")
	}
	d := &Dispatcher{
		queue:        make(chan Notification, defaultQueueSize),
		sink:         sink,
		workers:      defaultWorkers,
		batchSize:    defaultBatchSize,
		writeTimeout: defaultWriteTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.breaker == nil {
		d.breaker = newSinkBreaker()
	}
	return d, nil
}

// newSinkBreaker opens after five consecutive sink failures and lets one
// write through every 30 seconds while open.
func newSinkBreaker(opts ...circuit.Option) *circuit.Breaker {
	opts = append([]circuit.Option{circuit.WithFailureThreshold(5), circuit.WithCooldown(30 * time.Second)}, opts...)
	return circuit.New("notifications", opts...)
}

// Notify enqueues n without blocking.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	select {
	case d.queue <- n:
	default:
		d.metrics.IncrementNotificationDropped("queue_full")
		d.logger.WarnContext(ctx, "notification dropped: queue full",
			"user_id", n.UserID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// Run starts the workers and blocks until ctx is done. Whatever is still
// queued at that point is flushed once before Run returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	wg.Wait()
	d.drain()
	return nil
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.queue:
			d.write(d.collect(n))
		}
	}
}

// collect gathers whatever is already queued behind first, up to batchSize.
func (d *Dispatcher) collect(first Notification) []Notification {
	batch := []Notification{first}
	for len(batch) < d.batchSize {
		select {
		case n := <-d.queue:
			batch = append(batch, n)
		default:
			return batch
		}
	}
	return batch
}

func (d *Dispatcher) drain() {
	for {
		select {
		case n := <-d.queue:
			d.write(d.collect(n))
		default:
			return
		}
	}
}

// write uses a detached context so request cancellation never aborts delivery.
func (d *Dispatcher) write(batch []Notification) {
	if !d.breaker.Allow() {
		d.dropped("circuit_open", len(batch), nil)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	if err := d.sink.Write(ctx, batch); err != nil {
		if _, change := d.breaker.RecordFailure(); change.Opened {
			d.logger.Warn("notification sink circuit opened", "breaker", d.breaker.Name())
		}
		written := 0
		var partial *PartialWriteError
		if errors.As(err, &partial) {
			written = min(partial.Written, len(batch))
		}
		d.sent(written)
		d.dropped("sink_error", len(batch)-written, err)
		return
	}
	if _, change := d.breaker.RecordSuccess(); change.Closed {
		d.logger.Info("notification sink circuit closed", "breaker", d.breaker.Name())
	}
	d.sent(len(batch))
}

func (d *Dispatcher) sent(n int) {
	for range n {
		d.metrics.IncrementNotificationSent()
	}
}

func (d *Dispatcher) dropped(reason string, n int, err error) {
	for range n {
		d.metrics.IncrementNotificationDropped(reason)
	}
	attrs := []any{"reason", reason, "count", n}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	d.logger.Warn("notifications dropped", attrs...)
}
