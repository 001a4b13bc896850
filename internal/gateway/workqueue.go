package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/relaygate/relaygate/internal/metrics"
	"github.com/relaygate/relaygate/internal/session"
	"github.com/relaygate/relaygate/pkg/log"
)

// ErrQueueFull is returned by TrySubmit when the bounded queue is already
// at capacity (§4.7, §5).
var ErrQueueFull = errors.New("gateway: work queue full")

type workItem struct {
	sess *session.Session
	raw  []byte
}

// WorkQueue is the bounded FIFO connecting the connection front-end to the
// dispatcher, backed by a buffered channel so overflow is rejected
// synchronously without blocking the caller (§3, §4.7).
type WorkQueue struct {
	items   chan workItem
	disp    *Dispatcher
	logger  log.Logger
	metrics *metrics.Registry

	wg sync.WaitGroup
}

// NewWorkQueue builds a WorkQueue of the given bound, dispatching accepted
// frames through disp.
func NewWorkQueue(bound int, disp *Dispatcher, logger log.Logger, m *metrics.Registry) *WorkQueue {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &WorkQueue{
		items:   make(chan workItem, bound),
		disp:    disp,
		logger:  logger.WithComponent("gateway.workqueue"),
		metrics: m,
	}
}

// TrySubmit enqueues (sess, raw) without blocking. If the queue is full it
// returns ErrQueueFull; the caller (the transport read pump) is expected
// to reply with a queue-full error frame on the originating session.
func (q *WorkQueue) TrySubmit(sess *session.Session, raw []byte) error {
	select {
	case q.items <- workItem{sess: sess, raw: raw}:
		if q.metrics != nil {
			q.metrics.QueueDepth.Set(float64(len(q.items)))
		}
		return nil
	default:
		if q.metrics != nil {
			q.metrics.QueueRejected.Inc()
		}
		return ErrQueueFull
	}
}

// Len reports the number of items currently queued, for /status reporting.
func (q *WorkQueue) Len() int {
	return len(q.items)
}

// Run starts n worker goroutines draining the queue as fast as they can
// consume it; backpressure comes solely from the channel's bound, per the
// dropped fixed-delay Open Question resolution (§9(1)). Run blocks until
// ctx is canceled, then waits for in-flight items to finish dispatching.
func (q *WorkQueue) Run(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	<-ctx.Done()
	q.wg.Wait()
}

func (q *WorkQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-q.items:
			if q.metrics != nil {
				q.metrics.QueueDepth.Set(float64(len(q.items)))
			}
			if item.sess.Closed() {
				continue
			}
			if err := q.disp.Dispatch(ctx, item.sess, item.raw); err != nil {
				q.logger.Warn("dispatch failed", log.Err(err))
			}
		}
	}
}
