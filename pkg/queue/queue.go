package queue

import (
	"context"
	"sync"

	"github.com/anky/otc-indexer/internal/observability"
	"github.com/anky/otc-indexer/pkg/otc"
	"github.com/sirupsen/logrus"
)

// DefaultMaxPending bounds the backlog only when the forwarders stall; a
// healthy backend drains far below it during a backfill.
const DefaultMaxPending = 1_000_000

// Service dispatches notifications to its forwarders on a single worker, in
// the order they were enqueued. Enqueue never blocks the caller.
type Service struct {
	forwarders []otc.Forwarder
	maxPending int

	mu      sync.Mutex
	pending []otc.Notification
	closed  bool
	started bool

	signal chan struct{}
	done   chan struct{}

	log     *logrus.Entry
	metrics *observability.Metrics
}

var _ otc.Notifier = (*Service)(nil)

// NewService returns a dispatcher holding at most maxPending notifications
// that were not forwarded yet. maxPending <= 0 means no bound.
func NewService(maxPending int, log *logrus.Logger, metrics *observability.Metrics, forwarders ...otc.Forwarder) *Service {
	return &Service{
		forwarders: forwarders,
		maxPending: maxPending,
		signal:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		log:        log.WithField("component", "queue"),
		metrics:    metrics,
	}
}

func (s *Service) Notify(n otc.Notification) {
	s.Enqueue(n)
}

// Enqueue appends n to the backlog. It returns false when the notification
// was dropped because the service is closed or the backlog is at its bound.
func (s *Service) Enqueue(n otc.Notification) bool {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		s.drop(n, "queue is closed")
		return false
	}

	if s.maxPending > 0 && len(s.pending) >= s.maxPending {
		s.mu.Unlock()
		s.drop(n, "queue is full")
		return false
	}

	s.pending = append(s.pending, n)
	s.metrics.QueueSize(len(s.pending))
	s.mu.Unlock()

	s.wake()
	return true
}

func (s *Service) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Service) drop(n otc.Notification, reason string) {
	s.log.WithFields(logrus.Fields{
		"kind": n.Kind,
		"id":   n.Key(),
	}).Warn(reason + ", dropping notification")
	s.metrics.NotificationDropped()
}

// Len returns the number of notifications not handed to the forwarders yet
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Start launches the worker, which forwards notifications until Close is
// called and the backlog is drained. In-flight requests are not cancelled with
// ctx; each one is bounded by its forwarder's own timeout.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	go s.run(context.WithoutCancel(ctx))
}

// next pops the oldest notification, waiting for one. ok is false once the
// service is closed and nothing is left.
func (s *Service) next() (otc.Notification, bool) {
	for {
		s.mu.Lock()
		if len(s.pending) > 0 {
			n := s.pending[0]
			s.pending[0] = otc.Notification{}
			s.pending = s.pending[1:]
			s.metrics.QueueSize(len(s.pending))
			s.mu.Unlock()
			return n, true
		}
		// let the drained backing array be collected
		s.pending = nil
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return otc.Notification{}, false
		}

		<-s.signal
	}
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	for {
		n, ok := s.next()
		if !ok {
			return
		}

		for _, f := range s.forwarders {
			f.Forward(ctx, n)
		}
	}
}

// Close stops intake and, if the worker is running, waits for it to flush
// the backlog.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	s.wake()

	if started {
		<-s.done
	}
}
