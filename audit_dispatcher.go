package portero

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// dropLogEvery throttles the buffer-full log line so a saturated sink does
// not flood the process log with one line per lost event.
const dropLogEvery = 100

// auditDispatcher decouples client operations from the audit sink: events
// are queued on a buffered channel and delivered by a single goroutine, so
// a slow sink never stalls a login or a door-open call.
type auditDispatcher struct {
	sink       AuditSink
	events     chan AuditEvent
	quit       chan struct{}
	idle       chan struct{}
	dropIfFull bool
	dropped    atomic.Uint64
	closeOnce  sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		events:     make(chan AuditEvent, buffer),
		quit:       make(chan struct{}),
		idle:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
	}
	go d.run()
	return d
}

// run delivers events until quit, then drains whatever is still buffered
// before signalling idle. Sinks always receive a background context: the
// caller's request may be long gone by the time its event is delivered.
func (d *auditDispatcher) run() {
	defer close(d.idle)
	for {
		select {
		case event := <-d.events:
			d.deliver(event)
		case <-d.quit:
			d.drain()
			return
		}
	}
}

func (d *auditDispatcher) drain() {
	for {
		select {
		case event := <-d.events:
			d.deliver(event)
		default:
			return
		}
	}
}

func (d *auditDispatcher) deliver(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	d.sink.Emit(context.Background(), event)
}

// Emit queues an event for delivery. With DropIfFull the call never blocks:
// a full buffer counts the event as dropped instead. Without it the call
// waits for buffer space, the caller's context, or dispatcher shutdown,
// whichever comes first. Safe on a nil dispatcher (audit disabled).
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-d.quit:
		return
	default:
	}

	if d.dropIfFull {
		select {
		case d.events <- event:
		case <-d.quit:
		default:
			if n := d.dropped.Add(1); n == 1 || n%dropLogEvery == 0 {
				logf("audit buffer full, %d events dropped", n)
			}
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// Close stops the dispatcher and waits for buffered events to reach the
// sink. Idempotent and nil-safe.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.quit)
		<-d.idle
	})
}

// Dropped reports how many events were discarded because the buffer was
// full while DropIfFull was set.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
