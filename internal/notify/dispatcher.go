package notify

import (
	"log/slog"

	"github.com/mr1hm/go-alert-workflow/internal/worker"
)

// Dispatcher decouples the registry from subscribers: Notify enqueues onto a
// worker pool, the pool delivers to the broadcaster. Notify never blocks; if
// the queue is full the event is dropped and logged.
type Dispatcher struct {
	pool        *worker.Pool[Event]
	broadcaster *Broadcaster
}

func NewDispatcher(broadcaster *Broadcaster, workers, bufferSize int) *Dispatcher {
	d := &Dispatcher{
		broadcaster: broadcaster,
	}
	d.pool = worker.NewPool(workers, bufferSize, d.deliver)
	return d
}

func (d *Dispatcher) Start() {
	d.pool.Start()
}

// Stop drains queued events, then closes all subscriber channels.
func (d *Dispatcher) Stop() {
	d.pool.Stop()
	d.broadcaster.Close()
}

func (d *Dispatcher) Notify(event Event) {
	if !d.pool.TrySubmit(event) {
		slog.Warn("notification queue full, event dropped",
			"kind", string(event.Kind), "alert_id", event.Alert.ID)
	}
}

func (d *Dispatcher) deliver(event Event) error {
	d.broadcaster.Broadcast(event)
	return nil
}
