package notifier

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/utils"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueFull is returned by Dispatch when the queue has no room
var ErrQueueFull = errors.New("notification queue full")

// ErrDispatcherStopped is returned by Dispatch after Stop
var ErrDispatcherStopped = errors.New("notification dispatcher stopped")

// defaultSendTimeout bounds a single Notify call
const defaultSendTimeout = 30 * time.Second

// Dispatcher decouples callers from a slow Notifier.
// Dispatch only enqueues; workers send in the background, log failures and never retry.
type Dispatcher struct {
	notifier    Notifier
	queue       chan Notification
	workers     int
	sendTimeout time.Duration

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher with a bounded queue
func NewDispatcher(n Notifier, queueSize, workers int) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		notifier:    n,
		queue:       make(chan Notification, queueSize),
		workers:     workers,
		sendTimeout: defaultSendTimeout,
	}
}

// Start launches the workers
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
	utils.Info("Dispatcher: started", map[string]any{"workers": d.workers, "queue_size": cap(d.queue)})
}

// Dispatch enqueues n without blocking
func (d *Dispatcher) Dispatch(n Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.queue <- n:
		return nil
	default:
		utils.Error("Dispatcher: queue full, notification dropped", map[string]any{
			"template":  n.Template,
			"recipient": n.Recipient,
		})
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for workers to drain it.
// Sends still running when ctx expires are cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if d.cancel != nil {
			d.cancel()
		}
		return nil
	case <-ctx.Done():
		if d.cancel != nil {
			d.cancel()
		}
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for n := range d.queue {
		d.send(ctx, n)
	}
}

func (d *Dispatcher) send(ctx context.Context, n Notification) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	if err := d.notifier.Notify(sendCtx, n); err != nil {
		utils.Error("Dispatcher: notification failed", map[string]any{
			"template":  n.Template,
			"recipient": n.Recipient,
			"error":     errors.Join(biddingerrors.ErrNotifyFailure, err).Error(),
		})
		return
	}
	utils.Info("Dispatcher: notification sent", map[string]any{
		"template":  n.Template,
		"recipient": n.Recipient,
	})
}
