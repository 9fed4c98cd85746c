package notification

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

var ErrOutboxClosed = errors.New("notification outbox closed")

// Deliver dispatches n and retries the channels that failed, as long as
// policy allows. Each attempt is bounded by attemptTimeout when positive.
func Deliver(ctx context.Context, d *Dispatcher, n Notification, policy RetryPolicy, attemptTimeout time.Duration) Report {
	if policy == nil {
		policy = NoRetry{}
	}

	outcome := map[string]error{}
	var order []string
	var pending []string

	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if attemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, attemptTimeout)
		}
		report := d.DispatchTo(attemptCtx, n, pending)
		cancel()

		for _, res := range report.Results {
			if _, seen := outcome[res.Channel]; !seen {
				order = append(order, res.Channel)
			}
			outcome[res.Channel] = res.Err
		}

		pending = report.Failed()
		if len(pending) == 0 {
			break
		}

		wait, again := policy.Next(attempt)
		if !again {
			break
		}
		log.Printf("🔁 [NOTIFY] Retrying %v for %s in %s (attempt %d)", pending, n.ID, wait, attempt+1)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return mergedReport(n.ID, order, outcome)
		case <-timer.C:
		}
	}

	return mergedReport(n.ID, order, outcome)
}

func mergedReport(id string, order []string, outcome map[string]error) Report {
	report := Report{NotificationID: id}
	for _, name := range order {
		report.Results = append(report.Results, ChannelResult{Channel: name, Err: outcome[name]})
	}
	return report
}

// DirectOutbox delivers each notification in its own goroutine, once, without
// retries. Enqueue never blocks the caller.
type DirectOutbox struct {
	dispatcher  *Dispatcher
	sendTimeout time.Duration
	wg          sync.WaitGroup
}

func NewDirectOutbox(d *Dispatcher, sendTimeout time.Duration) *DirectOutbox {
	return &DirectOutbox{dispatcher: d, sendTimeout: sendTimeout}
}

func (o *DirectOutbox) Enqueue(_ context.Context, n Notification) error {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// detached from the request: the caller has already responded
		Deliver(context.Background(), o.dispatcher, n, NoRetry{}, o.sendTimeout)
	}()
	return nil
}

// Close waits for in-flight deliveries or for ctx to expire.
func (o *DirectOutbox) Close(ctx context.Context) error {
	return waitGroupWithContext(ctx, &o.wg)
}

// MemoryOutbox buffers notifications in process and delivers them from a
// fixed pool of workers, applying the retry policy to failed channels.
// Queued notifications are lost if the process dies.
type MemoryOutbox struct {
	dispatcher  *Dispatcher
	policy      RetryPolicy
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Notification

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type MemoryOutboxConfig struct {
	Workers     int
	Buffer      int
	SendTimeout time.Duration
	Policy      RetryPolicy
}

func NewMemoryOutbox(d *Dispatcher, cfg MemoryOutboxConfig) *MemoryOutbox {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Policy == nil {
		cfg.Policy = NoRetry{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &MemoryOutbox{
		dispatcher:  d,
		policy:      cfg.Policy,
		sendTimeout: cfg.SendTimeout,
		queue:       make(chan Notification, cfg.Buffer),
		ctx:         ctx,
		cancel:      cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		o.wg.Add(1)
		go o.work()
	}
	return o
}

func (o *MemoryOutbox) Enqueue(ctx context.Context, n Notification) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return ErrOutboxClosed
	}

	select {
	case o.queue <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *MemoryOutbox) work() {
	defer o.wg.Done()
	for n := range o.queue {
		Deliver(o.ctx, o.dispatcher, n, o.policy, o.sendTimeout)
	}
}

// Close stops accepting notifications and drains the queue. If ctx expires
// first, pending retries are abandoned.
func (o *MemoryOutbox) Close(ctx context.Context) error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()

	err := waitGroupWithContext(ctx, &o.wg)
	if err != nil {
		o.cancel()
		return err
	}
	o.cancel()
	return nil
}

func waitGroupWithContext(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
