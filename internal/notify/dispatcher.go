package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher decouples email delivery from the approval transaction: emails
// are enqueued after commit and a background worker drains the queue, so
// SMTP latency or failure never blocks or reverses a decision.
type Dispatcher struct {
	mailer  Mailer
	queue   chan *Email
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher with a bounded queue. timeout bounds
// each individual send; past it the delivery is treated as failed and
// abandoned.
func NewDispatcher(mailer Mailer, queueSize int, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		mailer:  mailer,
		queue:   make(chan *Email, queueSize),
		timeout: timeout,
		log:     log,
	}
}

// Start launches the delivery worker. The worker exits once Close drains
// the queue.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for email := range d.queue {
			d.deliver(email)
		}
	}()
}

// Enqueue queues an email without blocking. When the queue is full, or the
// dispatcher is already closed, the email is dropped and the drop is logged;
// callers never wait on delivery.
func (d *Dispatcher) Enqueue(email *Email) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.log.Warn().
			Str("to", email.To).
			Str("subject", email.Subject).
			Msg("dispatcher closed, dropping email")
		return
	}

	select {
	case d.queue <- email:
	default:
		d.log.Warn().
			Str("to", email.To).
			Str("subject", email.Subject).
			Msg("notification queue full, dropping email")
	}
}

// Close stops accepting emails and waits for queued deliveries to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) deliver(email *Email) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.mailer.Send(ctx, email); err != nil {
		d.log.Warn().Err(err).
			Str("to", email.To).
			Str("subject", email.Subject).
			Msg("failed to send notification email (non-fatal)")
		return
	}

	d.log.Debug().
		Str("to", email.To).
		Int("cc", len(email.Cc)).
		Str("subject", email.Subject).
		Msg("notification email sent")
}
