package services

import (
	"context"
	"sync"
	"time"

	"github.com/Ananth-NQI/soko-ussd/internal/metrics"
	"github.com/sirupsen/logrus"
)

// MaxSendAttempts bounds immediate retries for one SMS
const MaxSendAttempts = 3

const sendTimeout = 10 * time.Second

type notification struct {
	to   string
	body string
}

// NotificationService delivers SMS in the background so replies never
// wait on the provider. Each message gets up to MaxSendAttempts tries;
// permanent failures are logged and counted, never returned.
type NotificationService struct {
	sender Sender
	log    logrus.FieldLogger
	queue  chan notification
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewNotificationService starts workers draining a queue of the given size
func NewNotificationService(sender Sender, workers, queueSize int, log logrus.FieldLogger) *NotificationService {
	if workers < 1 {
		workers = 1
	}
	n := &NotificationService{
		sender: sender,
		log:    log,
		queue:  make(chan notification, queueSize),
	}

	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go n.worker()
	}

	return n
}

// Notify queues an SMS for delivery. It never blocks: when the queue is
// full or the service is closed the message is dropped and logged.
func (n *NotificationService) Notify(to, body string) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		n.log.WithField("to", to).Warn("Notification service closed, SMS dropped")
		metrics.Notifications.WithLabelValues("dropped").Inc()
		return
	}

	select {
	case n.queue <- notification{to: to, body: body}:
	default:
		n.log.WithField("to", to).Warn("Notification queue full, SMS dropped")
		metrics.Notifications.WithLabelValues("dropped").Inc()
	}
}

// Close stops accepting messages and waits for queued ones to be tried
func (n *NotificationService) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	n.wg.Wait()
}

func (n *NotificationService) worker() {
	defer n.wg.Done()

	for msg := range n.queue {
		if err := n.SendWithRetry(context.Background(), msg.to, msg.body); err != nil {
			metrics.Notifications.WithLabelValues("failed").Inc()
			continue
		}
		metrics.Notifications.WithLabelValues("sent").Inc()
	}
}

// SendWithRetry tries the sender up to MaxSendAttempts times with no delay
// between attempts and returns the last error.
func (n *NotificationService) SendWithRetry(ctx context.Context, to, body string) error {
	var err error
	for attempt := 1; attempt <= MaxSendAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err = n.sender.Send(sendCtx, to, body)
		cancel()
		if err == nil {
			return nil
		}
		n.log.WithFields(logrus.Fields{"to": to, "attempt": attempt}).WithError(err).Warn("SMS sending failed")
	}

	n.log.WithField("to", to).Error("Max retry attempts reached. SMS not sent.")
	return err
}
