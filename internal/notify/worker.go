package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"portal/internal/metrics"
	"portal/internal/queue"
)

// Worker consumes confirmation jobs and sends the e-mails. Failures are
// logged and counted; jobs are not retried.
type Worker struct {
	q       queue.Queue
	sender  Sender
	siteURL string
	timeout time.Duration
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
}

func NewWorker(q queue.Queue, sender Sender, siteURL string, timeout time.Duration, m *metrics.Metrics, log *zap.SugaredLogger) *Worker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Worker{q: q, sender: sender, siteURL: siteURL, timeout: timeout, metrics: m, log: log}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	msgs, err := w.q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume notifications: %w", err)
	}
	w.log.Infow("notification worker started")
	for msg := range msgs {
		if err := w.Handle(ctx, msg); err != nil {
			w.metrics.Notification("failed")
			w.log.Warnw("confirmation not delivered", "message_id", msg.ID, "err", err)
			continue
		}
		w.metrics.Notification("sent")
	}
	w.log.Infow("notification worker stopped")
	return nil
}

// Handle delivers a single job.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != TypeRegistrationCreated {
		return fmt.Errorf("unexpected message type %q", msg.Type)
	}
	var job Job
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}
	if job.UID == "" || job.Email == "" {
		return fmt.Errorf("job %s missing uid or email", msg.ID)
	}

	email, err := Confirmation(job, w.siteURL)
	if err != nil {
		return err
	}
	sendCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.sender.Send(sendCtx, email); err != nil {
		return fmt.Errorf("send confirmation to %s: %w", job.Email, err)
	}
	w.log.Infow("confirmation sent", "uid", job.UID, "to", job.Email)
	return nil
}
