// Package notify delivers registration confirmations. The API publishes a
// job per accepted registration; the worker renders the QR code and mails it.
package notify

import (
	"context"
	"errors"
	"fmt"

	"portal/internal/queue"
	"portal/internal/registration"
)

// TypeRegistrationCreated is the queue message type for confirmation jobs.
const TypeRegistrationCreated = "registration.created"

// Job is the queued confirmation request.
type Job struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Publisher queues confirmation jobs.
type Publisher struct {
	q queue.Queue
}

func NewPublisher(q queue.Queue) *Publisher {
	return &Publisher{q: q}
}

// NotifyRegistered queues a confirmation for reg.
func (p *Publisher) NotifyRegistered(ctx context.Context, reg registration.Registration) error {
	if reg.Email == "" {
		return errors.New("registration has no email")
	}
	msg, err := queue.NewMessage(TypeRegistrationCreated, Job{UID: reg.UID, Name: reg.Name, Email: reg.Email})
	if err != nil {
		return err
	}
	if err := p.q.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish confirmation for %s: %w", reg.UID, err)
	}
	return nil
}
