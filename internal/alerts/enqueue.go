package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

// Notifier schedules participant and operator notifications. Calls are made
// after the business transaction commits; a failed enqueue never undoes it.
type Notifier interface {
	MatchPaid(ctx context.Context, participantID, username, email string, matchedBV int64, net decimal.Decimal) error
	AccountActivated(ctx context.Context, participantID, username, email string, ancestors int) error
	BatchFailed(ctx context.Context, failed, total int, message string) error
}

// Client enqueues notifications on Redis through asynq.
type Client struct {
	client     *asynq.Client
	adminEmail string
}

func NewClient(redisAddr, adminEmail string) *Client {
	return &Client{
		client:     asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
		adminEmail: adminEmail,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) MatchPaid(ctx context.Context, participantID, username, email string, matchedBV int64, net decimal.Decimal) error {
	task, err := NewMatchPaidTask(participantID, username, email, matchedBV, net)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueEmails))
	return err
}

func (c *Client) AccountActivated(ctx context.Context, participantID, username, email string, ancestors int) error {
	task, err := NewAccountActivatedTask(participantID, username, email, ancestors)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueEmails))
	return err
}

// BatchFailed is dropped when no admin address is configured.
func (c *Client) BatchFailed(ctx context.Context, failed, total int, message string) error {
	if c.adminEmail == "" {
		return nil
	}
	task, err := NewBatchFailedTask(c.adminEmail, failed, total, message)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueAlerts), asynq.MaxRetry(3))
	return err
}

// NewMatchPaidTask builds the bonus notification for the earning participant.
func NewMatchPaidTask(participantID, username, email string, matchedBV int64, net decimal.Decimal) (*asynq.Task, error) {
	env := EmailEnvelope{
		To:      email,
		Subject: "You earned a matching bonus",
		Body: fmt.Sprintf("Hi %s,\n\n%d BV was matched across your left and right teams. %s has been credited to your wallet.",
			username, matchedBV, net.StringFixed(2)),
	}
	payload := MatchPaidPayload{
		ParticipantID: participantID,
		Username:      username,
		Email:         email,
		MatchedBV:     matchedBV,
		Net:           net.String(),
		Envelope:      env,
		SentAt:        time.Now(),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMatchPaid, b), nil
}

// NewAccountActivatedTask builds the activation notice.
func NewAccountActivatedTask(participantID, username, email string, ancestors int) (*asynq.Task, error) {
	env := EmailEnvelope{
		To:      email,
		Subject: "Your account is active",
		Body:    fmt.Sprintf("Hi %s,\n\nYour account is now active and your volume has reached %d members of your upline.", username, ancestors),
	}
	payload := AccountActivatedPayload{
		ParticipantID: participantID,
		Username:      username,
		Email:         email,
		Ancestors:     ancestors,
		Envelope:      env,
		SentAt:        time.Now(),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccountActivated, b), nil
}

// NewBatchFailedTask builds the operator alert for a partially failed
// reconciliation run.
func NewBatchFailedTask(adminEmail string, failed, total int, message string) (*asynq.Task, error) {
	env := EmailEnvelope{
		To:      adminEmail,
		Subject: "Match reconciliation finished with failures",
		Body:    fmt.Sprintf("%d of %d participants failed.\n\n%s", failed, total, message),
	}
	payload := BatchFailedPayload{Failed: failed, Total: total, Message: message, Envelope: env, SentAt: time.Now()}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBatchFailed, b), nil
}

// Nop drops every notification. Used when alerts are disabled.
type Nop struct{}

func (Nop) MatchPaid(context.Context, string, string, string, int64, decimal.Decimal) error {
	return nil
}

func (Nop) AccountActivated(context.Context, string, string, string, int) error {
	return nil
}

func (Nop) BatchFailed(context.Context, int, int, string) error {
	return nil
}
