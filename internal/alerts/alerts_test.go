package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/binaryhub/internal/logger"
)

type recordingSender struct {
	to, subject, body string
	err               error
}

func (r *recordingSender) Send(to, subject, body string) error {
	r.to, r.subject, r.body = to, subject, body
	return r.err
}

func TestNewMatchPaidTask(t *testing.T) {
	task, err := NewMatchPaidTask("p1", "alice", "alice@example.com", 80, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("NewMatchPaidTask() error: %v", err)
	}
	if task.Type() != TaskMatchPaid {
		t.Errorf("Type() = %q, want %q", task.Type(), TaskMatchPaid)
	}
	var p MatchPaidPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Envelope.To != "alice@example.com" || p.MatchedBV != 80 || p.Net != "10" {
		t.Errorf("payload = %+v", p)
	}
	if !strings.Contains(p.Envelope.Body, "10.00") {
		t.Errorf("body %q does not mention the bonus", p.Envelope.Body)
	}
}

func TestWorker_DeliversEnvelope(t *testing.T) {
	sender := &recordingSender{}
	w := &Worker{sender: sender, logger: logger.NewNop()}

	task, err := NewAccountActivatedTask("p1", "bob", "bob@example.com", 3)
	if err != nil {
		t.Fatalf("NewAccountActivatedTask() error: %v", err)
	}
	if err := w.handleAccountActivated(context.Background(), task); err != nil {
		t.Fatalf("handleAccountActivated() error: %v", err)
	}
	if sender.to != "bob@example.com" || sender.subject != "Your account is active" {
		t.Errorf("sent to=%q subject=%q", sender.to, sender.subject)
	}
}

func TestWorker_BadPayloadSkipsRetry(t *testing.T) {
	w := &Worker{sender: &recordingSender{}, logger: logger.NewNop()}
	err := w.handleMatchPaid(context.Background(), asynq.NewTask(TaskMatchPaid, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("handleMatchPaid() error = %v, want SkipRetry", err)
	}
}

func TestWorker_SendFailure(t *testing.T) {
	boom := errors.New("smtp down")
	w := &Worker{sender: &recordingSender{err: boom}, logger: logger.NewNop()}
	task, _ := NewBatchFailedTask("ops@example.com", 1, 4, "participant p3: boom")
	if err := w.handleBatchFailed(context.Background(), task); !errors.Is(err, boom) {
		t.Fatalf("handleBatchFailed() error = %v, want send failure", err)
	}
}

func TestSMTPConfig_Validate(t *testing.T) {
	if err := (SMTPConfig{Host: "smtp.example.com"}).Validate(); err == nil {
		t.Error("partial config validated")
	}
	full := SMTPConfig{Host: "h", Port: "465", Username: "u", Password: "p", From: "f@example.com"}
	if err := full.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestWorker_EmptyRecipientSkipsRetry(t *testing.T) {
	sender := &recordingSender{}
	w := &Worker{sender: sender, logger: logger.NewNop()}

	task, err := NewAccountActivatedTask("p1", "carol", "", 0)
	if err != nil {
		t.Fatalf("NewAccountActivatedTask() error: %v", err)
	}
	err = w.handleAccountActivated(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("handleAccountActivated() error = %v, want SkipRetry", err)
	}
	if sender.subject != "" {
		t.Errorf("sender was called with subject %q", sender.subject)
	}
}
