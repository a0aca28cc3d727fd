package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/binaryhub/internal/logger"
)

// Worker consumes notification tasks and delivers them by email.
type Worker struct {
	server *asynq.Server
	sender Sender
	logger *logger.Logger
}

func NewWorker(redisAddr string, sender Sender, log *logger.Logger) *Worker {
	server := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueEmails: 10,
			QueueAlerts: 5,
		},
	})
	return &Worker{server: server, sender: sender, logger: log}
}

// Mux routes every task type to its handler.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskMatchPaid, w.handleMatchPaid)
	mux.HandleFunc(TaskAccountActivated, w.handleAccountActivated)
	mux.HandleFunc(TaskBatchFailed, w.handleBatchFailed)
	return mux
}

// Start runs the worker in the background.
func (w *Worker) Start() error {
	return w.server.Start(w.Mux())
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) deliver(task string, env EmailEnvelope) error {
	if env.To == "" {
		return fmt.Errorf("%w: %s has no recipient", asynq.SkipRetry, task)
	}
	if err := w.sender.Send(env.To, env.Subject, env.Body); err != nil {
		w.logger.Error("notification send failed", "task", task, "to", env.To, "error", err)
		return err
	}
	w.logger.Info("notification sent", "task", task, "to", env.To)
	return nil
}

func (w *Worker) handleMatchPaid(_ context.Context, t *asynq.Task) error {
	var p MatchPaidPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return w.deliver(t.Type(), p.Envelope)
}

func (w *Worker) handleAccountActivated(_ context.Context, t *asynq.Task) error {
	var p AccountActivatedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return w.deliver(t.Type(), p.Envelope)
}

func (w *Worker) handleBatchFailed(_ context.Context, t *asynq.Task) error {
	var p BatchFailedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return w.deliver(t.Type(), p.Envelope)
}
