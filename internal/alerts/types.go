package alerts

import "time"

// Task type constants
const (
	TaskMatchPaid        = "bv:match_paid"
	TaskAccountActivated = "bv:account_activated"
	TaskBatchFailed      = "bv:batch_failed"
)

// Queue names
const (
	QueueEmails = "emails"
	QueueAlerts = "alerts"
)

// Common envelope for email-like notifications
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Match paid payload (sent to the earning participant)
type MatchPaidPayload struct {
	ParticipantID string        `json:"participant_id"`
	Username      string        `json:"username"`
	Email         string        `json:"email"`
	MatchedBV     int64         `json:"matched_bv"`
	Net           string        `json:"net"`
	Envelope      EmailEnvelope `json:"envelope"`
	SentAt        time.Time     `json:"sent_at"`
}

// Account activated payload (sent to the activated participant)
type AccountActivatedPayload struct {
	ParticipantID string        `json:"participant_id"`
	Username      string        `json:"username"`
	Email         string        `json:"email"`
	Ancestors     int           `json:"ancestors"`
	Envelope      EmailEnvelope `json:"envelope"`
	SentAt        time.Time     `json:"sent_at"`
}

// Batch failed payload (sent to operators)
type BatchFailedPayload struct {
	Failed   int           `json:"failed"`
	Total    int           `json:"total"`
	Message  string        `json:"message"`
	Envelope EmailEnvelope `json:"envelope"`
	SentAt   time.Time     `json:"sent_at"`
}
