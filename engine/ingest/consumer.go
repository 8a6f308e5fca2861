package ingest

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/campaigngraph/campaigngraph/pkg/natsutil"
)

// DefaultMaxRetries bounds how many times a failed note-ingest request is
// re-enqueued before it is routed to the dead-letter subject, adapted from
// the teacher's X-Retry-Count/MaxRetries consumer idiom.
const DefaultMaxRetries = 3

// NoteIngestRequest is one message on a worker's ingest subject. RetryCount
// tracks delivery attempts in the payload itself rather than a NATS message
// header, since natsutil.Subscribe's typed handler has no header access —
// the teacher's header-based retry counter adapted to a JSON field.
type NoteIngestRequest struct {
	CampaignUUID string `json:"campaign_uuid"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	RetryCount   int    `json:"retry_count"`
}

// Consumer wraps an Orchestrator as a NATS queue subscriber, grounded on the
// teacher's directory-watcher-turned-message-consumer idiom (cmd/ingest's
// StartConsumer) but using natsutil's typed JSON helpers in place of the
// teacher's manual marshal/unmarshal and OTel carrier plumbing.
type Consumer struct {
	nc         *nats.Conn
	orch       *Orchestrator
	subject    string
	queueGroup string
	dlqSubject string
	maxRetries int
	logger     *slog.Logger

	// OnProcessed, OnFailed, and OnDeadLetter are optional hooks a caller
	// can set (e.g. to drive pkg/metrics counters) before calling Start.
	// All three default to no-ops.
	OnProcessed  func()
	OnFailed     func()
	OnDeadLetter func()
}

// NewConsumer builds a Consumer. queueGroup load-balances delivery across
// worker replicas; maxRetries defaults to DefaultMaxRetries when <= 0.
func NewConsumer(nc *nats.Conn, orch *Orchestrator, subject, queueGroup, dlqSubject string, maxRetries int, logger *slog.Logger) *Consumer {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		nc:           nc,
		orch:         orch,
		subject:      subject,
		queueGroup:   queueGroup,
		dlqSubject:   dlqSubject,
		maxRetries:   maxRetries,
		logger:       logger,
		OnProcessed:  func() {},
		OnFailed:     func() {},
		OnDeadLetter: func() {},
	}
}

// Start subscribes to the consumer's subject and begins processing
// requests until the returned subscription is drained/unsubscribed.
func (c *Consumer) Start() (*nats.Subscription, error) {
	return natsutil.SubscribeQueue(c.nc, c.subject, c.queueGroup, c.handle)
}

func (c *Consumer) handle(ctx context.Context, req NoteIngestRequest) {
	resp, err := c.orch.IngestNote(ctx, req.CampaignUUID, req.Title, req.Content)
	if err == nil {
		c.logger.InfoContext(ctx, "ingest.consumer.processed", "note_id", resp.NoteID, "campaign_uuid", req.CampaignUUID)
		c.OnProcessed()
		return
	}

	c.logger.WarnContext(ctx, "ingest.consumer.failed", "campaign_uuid", req.CampaignUUID, "retry_count", req.RetryCount, "error", err)
	c.OnFailed()

	deadLetter, next := nextAttempt(req, c.maxRetries)
	if deadLetter {
		c.logger.ErrorContext(ctx, "ingest.consumer.dead_letter", "campaign_uuid", req.CampaignUUID, "error", err)
		c.OnDeadLetter()
		if pubErr := natsutil.Publish(ctx, c.nc, c.dlqSubject, next); pubErr != nil {
			c.logger.ErrorContext(ctx, "ingest.consumer.dead_letter_publish_failed", "error", pubErr)
		}
		return
	}

	if pubErr := natsutil.Publish(ctx, c.nc, c.subject, next); pubErr != nil {
		c.logger.ErrorContext(ctx, "ingest.consumer.retry_publish_failed", "error", pubErr)
	}
}

// nextAttempt decides whether req has exhausted its retry budget and
// returns the message to republish either way (to the retry subject, with
// RetryCount incremented, or to the dead-letter subject, unchanged).
func nextAttempt(req NoteIngestRequest, maxRetries int) (deadLetter bool, next NoteIngestRequest) {
	if req.RetryCount >= maxRetries {
		return true, req
	}
	next = req
	next.RetryCount++
	return false, next
}
