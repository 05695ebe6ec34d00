package ingest

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/triagestack/triage-engine/internal/models"
)

// Handler consumes one decoded error event.
type Handler interface {
	Handle(ctx context.Context, event models.ErrorEvent) error
}

// Subscriber pulls error events off a NATS queue group so multiple engine
// replicas share the stream without duplicate processing.
type Subscriber struct {
	nc      *nats.Conn
	logger  *slog.Logger
	handler Handler
	subject string
	queue   string

	sub *nats.Subscription
}

// NewSubscriber constructs a queue subscriber bound to subject/queue.
func NewSubscriber(nc *nats.Conn, logger *slog.Logger, handler Handler, subject, queue string) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		nc:      nc,
		logger:  logger,
		handler: handler,
		subject: subject,
		queue:   queue,
	}
}

// Subscribe starts consuming and blocks until ctx is cancelled, then drains
// the subscription so in-flight messages finish before shutdown.
func (s *Subscriber) Subscribe(ctx context.Context) error {
	sub, err := s.nc.QueueSubscribe(s.subject, s.queue, func(msg *nats.Msg) {
		s.handleMessage(ctx, msg)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	s.logger.Info("subscribed to error events",
		slog.String("subject", s.subject),
		slog.String("queue", s.queue))

	<-ctx.Done()

	s.logger.Info("draining event subscription")
	if err := sub.Drain(); err != nil {
		s.logger.Error("subscription drain failed", slog.Any("error", err))
		return err
	}
	return nil
}

func (s *Subscriber) handleMessage(ctx context.Context, msg *nats.Msg) {
	event, err := DecodeEvent(msg.Data)
	if err != nil {
		// Malformed payloads are dropped, not redelivered.
		s.logger.Error("rejected event payload",
			slog.String("subject", msg.Subject),
			slog.Int("bytes", len(msg.Data)),
			slog.Any("error", err))
		return
	}

	if err := s.handler.Handle(ctx, event); err != nil {
		s.logger.Error("event processing failed",
			slog.String("issue_key", event.ResolvedIssueKey()),
			slog.Any("error", err))
	}
}
