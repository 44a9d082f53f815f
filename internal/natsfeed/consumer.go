// Package natsfeed feeds the sink from a NATS subject, for producers that
// ship events over messaging instead of HTTP.
package natsfeed

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nightjar-systems/logship/internal/metrics"
	"github.com/nightjar-systems/logship/pkg/event"
)

// Sink is the consumer the feed delivers into.
type Sink interface {
	Consume(ev *event.Event)
	ConsumeBatch(events []*event.Event)
}

// Config holds NATS connection settings.
type Config struct {
	URL     string
	Subject string
	Name    string
}

// Consumer subscribes to the configured subject and forwards decoded events
// to the sink. Message payloads follow the same single-or-array convention as
// the HTTP ingest endpoint.
type Consumer struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
	sink    Sink
	logger  *slog.Logger
}

// New connects to NATS. The subscription starts with Start.
func New(cfg Config, sink Sink) (*Consumer, error) {
	name := cfg.Name
	if name == "" {
		name = "logship"
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &Consumer{
		conn:    conn,
		subject: cfg.Subject,
		sink:    sink,
		logger:  slog.Default().With(slog.String("component", "natsfeed")),
	}, nil
}

// Start subscribes to the event subject.
func (c *Consumer) Start() error {
	sub, err := c.conn.Subscribe(c.subject, c.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.subject, err)
	}
	c.sub = sub
	c.logger.Info("NATS feed started", slog.String("subject", c.subject))
	return nil
}

func (c *Consumer) handleMessage(msg *nats.Msg) {
	events, batch, err := event.Decode(msg.Data)
	if err != nil {
		c.logger.Warn("dropping undecodable message", slog.String("error", err.Error()))
		return
	}
	for _, ev := range events {
		metrics.EventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	}
	if batch {
		c.sink.ConsumeBatch(events)
		return
	}
	c.sink.Consume(events[0])
}

// Stop unsubscribes and closes the connection.
func (c *Consumer) Stop() {
	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			c.logger.Warn("failed to unsubscribe", slog.String("error", err.Error()))
		}
		c.sub = nil
	}
	c.conn.Close()
}
