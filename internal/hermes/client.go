package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectSignalIndexed is published by the indexer after it stores new
	// deposits or redemptions for a claim.
	SubjectSignalIndexed = "indexer.signal.indexed"

	// SubjectTrustUpdated carries every freshly computed score set.
	SubjectTrustUpdated = "arbiter.trust.updated"
)

// SignalIndexedEvent names the claim whose history changed.
type SignalIndexedEvent struct {
	ClaimID string `json:"claim_id"`
	// Side and TxHash are informational; the whole claim is rescored.
	Side   string `json:"side,omitempty"`
	TxHash string `json:"tx_hash,omitempty"`
}

// TrustUpdatedEvent is the published summary of a rescoring.
type TrustUpdatedEvent struct {
	ClaimID        string    `json:"claim_id"`
	Score          float64   `json:"score"`
	Level          string    `json:"level"`
	Confidence     float64   `json:"confidence"`
	Momentum       float64   `json:"momentum"`
	WeightedRatio  float64   `json:"weighted_ratio"`
	CompositeScore float64   `json:"composite_score"`
	IsStable       bool      `json:"is_stable"`
	Tier           string    `json:"tier"`
	TierProgress   float64   `json:"tier_progress"`
	ComputedAt     time.Time `json:"computed_at"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("arbiter"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

// Connected reports whether the connection is currently up.
func (c *Client) Connected() bool {
	return c.conn.IsConnected()
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// Close drains subscriptions so in-flight handlers finish before the
// connection goes away.
func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Drain()
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}
