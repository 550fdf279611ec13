// Package notify forwards threats to external consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"warden/internal/core"
	"warden/internal/logging"
)

const (
	// DefaultSubject for published threats
	DefaultSubject = "warden.threats"
	// ConnectTimeout bounds the initial dial
	ConnectTimeout = 10 * time.Second
	// MaxReconnects is handed to the NATS client
	MaxReconnects = 10
	publishTimeout = 5 * time.Second
)

// Publisher delivers threats somewhere.
type Publisher interface {
	Publish(ctx context.Context, t core.Threat) error
	Close() error
}

// Nop discards every threat.
type Nop struct{}

func (Nop) Publish(context.Context, core.Threat) error { return nil }
func (Nop) Close() error { return nil }

// NATSPublisher publishes threats as JSON to a NATS subject
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewNATSPublisher connects to natsURL. Reconnection is left to the client.
func NewNATSPublisher(natsURL, subject string, logger *zap.Logger) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	logger = logging.WithComponent(logger, "notify")

	conn, err := nats.Connect(natsURL,
		nats.Name("warden"),
		nats.Timeout(ConnectTimeout),
		nats.MaxReconnects(MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("Disconnected from NATS", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
	}

	logger.Info("NATS publisher initialized", zap.String("url", natsURL), zap.String("subject", subject))
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}, nil
}

// New returns a NATS publisher when natsURL is set, otherwise Nop.
func New(natsURL, subject string, logger *zap.Logger) (Publisher, error) {
	if natsURL == "" {
		return Nop{}, nil
	}
	return NewNATSPublisher(natsURL, subject, logger)
}

// Publish sends t with identifying headers.
func (p *NATSPublisher) Publish(ctx context.Context, t core.Threat) error {
	msg, err := p.message(t)
	if err != nil {
		return err
	}

	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return fmt.Errorf("NATS publisher not ready")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return fmt.Errorf("publish timeout: %w", ctx.Err())
	default:
		if err := conn.PublishMsg(msg); err != nil {
			p.logger.Error("Failed to publish threat", zap.String("threat_id", t.ID), zap.Error(err))
			return fmt.Errorf("failed to publish threat: %w", err)
		}
	}

	p.logger.Debug("Threat published", zap.String("threat_id", t.ID), zap.String("subject", p.subject))
	return nil
}

func (p *NATSPublisher) message(t core.Threat) (*nats.Msg, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal threat: %w", err)
	}
	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set("x-threat-id", t.ID)
	msg.Header.Set("x-threat-source", string(t.Source))
	msg.Header.Set("x-verdict-status", string(t.Verdict.Status))
	if t.Verdict.SHA256 != "" {
		msg.Header.Set("x-sha256", t.Verdict.SHA256)
	}
	return msg, nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	p.conn = nil
	p.logger.Info("NATS publisher closed")
	return err
}
