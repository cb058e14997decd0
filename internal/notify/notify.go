package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// Kind classifies a notification.
type Kind string

const (
	KindProvisioned Kind = "provisioned"
	KindPaused      Kind = "paused"
)

// Notification announces a state change of one owner's pool automation.
type Notification struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	OwnerID string    `json:"owner_id"`
	PoolID  string    `json:"pool_id"`
	Price   float64   `json:"price"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher delivers notifications. Delivery failures never undo the state
// change that caused them.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Publish(context.Context, Notification) error { return nil }

// streamPublisher is the subset of jetstream.JetStream used for publishing.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// JetStreamPublisher publishes notifications to <prefix>.<kind>.
type JetStreamPublisher struct {
	js     streamPublisher
	prefix string
	log    *zap.Logger
}

func NewJetStreamPublisher(js jetstream.JetStream, prefix string, logger *zap.Logger) *JetStreamPublisher {
	return newJetStreamPublisher(js, prefix, logger)
}

func newJetStreamPublisher(js streamPublisher, prefix string, logger *zap.Logger) *JetStreamPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JetStreamPublisher{js: js, prefix: prefix, log: logger}
}

// Publish sends n with its ID as the message ID so redelivered notifications
// are deduplicated by the stream.
func (p *JetStreamPublisher) Publish(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", p.prefix, n.Kind)

	var opts []jetstream.PublishOpt
	if n.ID != "" {
		opts = append(opts, jetstream.WithMsgID(n.ID))
	}
	if _, err := p.js.Publish(ctx, subject, data, opts...); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.log.Debug("notification published", zap.String("subject", subject), zap.String("owner", n.OwnerID), zap.String("pool", n.PoolID))
	return nil
}

// ConnectNATS dials NATS with unlimited reconnects and opens JetStream.
func ConnectNATS(url string, logger *zap.Logger) (*nats.Conn, jetstream.JetStream, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}

// EnsureStream creates or updates the notification stream covering <prefix>.>.
func EnsureStream(ctx context.Context, js jetstream.JetStream, name, prefix string) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       name,
		Subjects:   []string{prefix + ".>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     72 * time.Hour,
		Duplicates: 10 * time.Minute,
		Replicas:   1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", name, err)
	}
	return nil
}
