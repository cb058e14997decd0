package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

type recordingStream struct {
	subject string
	data    []byte
	opts    int
	err     error
}

func (r *recordingStream) Publish(_ context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.subject = subject
	r.data = data
	r.opts = len(opts)
	return &jetstream.PubAck{Stream: "TEST", Sequence: 1}, nil
}

func TestJetStreamPublisherSubjectAndPayload(t *testing.T) {
	stream := &recordingStream{}
	pub := newJetStreamPublisher(stream, "provisioner.events", nil)

	n := Notification{
		ID:      "evt-1",
		Kind:    KindPaused,
		OwnerID: "alice",
		PoolID:  "pool",
		Price:   1.25,
		Reason:  "price_out_of_range",
		At:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := pub.Publish(context.Background(), n); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if stream.subject != "provisioner.events.paused" {
		t.Fatalf("unexpected subject %q", stream.subject)
	}
	if stream.opts != 1 {
		t.Fatalf("expected msg id option, got %d options", stream.opts)
	}

	var decoded Notification
	if err := json.Unmarshal(stream.data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != n.ID || decoded.OwnerID != n.OwnerID || decoded.Reason != n.Reason || decoded.Price != n.Price || !decoded.At.Equal(n.At) {
		t.Fatalf("payload mismatch: %+v", decoded)
	}
}

func TestJetStreamPublisherWrapsError(t *testing.T) {
	stream := &recordingStream{err: errors.New("no responders")}
	pub := newJetStreamPublisher(stream, "provisioner.events", nil)

	if err := pub.Publish(context.Background(), Notification{Kind: KindProvisioned}); err == nil {
		t.Fatalf("expected error")
	}
}
