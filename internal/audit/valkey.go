package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeySink publishes entries as JSON on a Valkey pub/sub channel so other
// services can follow CRM activity
type ValkeySink struct {
	client  valkey.Client
	channel string
}

// NewValkeySink connects to addr and verifies the connection
func NewValkeySink(addr, channel string) (*ValkeySink, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Valkey: %w", err)
	}

	slog.Info("Initialized Valkey activity sink", "address", addr, "channel", channel)
	return NewValkeySinkWithClient(client, channel), nil
}

// NewValkeySinkWithClient wraps an existing client
func NewValkeySinkWithClient(client valkey.Client, channel string) *ValkeySink {
	return &ValkeySink{client: client, channel: channel}
}

// Record implements Sink
func (s *ValkeySink) Record(ctx context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	cmd := s.client.B().Publish().Channel(s.channel).Message(string(payload)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("publish activity: %w", err)
	}
	return nil
}

// Close releases the client
func (s *ValkeySink) Close() {
	s.client.Close()
}

// Name implements Named
func (s *ValkeySink) Name() string { return "valkey" }
