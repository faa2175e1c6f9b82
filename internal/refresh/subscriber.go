package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"PolyLedger/internal/period"
)

const (
	// StreamName holds refresh requests. Requests are commands, not
	// ledger events, so a short retention is enough to absorb worker
	// downtime.
	StreamName = "POLYLEDGER_REFRESH"

	// SubjectPrefix is followed by the wallet address, e.g.
	// "polyledger.refresh.0xabc".
	SubjectPrefix = "polyledger.refresh"

	consumerName = "pnl-refresh-worker"
)

// Request is the wire payload asking for one wallet's cache to be
// rebuilt.
type Request struct {
	Wallet    string `json:"wallet"`
	Requested int64  `json:"requested_at"`
}

// Refresher is the work a request triggers; satisfied by
// *service.PnL.
type Refresher interface {
	Refresh(ctx context.Context, wallet string) (map[period.Period]period.Result, error)
}

// Subscriber consumes refresh requests from JetStream and runs the
// pipeline for each. Duplicate requests for the same wallet are cheap:
// the second run finds an unchanged fingerprint upstream and the cache
// write is idempotent.
type Subscriber struct {
	js       jetstream.JetStream
	refresh  Refresher
	log      zerolog.Logger
	consumer jetstream.ConsumeContext
}

func NewSubscriber(js jetstream.JetStream, refresh Refresher, log zerolog.Logger) *Subscriber {
	return &Subscriber{js: js, refresh: refresh, log: log}
}

// EnsureStream creates the refresh stream if it does not exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
		MaxAge:    time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}
	return nil
}

// Subscribe starts consuming refresh requests. Explicit ACK with
// redelivery so a crashed worker's request is retried.
func (s *Subscriber) Subscribe(ctx context.Context) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       consumerName,
		FilterSubject: SubjectPrefix + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       2 * time.Minute,
		MaxDeliver:    3,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
		s.handle(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", consumerName, err)
	}
	s.consumer = consumerContext
	s.log.Info().Str("subject", SubjectPrefix+".>").Msg("subscribed to refresh requests")
	return nil
}

func (s *Subscriber) handle(ctx context.Context, msg jetstream.Msg) {
	var req Request
	if err := json.Unmarshal(msg.Data(), &req); err != nil || req.Wallet == "" {
		// Malformed requests can never succeed on redelivery.
		s.log.Warn().Err(err).Str("subject", msg.Subject()).Msg("dropping malformed refresh request")
		msg.Ack()
		return
	}

	if _, err := s.refresh.Refresh(ctx, req.Wallet); err != nil {
		s.log.Error().Err(err).Str("wallet", req.Wallet).Msg("refresh failed")
		msg.Nak()
		return
	}
	msg.Ack()
}

// Stop drains the consumer.
func (s *Subscriber) Stop() {
	if s.consumer != nil {
		s.consumer.Stop()
	}
}

// Publish enqueues a refresh request for a wallet.
func Publish(ctx context.Context, js jetstream.JetStream, wallet string) error {
	data, err := json.Marshal(Request{Wallet: wallet, Requested: time.Now().Unix()})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s.%s", SubjectPrefix, wallet)
	if _, err := js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish refresh %s: %w", wallet, err)
	}
	return nil
}

// Connect dials NATS and returns a JetStream handle.
func Connect(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url, nats.Name("polyledger"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}
