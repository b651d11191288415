package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/park285/chess-agent-arena/internal/obslog"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultQueue receives outcome payloads.
const DefaultQueue = "arena.outcomes"

// Sink delivers payloads to the settlement process.
type Sink interface {
	Publish(ctx context.Context, p Payload) error
	Close() error
}

// LogSink only logs payloads.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink { return &LogSink{logger: obslog.Or(logger)} }

func (s *LogSink) Publish(_ context.Context, p Payload) error {
	s.logger.Info("settlement_outcome",
		zap.String("game_id", p.GameID),
		zap.String("chain_game_id", p.ChainGameID),
		zap.String("result", p.Result),
		zap.String("method", p.Method),
		zap.Bool("draw", p.Draw),
		zap.String("calldata", p.Calldata),
	)
	return nil
}

func (s *LogSink) Close() error { return nil }

// MultiSink publishes to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, p Payload) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AMQPConfig describes the RabbitMQ connection.
type AMQPConfig struct {
	URL   string
	Queue string
}

// AMQPSink publishes payloads as persistent JSON messages to a durable queue.
type AMQPSink struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewAMQPSink dials RabbitMQ and declares the queue.
func NewAMQPSink(cfg AMQPConfig) (*AMQPSink, error) {
	if cfg.URL == "" {
		return nil, errors.New("AMQP URL is required")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPSink{conn: conn, ch: ch, queue: queue}, nil
}

func (s *AMQPSink) Publish(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return errors.New("rabbitmq sink closed")
	}
	err = s.ch.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    p.GameID,
		Timestamp:    time.Now(),
		Type:         "arena.outcome",
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish outcome %s: %w", p.GameID, err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}
