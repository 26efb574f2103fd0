package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seating-planner/internal/queue"
)

// AMQPPublisher publishes optimization requests to RabbitMQ.  It dials once
// per message; requests are rare compared to the cost of a search.
type AMQPPublisher struct {
	URL   string
	Queue string
	Log   *zap.Logger
}

// NewAMQPPublisher returns a publisher for url and queue.  An empty queue
// uses queue.DefaultOptimizeQueue.
func NewAMQPPublisher(url, queueName string, log *zap.Logger) *AMQPPublisher {
	if queueName == "" {
		queueName = queue.DefaultOptimizeQueue
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AMQPPublisher{URL: url, Queue: queueName, Log: log}
}

// PublishOptimizeRequested declares the durable queue and publishes msg as a
// persistent JSON message.  Errors are logged and returned.
func (p *AMQPPublisher) PublishOptimizeRequested(ctx context.Context, msg queue.OptimizeRequested) error {
	log := p.Log.With(zap.Uint64("run_id", msg.RunID))
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Error("rabbitmq dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Error("rabbitmq channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		log.Error("rabbitmq queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		log.Error("rabbitmq publish failed", zap.Error(err))
		return err
	}
	return nil
}
