package queue

import (
	"log"

	"github.com/streadway/amqp"
)

// AMQPQueue is the broker-backed Queue used when AMQP_URL is set. Topics
// map to durable queues on the default exchange.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPQueue(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &AMQPQueue{conn: conn, ch: ch}, nil
}

func (q *AMQPQueue) Publish(topic string, payload []byte) error {
	queue, err := q.ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	return q.ch.Publish(
		"",
		queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         payload,
		},
	)
}

// Subscribe consumes a durable queue on a dedicated channel. Handler errors
// nack with requeue so the broker redelivers.
func (q *AMQPQueue) Subscribe(topic string, handler func(payload []byte) error) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return err
	}

	queue, err := ch.QueueDeclare(topic, true, false, false, false, nil)
	if err != nil {
		return err
	}

	msgs, err := ch.Consume(
		queue.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			if err := handler(d.Body); err != nil {
				log.Printf("⚠️ handler failed for %s, requeueing: %v\n", topic, err)
				d.Nack(false, true)
				continue
			}
			d.Ack(false)
		}
	}()

	return nil
}

func (q *AMQPQueue) Close() error {
	q.ch.Close()
	return q.conn.Close()
}

var _ Queue = (*AMQPQueue)(nil)
var _ Queue = (*InMemoryQueue)(nil)
