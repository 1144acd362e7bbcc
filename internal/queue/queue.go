package queue

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Queue interface
type Queue interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler func(payload []byte) error) error
	Close() error
}

// InMemoryQueue is the broker-less fallback used in development and tests,
// when AMQP_URL is not configured.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload []byte) error
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload []byte) error),
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    []byte
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload []byte) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	job := JobPayload{
		Payload:    payload,
		RetryCount: 0,
		MaxRetries: 3,
	}

	for _, handler := range handlers {
		go q.processJob(handler, job)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(payload []byte) error, job JobPayload) {
	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			return // ACK
		}

		job.RetryCount++
		log.Printf("queue job failed (attempt %d/%d): %v\n", job.RetryCount, job.MaxRetries, err)

		if job.RetryCount > job.MaxRetries {
			log.Printf("queue job permanently failed after %d attempts\n", job.MaxRetries)
			return // No requeue
		}

		// Exponential backoff before retry
		time.Sleep(time.Duration(job.RetryCount*500) * time.Millisecond)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload []byte) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

func (q *InMemoryQueue) Close() error { return nil }
