// Package events publishes auth audit events to RabbitMQ. Publishing is
// best-effort: a missing broker never affects request handling.
package events

import (
	"context"
	"encoding/json"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

const authEventsQueue = "AuthEvents"

// Publisher emits audit events for token issuance and rejected requests. A
// nil Publisher is valid and publishes nothing.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisherFromEnv connects to RabbitMQ when AMQP_URL is set; otherwise
// it returns nil and auditing is disabled.
func NewPublisherFromEnv() (*Publisher, error) {
	amqpURL := os.Getenv("AMQP_URL")
	if amqpURL == "" {
		return nil, nil
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(authEventsQueue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, ch: ch}, nil
}

// TokenIssued records a successful token exchange.
func (p *Publisher) TokenIssued(clientID, grantType string) {
	p.publish("token_issued", map[string]interface{}{
		"client_id":  clientID,
		"grant_type": grantType,
	})
}

// AuthRejected records a rejected request.
func (p *Publisher) AuthRejected(path, reason string) {
	p.publish("auth_rejected", map[string]interface{}{
		"path":   path,
		"reason": reason,
	})
}

func (p *Publisher) publish(event string, fields map[string]interface{}) {
	if p == nil {
		return
	}
	payload := map[string]interface{}{
		"event": event,
		"time":  time.Now().UTC().Format(time.RFC3339),
	}
	for key, val := range fields {
		payload[key] = val
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = p.ch.PublishWithContext(ctx, "", authEventsQueue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		log.Warnf("Failed to publish %s event: %v", event, err)
	}
}

// Close releases the AMQP connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	_ = p.ch.Close()
	_ = p.conn.Close()
}
