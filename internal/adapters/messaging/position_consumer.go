package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fleet-routing-service/internal/domain"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const positionRoutingKey = "vehicle.position.*"

// PositionMessage is the wire shape of one vehicle position report.
type PositionMessage struct {
	TripID     string    `json:"tripId"`
	VehicleID  string    `json:"vehicleId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recordedAt"`
}

// PositionHandler processes one decoded sample.
type PositionHandler func(ctx context.Context, sample domain.PositionSample) error

func decodePosition(body []byte) (domain.PositionSample, error) {
	var msg PositionMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return domain.PositionSample{}, fmt.Errorf("%w: decode position: %w", domain.ErrInvalidInput, err)
	}

	sample := domain.PositionSample{
		TripID:     msg.TripID,
		VehicleID:  msg.VehicleID,
		Point:      domain.GeoPoint{Latitude: msg.Latitude, Longitude: msg.Longitude},
		RecordedAt: msg.RecordedAt,
	}
	if err := sample.Validate(); err != nil {
		return domain.PositionSample{}, err
	}
	return sample, nil
}

// ConsumePositions binds queueName to vehicle.position.* and feeds each message
// to handler until ctx is cancelled or the channel closes. It returns once the
// consumer is registered; delivery runs in a background goroutine.
func (c *Client) ConsumePositions(ctx context.Context, queueName string, handler PositionHandler) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, positionRoutingKey, c.Exchange, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	if err := ch.Qos(32, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		q.Name,
		"",
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	slog.Info("rmq consuming positions", "queue", q.Name, "routing_key", positionRoutingKey)

	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					slog.Warn("rmq position deliveries closed", "queue", q.Name)
					return
				}
				settle(d, handlePosition(ctx, d, handler))
			}
		}
	}()

	return nil
}

func handlePosition(ctx context.Context, d amqp.Delivery, handler PositionHandler) error {
	sample, err := decodePosition(d.Body)
	if err != nil {
		return err
	}
	return handler(ctx, sample)
}

// settle acks successes and permanent failures; a transient failure is requeued once.
func settle(d amqp.Delivery, err error) {
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrTripNotFound):
		slog.Warn("rmq position dropped", "routing_key", d.RoutingKey, "error", err)
		_ = d.Ack(false)
	case d.Redelivered:
		slog.Error("rmq position failed after redelivery", "routing_key", d.RoutingKey, "error", err)
		_ = d.Nack(false, false)
	default:
		slog.Warn("rmq position failed, requeueing", "routing_key", d.RoutingKey, "error", err)
		_ = d.Nack(false, true)
	}
}
