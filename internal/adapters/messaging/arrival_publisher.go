package messaging

import (
	"context"
	"encoding/json"
	"fleet-routing-service/internal/ports"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

func arrivalRoutingKey(tripID string) string {
	return fmt.Sprintf("notification.arrival.%s", tripID)
}

// ArrivalPublisher publishes arrival notices to the fleet exchange for the dispatch service.
type ArrivalPublisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

func NewArrivalPublisher(c *Client) (*ArrivalPublisher, error) {
	ch, err := c.channel()
	if err != nil {
		return nil, err
	}
	return &ArrivalPublisher{ch: ch, exchange: c.Exchange}, nil
}

func (p *ArrivalPublisher) NotifyArrival(ctx context.Context, notice ports.ArrivalNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("publish arrival: marshal: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(
		ctx,
		p.exchange,
		arrivalRoutingKey(notice.TripID),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    notice.RecordedAt,
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("publish arrival trip=%q stop=%q: %w", notice.TripID, notice.StopID, err)
	}

	slog.DebugContext(ctx, "arrival notice published", "trip_id", notice.TripID, "stop_id", notice.StopID)
	return nil
}

func (p *ArrivalPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}

// LogNotifier records arrival notices in the log. Used when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) NotifyArrival(ctx context.Context, notice ports.ArrivalNotice) error {
	slog.InfoContext(ctx, "arrival notice",
		"trip_id", notice.TripID,
		"vehicle_id", notice.VehicleID,
		"stop_id", notice.StopID,
		"distance_m", notice.DistanceMeters,
		"recorded_at", notice.RecordedAt,
	)
	return nil
}
