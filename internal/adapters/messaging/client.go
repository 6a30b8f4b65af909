package messaging

import (
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Client owns one AMQP connection. Consumers and the publisher each get their own channel.
type Client struct {
	Conn     *amqp.Connection
	Exchange string
}

// NewClient dials the broker and declares the durable topic exchange.
func NewClient(url, exchange string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	c := &Client{Conn: conn, Exchange: exchange}

	ch, err := c.channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()

	slog.Info("rmq connected", "exchange", exchange)
	return c, nil
}

// channel opens a channel and (re)declares the exchange on it.
func (c *Client) channel() (*amqp.Channel, error) {
	ch, err := c.Conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		c.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", c.Exchange, err)
	}

	return ch, nil
}

func (c *Client) Close() error {
	if c.Conn == nil {
		return nil
	}
	if err := c.Conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	slog.Info("rmq connection closed")
	return nil
}
