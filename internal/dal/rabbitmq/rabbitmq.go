package rabbitmq

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/viper"
	"github.com/streadway/amqp"
)

var (
	ErrClosed = errors.New("broker client closed")
	ErrNacked = errors.New("broker rejected the message")
)

// Client represents a RabbitMQ client.
// Publishing goes through one channel in confirm mode; every consumer gets a channel of its own.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	mu      sync.Mutex
	nextTag uint64
	pending map[uint64]chan error
	closed  bool
	done    chan struct{}
}

// Close closes the channel and connection for graceful shutdown.
// Sends still awaiting confirmation fail with ErrClosed.
func (r *Client) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()

		return nil
	}
	r.closed = true
	r.mu.Unlock()

	var errs []error
	if r.channel != nil {
		errs = append(errs, r.channel.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	<-r.done

	return errors.Join(errs...)
}

// MustNewClient connects to RabbitMQ and switches the publishing channel to confirm mode.
func MustNewClient() *Client {
	host := viper.GetString("rabbitmq.host")
	port := viper.GetInt("rabbitmq.port")
	user := viper.GetString("rabbitmq.user")
	password := viper.GetString("rabbitmq.password")
	vhost := viper.GetString("rabbitmq.vhost")

	connStr := fmt.Sprintf(
		"amqp://%s:%s@%s:%d/%s",
		user,
		password,
		host,
		port,
		vhost,
	)

	conn, err := amqp.Dial(connStr)
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to RabbitMQ: %v", err))
	}

	channel, err := conn.Channel()
	if err != nil {
		err := conn.Close()
		if err != nil {
			panic(fmt.Sprintf("Failed to close a connection: %v", err))
		}
		panic(fmt.Sprintf("Failed to open a channel: %v", err))
	}

	if err := channel.Confirm(false); err != nil {
		_ = conn.Close()
		panic(fmt.Sprintf("Failed to enable publisher confirms: %v", err))
	}

	client := &Client{
		conn:    conn,
		channel: channel,
		pending: map[uint64]chan error{},
		done:    make(chan struct{}),
	}
	confirms := channel.NotifyPublish(make(chan amqp.Confirmation, viper.GetInt("rabbitmq.confirm_buffer")))
	go client.resolveConfirms(confirms)

	slog.Info("RabbitMQ connected", "host", host, "port", port)

	return client
}

// PublishAsync hands msg to the broker and returns immediately.
// The returned channel yields exactly one value once the broker confirms or rejects the message.
// A non-nil error means the message never left the client.
func (r *Client) PublishAsync(exchange, routingKey string, msg amqp.Publishing) (<-chan error, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	// tags are assigned by the channel in publish order, so publishing under the lock keeps them in sync
	if err := r.channel.Publish(exchange, routingKey, false, false, msg); err != nil {
		return nil, fmt.Errorf("failed to publish to %s: %w", routingKey, err)
	}
	r.nextTag++
	result := make(chan error, 1)
	r.pending[r.nextTag] = result

	return result, nil
}

func (r *Client) resolveConfirms(confirms <-chan amqp.Confirmation) {
	defer close(r.done)

	for c := range confirms {
		r.mu.Lock()
		result, ok := r.pending[c.DeliveryTag]
		delete(r.pending, c.DeliveryTag)
		r.mu.Unlock()
		if !ok {
			continue
		}

		if c.Ack {
			result <- nil
		} else {
			result <- ErrNacked
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for tag, result := range r.pending {
		result <- ErrClosed
		delete(r.pending, tag)
	}
}

// DeclareExchange declares a durable topic exchange.
func (r *Client) DeclareExchange(name string) error {
	return r.channel.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil)
}

type DeclareQueueConfig struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	NoWait     bool
	Args       amqp.Table
}

// DeclareQueue declares a queue with the given configuration.
func (r *Client) DeclareQueue(cfg DeclareQueueConfig) (amqp.Queue, error) {
	return r.channel.QueueDeclare(
		cfg.Name,
		cfg.Durable,
		cfg.AutoDelete,
		cfg.Exclusive,
		cfg.NoWait,
		cfg.Args,
	)
}

// BindQueue routes messages published to exchange with routingKey into queue.
func (r *Client) BindQueue(queue, routingKey, exchange string) error {
	return r.channel.QueueBind(queue, routingKey, exchange, false, nil)
}

type ConsumeConfig struct {
	Queue     string
	Consumer  string
	Prefetch  int
	AutoAck   bool
	Exclusive bool
	NoLocal   bool
	NoWait    bool
	Args      amqp.Table
}

// Subscription is a consumer bound to its own channel.
type Subscription struct {
	channel    *amqp.Channel
	consumer   string
	Deliveries <-chan amqp.Delivery
}

// Cancel stops deliveries and closes the consumer channel.
// Deliveries is closed once the broker acknowledges the cancel.
func (s *Subscription) Cancel() error {
	if err := s.channel.Cancel(s.consumer, false); err != nil {
		return err
	}

	return s.channel.Close()
}

// Consume opens a channel with the configured prefetch and starts consuming from the queue.
func (r *Client) Consume(cfg ConsumeConfig) (*Subscription, error) {
	channel, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}

	if cfg.Prefetch > 0 {
		if err := channel.Qos(cfg.Prefetch, 0, false); err != nil {
			_ = channel.Close()

			return nil, fmt.Errorf("failed to set qos: %w", err)
		}
	}

	deliveries, err := channel.Consume(
		cfg.Queue,
		cfg.Consumer,
		cfg.AutoAck,
		cfg.Exclusive,
		cfg.NoLocal,
		cfg.NoWait,
		cfg.Args,
	)
	if err != nil {
		_ = channel.Close()

		return nil, err
	}

	return &Subscription{
		channel:    channel,
		consumer:   cfg.Consumer,
		Deliveries: deliveries,
	}, nil
}
