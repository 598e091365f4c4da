package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/corray333/backend-labs/floor/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/floor/internal/service/models/event"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	RoleKitchen   = "kitchen"
	RoleWaitstaff = "waitstaff"
	RoleManager   = "manager"
)

var roleTopics = map[string][]string{
	RoleKitchen:   {event.TopicNewOrder, event.TopicUpdateOrder, event.TopicCustomerOrderUpdate},
	RoleWaitstaff: {event.TopicServeOrder},
	RoleManager:   {event.TopicPaidBills},
}

// Roles lists every audience that gets a consumer and a hub.
func Roles() []string {
	return []string{RoleKitchen, RoleWaitstaff, RoleManager}
}

// Topics returns the routing keys a role listens to.
func Topics(role string) []string {
	return roleTopics[role]
}

// hub represents the fan-out side of a role.
type hub interface {
	Broadcast(name string, payload any) (int, error)
}

// Consumer forwards one role's events from its queue to its hub.
type Consumer struct {
	client   *rabbitmq.Client
	hub      hub
	role     string
	queue    amqp.Queue
	tracer   trace.Tracer
	stop     chan struct{}
	done     chan struct{}
	finished chan struct{}
}

// QueueName is the durable queue shared by every instance of a role.
func QueueName(role string) string {
	return viper.GetString("rabbitmq.queue_prefix") + "." + role
}

// NewConsumer declares the role queue, binds it to the role topics and returns its consumer.
func NewConsumer(client *rabbitmq.Client, role string, h hub) *Consumer {
	topics := Topics(role)
	if len(topics) == 0 {
		panic(fmt.Sprintf("consumer: unknown role %q", role))
	}

	queue, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:    QueueName(role),
		Durable: true,
	})
	if err != nil {
		panic(err)
	}

	exchange := viper.GetString("rabbitmq.exchange")
	for _, topic := range topics {
		if err := client.BindQueue(queue.Name, topic, exchange); err != nil {
			panic(fmt.Sprintf("failed to bind %s to %s: %v", queue.Name, topic, err))
		}
	}

	return &Consumer{
		client:   client,
		hub:      h,
		role:     role,
		queue:    queue,
		tracer:   otel.Tracer("floor/consumer"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Run consumes until Shutdown is called or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	defer close(c.finished)

	consumerTag := fmt.Sprintf("%s-%s", viper.GetString("rabbitmq.consumer.tag"), c.role)

	sub, err := c.client.Consume(rabbitmq.ConsumeConfig{
		Queue:    c.queue.Name,
		Consumer: consumerTag,
		Prefetch: viper.GetInt("rabbitmq.consumer.prefetch"),
	})
	if err != nil {
		return err
	}

	slog.Info("Consumer started", "role", c.role, "queue", c.queue.Name, "consumer_tag", consumerTag)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, viper.GetInt("rabbitmq.consumer.concurrency")))

	go func() {
		defer close(c.done)

		for {
			select {
			case <-c.stop:
				slog.Info("Stopping consumer", "role", c.role)
				if err := sub.Cancel(); err != nil {
					slog.Warn("Failed to cancel consumer", "role", c.role, "error", err)
				}

				return
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Deliveries:
				if !ok {
					slog.Info("Message channel closed", "role", c.role)

					return
				}

				g.Go(func() error {
					return c.processMessage(gctx, msg)
				})
			}
		}
	}()

	<-c.done

	return g.Wait()
}

// processMessage forwards one delivery to the hub. Undecodable events are dropped.
func (c *Consumer) processMessage(ctx context.Context, msg amqp.Delivery) error {
	ctx = otel.GetTextMapPropagator().Extract(ctx, rabbitmq.HeaderCarrier(msg.Headers))
	_, span := c.tracer.Start(ctx, "Consumer.processMessage", trace.WithAttributes(
		attribute.String("role", c.role),
		attribute.String("topic", msg.RoutingKey),
	))
	defer span.End()

	var evt event.Envelope
	err := json.Unmarshal(msg.Body, &evt)
	if err == nil {
		err = evt.Validate()
	}
	if err != nil {
		slog.Error("Dropping undecodable event",
			"role", c.role,
			"topic", msg.RoutingKey,
			"delivery_tag", msg.DeliveryTag,
			"error", err,
		)
		span.RecordError(err)
		if err := msg.Nack(false, false); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}

		return nil
	}

	name := event.StreamName(msg.RoutingKey)
	delivered, err := c.hub.Broadcast(name, evt)
	if err != nil {
		slog.Error("Failed to broadcast event", "role", c.role, "topic", msg.RoutingKey, "error", err)
		if err := msg.Nack(false, false); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}

		return nil
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("Failed to ack message", "role", c.role, "error", err)

		return nil
	}

	slog.Debug("Event forwarded", "role", c.role, "event", name, "kind", evt.Kind, "clients", delivered)

	return nil
}

// Shutdown stops consuming and waits for in-flight messages to finish.
func (c *Consumer) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer", "role", c.role)
	close(c.stop)

	select {
	case <-c.finished:
		slog.Info("Consumer stopped successfully", "role", c.role)

		return nil
	case <-ctx.Done():
		slog.Warn("Consumer shutdown timeout", "role", c.role)

		return ctx.Err()
	}
}
