package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"namocoins/internal/model"
)

const (
	NotifyExchange   = "order.notify.exchange"
	NotifyQueue      = "order.notify.queue"
	StatusRoutingKey = "order.status"

	reconnectDelay = 3 * time.Second
	publishTimeout = 5 * time.Second
)

var (
	ErrNotConnected = errors.New("rabbitmq not connected")
	ErrClosed       = errors.New("rabbitmq publisher closed")
)

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends order status events to RabbitMQ and reconnects in the
// background when the broker drops the connection.
type Publisher struct {
	url string

	conn    *amqp.Connection
	channel channel

	mu          sync.RWMutex
	isConnected bool
	done        chan struct{}
	closeOnce   sync.Once
}

func NewPublisher(url string) (*Publisher, error) {
	p := &Publisher{
		url:  url,
		done: make(chan struct{}),
	}

	if err := p.connect(); err != nil {
		return nil, err
	}

	go p.monitorConnection()

	return p, nil
}

func (p *Publisher) connect() error {
	return p.connectWith(dialAMQP)
}

type dialFunc func(url string) (*amqp.Connection, channel, error)

func dialAMQP(url string) (*amqp.Connection, channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return conn, ch, nil
}

// connectWith holds mu for the whole attempt, so Close either runs first
// and the attempt is abandoned, or runs after and tears the new
// connection down.
func (p *Publisher) connectWith(dial dialFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed() {
		return ErrClosed
	}

	conn, ch, err := dial(p.url)
	if err != nil {
		return err
	}

	if err := declareTopology(ch); err != nil {
		ch.Close()
		if conn != nil {
			conn.Close()
		}
		return err
	}

	p.conn = conn
	p.channel = ch
	p.isConnected = true

	log.Info("rabbitmq connected")
	return nil
}

func (p *Publisher) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Publisher) monitorConnection() {
	for {
		p.mu.RLock()
		conn := p.conn
		p.mu.RUnlock()

		notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-p.done:
			return
		case err := <-notifyClose:
			if err != nil {
				log.WithError(err).Warn("rabbitmq connection lost")
			}

			p.mu.Lock()
			p.isConnected = false
			p.mu.Unlock()

			if !p.reconnect() {
				return
			}
		}
	}
}

// reconnect retries until it succeeds or the publisher is closed.
func (p *Publisher) reconnect() bool {
	for attempt := 1; ; attempt++ {
		select {
		case <-p.done:
			return false
		case <-time.After(reconnectDelay):
		}

		if err := p.connect(); err != nil {
			if errors.Is(err, ErrClosed) {
				return false
			}
			log.WithError(err).WithField("attempt", attempt).Warn("rabbitmq reconnect failed")
			continue
		}
		return true
	}
}

func declareTopology(ch channel) error {
	if err := ch.ExchangeDeclare(NotifyExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", NotifyExchange, err)
	}
	if _, err := ch.QueueDeclare(NotifyQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", NotifyQueue, err)
	}
	if err := ch.QueueBind(NotifyQueue, StatusRoutingKey, NotifyExchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", NotifyQueue, err)
	}
	return nil
}

func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isConnected
}

// PublishOrderEvent sends ev as a persistent JSON message.
func (p *Publisher) PublishOrderEvent(ctx context.Context, ev model.OrderEvent) error {
	p.mu.RLock()
	if !p.isConnected {
		p.mu.RUnlock()
		return ErrNotConnected
	}
	ch := p.channel
	p.mu.RUnlock()

	return publish(ctx, ch, ev)
}

func publish(ctx context.Context, ch channel, ev model.OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return ch.PublishWithContext(ctx, NotifyExchange, StatusRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.OrderNo,
		Timestamp:    time.Unix(ev.Timestamp, 0),
	})
}

func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.done)

		p.mu.Lock()
		defer p.mu.Unlock()

		if p.channel != nil {
			if err := p.channel.Close(); err != nil {
				log.WithError(err).Warn("close rabbitmq channel")
			}
		}
		if p.conn != nil {
			if err := p.conn.Close(); err != nil {
				log.WithError(err).Warn("close rabbitmq connection")
			}
		}
		p.isConnected = false
	})
}
