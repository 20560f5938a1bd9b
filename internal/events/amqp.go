package events

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"
)

const (
	dialTimeout   = 5 * time.Second
	redialBackoff = time.Second
)

var (
	ErrPublisherClosed = errors.New("click publisher closed")
	ErrNotConnected    = errors.New("rabbitmq not connected")
)

// publishChannel is the part of *amqp091.Channel the publisher uses.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	IsClosed() bool
	Close() error
}

type dialFunc func() (publishChannel, io.Closer, error)

// AMQPPublisher writes click events as persistent JSON messages to a durable
// queue through the default exchange. A closed channel or connection is
// redialed on the next publish, at most once per redialBackoff.
type AMQPPublisher struct {
	mu       sync.Mutex
	dial     dialFunc
	conn     io.Closer
	ch       publishChannel
	queue    string
	closed   bool
	backoff  time.Duration
	lastDial time.Time
	now      func() time.Time
}

func DialAMQP(url, queue string) (*AMQPPublisher, error) {
	p := newAMQPPublisher(queue, func() (publishChannel, io.Closer, error) {
		conn, err := amqp091.DialConfig(url, amqp091.Config{Dial: amqp091.DefaultDial(dialTimeout)})
		if err != nil {
			return nil, nil, errors.Wrap(err, "dial rabbitmq")
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, nil, errors.Wrap(err, "open rabbitmq channel")
		}
		if _, err := DeclareQueue(ch, queue); err != nil {
			ch.Close()
			conn.Close()
			return nil, nil, err
		}
		return ch, conn, nil
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func newAMQPPublisher(queue string, dial dialFunc) *AMQPPublisher {
	return &AMQPPublisher{dial: dial, queue: queue, backoff: redialBackoff, now: time.Now}
}

// DeclareQueue declares the durable click queue shared by publisher and worker.
func DeclareQueue(ch *amqp091.Channel, name string) (amqp091.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return amqp091.Queue{}, errors.Wrapf(err, "declare queue %q", name)
	}
	return q, nil
}

func (p *AMQPPublisher) connectLocked() error {
	p.dropLocked()
	p.lastDial = p.now()
	ch, conn, err := p.dial()
	if err != nil {
		return err
	}
	p.ch, p.conn = ch, conn
	return nil
}

// ensureLocked redials when the channel is gone, respecting the backoff.
func (p *AMQPPublisher) ensureLocked() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	if !p.lastDial.IsZero() && p.now().Sub(p.lastDial) < p.backoff {
		return ErrNotConnected
	}
	return p.connectLocked()
}

func (p *AMQPPublisher) dropLocked() {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev ClickEvent) error {
	body, err := Encode(ev)
	if err != nil {
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    ev.Timestamp,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}
	if err := p.ensureLocked(); err != nil {
		return errors.WithMessagef(err, "publish click for %q", ev.ShortCode)
	}

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg)
	if errors.Is(err, amqp091.ErrClosed) {
		// The broker went away since the last publish; one fresh attempt.
		if err := p.connectLocked(); err != nil {
			return errors.WithMessagef(err, "publish click for %q", ev.ShortCode)
		}
		err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg)
	}
	return errors.Wrapf(err, "publish click for %q", ev.ShortCode)
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var chErr, connErr error
	if p.ch != nil {
		chErr = p.ch.Close()
	}
	if p.conn != nil {
		connErr = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
	if chErr != nil {
		return errors.Wrap(chErr, "close rabbitmq channel")
	}
	return errors.Wrap(connErr, "close rabbitmq connection")
}
