package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/car-alarm/internal/logger"
	"github.com/sweeney/car-alarm/internal/logic"
)

const (
	clientID       = "car-alarm"
	queueCapacity  = 64
	backlogSize    = 256
	publishTimeout = 5 * time.Second
	retryInterval  = 5 * time.Second
)

var (
	errPublisherClosed = errors.New("publisher closed")
	errQueueFull       = errors.New("publish queue full")
)

// RealPublisher publishes to an actual MQTT broker. Publish never waits on
// the network: messages are queued and sent by a background goroutine, so a
// slow or absent broker cannot stall the alarm loop. Messages that cannot be
// sent are kept in a ring buffer and replayed on reconnect.
type RealPublisher struct {
	ctx    context.Context
	client paho.Client
	queue  chan bufferedMsg
	done   chan struct{}

	mu      sync.Mutex
	backlog *ringBuffer
	closed  bool
}

// NewRealPublisher starts connecting to broker in the background.
func NewRealPublisher(ctx context.Context, broker string) *RealPublisher {
	p := &RealPublisher{
		ctx:     logger.WithName(ctx, "mqtt"),
		queue:   make(chan bufferedMsg, queueCapacity),
		done:    make(chan struct{}),
		backlog: newRingBuffer(backlogSize),
	}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warnf(p.ctx, "connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()

	go p.run()

	return p
}

// Publish queues a state transition, QoS 0, not retained.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.enqueue(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem queues a lifecycle event, QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.enqueue(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close flushes the queue and disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) enqueue(msg bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errPublisherClosed
	}

	select {
	case p.queue <- msg:
		return nil
	default:
		return errQueueFull
	}
}

func (p *RealPublisher) run() {
	defer close(p.done)

	for msg := range p.queue {
		if !p.client.IsConnectionOpen() {
			p.hold(msg)
			continue
		}
		if err := p.send(p.client, msg); err != nil {
			logger.Warnf(p.ctx, "publish to %s: %v", msg.topic, err)
			p.hold(msg)
		}
	}
}

func (p *RealPublisher) send(c paho.Client, msg bufferedMsg) error {
	token := c.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *RealPublisher) hold(msg bufferedMsg) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.backlog.push(msg) && p.backlog.dropped == 1 {
		logger.Warnf(p.ctx, "buffer full (%d messages), dropping oldest", backlogSize)
	}
}

// onConnect replays everything buffered while the broker was unreachable.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	msgs := p.backlog.drainAll()
	p.mu.Unlock()

	logger.Infof(p.ctx, "connected, replaying %d buffered messages", len(msgs))

	for i, msg := range msgs {
		if err := p.send(c, msg); err != nil {
			logger.Warnf(p.ctx, "replay to %s: %v", msg.topic, err)
			p.mu.Lock()
			for _, rest := range msgs[i:] {
				p.backlog.push(rest)
			}
			p.mu.Unlock()
			return
		}
	}
}
