package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/patchbay/internal/patch"
)

const systemBufferSize = 32

// ErrNotConnected is returned by Send while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt: not connected")

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	width  int
	logger *log.Logger

	mu      sync.Mutex
	pending *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. If the broker
// does not answer within the connect timeout the client keeps retrying in
// the background and system events are buffered until it does.
func NewRealPublisher(broker string, width int, logger *log.Logger) (*RealPublisher, error) {
	p := &RealPublisher{
		width:   width,
		logger:  logger,
		pending: newRingBuffer(systemBufferSize, logger),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("patchbay").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("connection lost", "err", err)
		})

	p.client = paho.NewClient(opts)

	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		logger.Warn("broker not reachable yet, retrying in background", "broker", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// onConnect replays system events buffered while disconnected.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	msgs := p.pending.drainAll()
	p.mu.Unlock()

	p.logger.Info("connected", "replay", len(msgs))
	for _, m := range msgs {
		token := c.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(5 * time.Second) {
			p.logger.Error("replay timeout", "topic", m.topic)
			continue
		}
		if err := token.Error(); err != nil {
			p.logger.Error("replay failed", "topic", m.topic, "err", err)
		}
	}
}

// Send publishes one patch event. While disconnected it returns
// ErrNotConnected instead of queueing.
func (p *RealPublisher) Send(event patch.Event) error {
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	payload, err := FormatPayload(event, p.width)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained: the resync covers lost events
	token := p.client.Publish(Topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishSystem sends a system lifecycle event, buffering it while
// disconnected.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.pending.push(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
		p.mu.Unlock()
		return nil
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	token := p.client.Publish(TopicSystem, 1, event.Retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
