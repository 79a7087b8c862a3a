package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
)

// ErrNotConnected is returned by PublishTelemetry while offline.
var ErrNotConnected = errors.New("mqtt: not connected")

const (
	connectWait  = 10 * time.Second
	publishWait  = 5 * time.Second
	backlogLimit = 64
)

// Config holds the broker connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string
	Prefix   string
}

// Broker returns the broker URL.
func (c Config) Broker() string {
	port := c.Port
	if port == 0 {
		port = 1883
	}
	return fmt.Sprintf("tcp://%s:%d", c.Host, port)
}

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	prefix string
	log    *logger.Logger

	mu            sync.Mutex
	backlog       *backlog
	everConnected bool
}

// NewRealPublisher creates a publisher and starts connecting. A broker that
// is down at boot is not an error: paho keeps retrying in the background and
// system events are buffered until it succeeds.
func NewRealPublisher(cfg Config, log *logger.Logger) (*RealPublisher, error) {
	if cfg.Host == "" {
		return nil, errors.New("mqtt: no broker host configured")
	}
	p := &RealPublisher{
		prefix:  cfg.Prefix,
		log:     log,
		backlog: newBacklog(backlogLimit),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker()).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.User).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(Topic(cfg.Prefix, TopicSystem), string(WillPayload()), 1, false).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnw("mqtt_connection_lost", "err", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectWait) {
		log.Warnw("mqtt_connect_pending", "broker", cfg.Broker())
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// onConnect replays buffered system events. After a reconnect it also
// announces RECONNECTED.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	pending := p.backlog.take()
	reconnect := p.everConnected
	p.everConnected = true
	p.mu.Unlock()

	p.log.Infow("mqtt_connected", "replay", len(pending))
	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		pending = append(pending, Message{Topic: Topic(p.prefix, TopicSystem), Payload: payload, QoS: 1})
	}

	// Runs on paho's goroutine; waiting here would stall its router.
	for _, msg := range pending {
		c.Publish(msg.Topic, msg.QoS, msg.Retained, msg.Payload)
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

func (p *RealPublisher) publish(msg Message) error {
	token := p.client.Publish(msg.Topic, msg.QoS, msg.Retained, msg.Payload)
	if !token.WaitTimeout(publishWait) {
		return fmt.Errorf("publish %s: timeout", msg.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Topic, err)
	}
	return nil
}

// PublishTelemetry sends every telemetry topic.
func (p *RealPublisher) PublishTelemetry(t Telemetry) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}
	var errs []error
	for _, msg := range TelemetryMessages(p.prefix, t) {
		if err := p.publish(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishSystem sends a system event, buffering it while disconnected.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	msg := Message{Topic: Topic(p.prefix, TopicSystem), Payload: payload, QoS: 1, Retained: event.Retained}

	if !p.IsConnected() {
		p.mu.Lock()
		evicted := p.backlog.add(msg)
		n := p.backlog.len()
		total := p.backlog.dropped
		p.mu.Unlock()
		if evicted {
			p.log.Warnw("mqtt_backlog_full", "limit", backlogLimit, "dropped", total)
		}
		p.log.Debugw("mqtt_buffered", "event", event.Event, "pending", n)
		return nil
	}
	return p.publish(msg)
}

// Dropped returns how many offline system events were discarded because the
// backlog was full.
func (p *RealPublisher) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backlog.dropped
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}
