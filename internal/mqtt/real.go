package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/nido/internal/logic"
)

// bufferCapacity bounds how many messages are held while the broker is unreachable.
const bufferCapacity = 256

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client

	mu        sync.Mutex
	buffer    *offlineQueue
	connected bool
	reconnect bool // set after the first connection so later ones announce RECONNECTED
}

// NewRealPublisher creates a publisher connected to the given broker.
// A retained SHUTDOWN/MQTT_DISCONNECT will is registered so subscribers
// notice an unclean exit.
func NewRealPublisher(broker string) (*RealPublisher, error) {
	p := &RealPublisher{buffer: newOfflineQueue(bufferCapacity)}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("nido").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// paho keeps retrying; messages are buffered until onConnect.
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	p.connected = true
	announce := p.reconnect
	p.reconnect = true
	pending := p.buffer.drain()
	p.mu.Unlock()

	// Publishing from inside the handler would block paho's router.
	go func() {
		if announce {
			log.Printf("mqtt: reconnected, replaying %d buffered messages", len(pending))
			if err := p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err != nil {
				log.Printf("mqtt: %v", err)
			}
		}
		for _, msg := range pending {
			if err := p.send(msg); err != nil {
				log.Printf("mqtt: replay to %s: %v", msg.topic, err)
			}
		}
	}()
}

func (p *RealPublisher) onConnectionLost(c paho.Client, err error) {
	log.Printf("mqtt: connection lost: %v", err)
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// publish sends msg, or buffers it while disconnected.
func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.connected {
		p.buffer.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// Publish sends a thermostat event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1: a missed HEAT_OFF or FAULT leaves subscribers with a wrong picture.
	return p.publish(bufferedMsg{topic: TopicEvents, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// PublishWeather sends the current conditions as a retained message.
func (p *RealPublisher) PublishWeather(event WeatherEvent) error {
	payload, err := FormatWeatherPayload(event)
	if err != nil {
		return fmt.Errorf("format weather payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicWeather, payload: payload, qos: 0, retained: true})
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	dropped := p.buffer.len()
	p.mu.Unlock()
	if dropped > 0 {
		log.Printf("mqtt: closing with %d undelivered messages", dropped)
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
