package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/tank-controller/internal/logic"
)

// DefaultBacklog is the number of messages kept while the broker is unreachable.
const DefaultBacklog = 256

const publishTimeout = 5 * time.Second

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are queued and replayed, oldest first, once the connection is
// back. While a replay runs, new messages queue behind it.
type RealPublisher struct {
	client  paho.Client
	publish func(m pending) error

	mu        sync.Mutex
	queue     *backlog
	connected bool
	replaying bool
	everUp    bool
}

// NewRealPublisher starts connecting to broker in the background and returns
// immediately. The broker's last will is a retained SHUTDOWN/MQTT_DISCONNECT
// system message.
func NewRealPublisher(broker, clientID string, backlogSize int) *RealPublisher {
	p := &RealPublisher{queue: newBacklog(backlogSize)}
	p.publish = p.publishClient

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(2 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, queueing until connected", broker)
	} else if err := token.Error(); err != nil {
		log.Printf("mqtt: connect to %s: %v", broker, err)
	}
	return p
}

func (p *RealPublisher) publishClient(m pending) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

func (p *RealPublisher) onConnect(paho.Client) {
	p.mu.Lock()
	p.connected = true
	reconnect := p.everUp
	p.everUp = true
	if reconnect {
		log.Printf("mqtt: reconnected, replaying %d queued messages", p.queue.len())
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		p.requeue([]pending{{topic: TopicSystem, payload: payload, qos: 1}})
	} else {
		log.Printf("mqtt: connected")
	}
	run := p.startReplay()
	p.mu.Unlock()

	if run {
		p.replay()
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	log.Printf("mqtt: connection lost: %v", err)
}

// startReplay claims the replay if one is needed and none is running.
// Called with mu held.
func (p *RealPublisher) startReplay() bool {
	if !p.connected || p.replaying || p.queue.len() == 0 {
		return false
	}
	p.replaying = true
	return true
}

// requeue puts msgs ahead of whatever is queued. Called with mu held.
func (p *RealPublisher) requeue(msgs []pending) {
	newer := p.queue.drain()
	for _, m := range msgs {
		p.queue.push(m)
	}
	for _, m := range newer {
		p.queue.push(m)
	}
}

// replay publishes the backlog oldest first until it is empty or a publish
// fails. Messages queued meanwhile are sent in the same replay.
func (p *RealPublisher) replay() {
	for {
		p.mu.Lock()
		if !p.connected || p.queue.len() == 0 {
			p.replaying = false
			p.mu.Unlock()
			return
		}
		msgs := p.queue.drain()
		p.mu.Unlock()

		for i, m := range msgs {
			if err := p.publish(m); err != nil {
				log.Printf("mqtt: replay interrupted after %d of %d messages: %v", i, len(msgs), err)
				p.mu.Lock()
				p.requeue(msgs[i:])
				p.replaying = false
				p.mu.Unlock()
				return
			}
		}
	}
}

// send publishes live when nothing is waiting. Otherwise the message joins
// the backlog, and a connected publisher with no replay running starts one.
func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	m := pending{topic: topic, payload: payload, qos: qos, retained: retained}

	p.mu.Lock()
	if !p.connected || p.replaying || p.queue.len() > 0 {
		p.queue.push(m)
		run := p.startReplay()
		p.mu.Unlock()
		if run {
			p.replay()
		}
		return nil
	}
	p.mu.Unlock()

	if err := p.publish(m); err != nil {
		p.mu.Lock()
		p.queue.push(m)
		p.mu.Unlock()
		return err
	}
	return nil
}

// Publish sends a control event (QoS 0, not retained).
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.send(Topic, 0, false, payload)
}

// PublishSystem sends a system lifecycle event (QoS 1).
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Backlog returns the number of queued messages and the number dropped
// since startup.
func (p *RealPublisher) Backlog() (queued, dropped int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.len(), p.queue.dropped
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
