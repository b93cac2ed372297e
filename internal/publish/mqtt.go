// Package publish forwards engine events to an MQTT broker so other
// processes (a renderer, a home automation bridge) can follow the session.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/handtree/internal/gesture"
)

// DefaultTopicPrefix is the root of every published topic.
const DefaultTopicPrefix = "handtree/events"

// ErrNoBroker is returned by Connect when Config.Broker is empty.
var ErrNoBroker = errors.New("mqtt broker not configured")

// Config holds the MQTT publisher settings.
type Config struct {
	// Broker is the broker URL, e.g. "tcp://localhost:1883".
	Broker   string
	ClientID string
	// TopicPrefix defaults to DefaultTopicPrefix. Events go to
	// <prefix>/<kind>.
	TopicPrefix string
	QoS         byte
	// Session stamps every envelope.
	Session string
	// PublishTimeout bounds how long a delivery is awaited before it is
	// logged as failed. Defaults to 2s.
	PublishTimeout time.Duration
}

// client is the subset of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher publishes engine events as JSON envelopes.
type Publisher struct {
	client client
	cfg    Config
	now    func() time.Time

	// pending tracks deliveries still being awaited.
	pending sync.WaitGroup
}

// Connect dials the broker and returns a Publisher bound to it.
func Connect(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, ErrNoBroker
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "handtree-" + shortID(cfg.Session)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, token.Error())
	}
	log.Printf("Event publisher connected to MQTT broker at %s", cfg.Broker)

	return newPublisher(c, cfg), nil
}

func newPublisher(c client, cfg Config) *Publisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	return &Publisher{client: c, cfg: cfg, now: time.Now}
}

// Topic returns the topic an event of kind is published to.
func (p *Publisher) Topic(kind gesture.EventKind) string {
	return p.cfg.TopicPrefix + "/" + string(kind)
}

// Callbacks returns engine callbacks that publish every event.
func (p *Publisher) Callbacks() gesture.Callbacks {
	return gesture.EventCallbacks(p.Publish)
}

// Publish sends ev without waiting for delivery. Tree state and photo focus
// are retained so a late subscriber sees the current scene.
func (p *Publisher) Publish(ev gesture.Event) {
	payload, err := json.Marshal(gesture.NewEnvelope(p.cfg.Session, ev, p.now()))
	if err != nil {
		log.Printf("mqtt publish: encode %s: %v", ev.Kind, err)
		return
	}

	retained := ev.Kind == gesture.EventStateChange || ev.Kind == gesture.EventPhotoFocus
	topic := p.Topic(ev.Kind)
	token := p.client.Publish(topic, p.cfg.QoS, retained, payload)

	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		if !token.WaitTimeout(p.cfg.PublishTimeout) {
			log.Printf("mqtt publish %s: timed out", topic)
			return
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt publish %s: %v", topic, err)
		}
	}()
}

// Close waits for in-flight deliveries and disconnects.
func (p *Publisher) Close() {
	p.pending.Wait()
	p.client.Disconnect(250)
}

func shortID(session string) string {
	if len(session) > 8 {
		return session[:8]
	}
	if session == "" {
		return "client"
	}
	return session
}
