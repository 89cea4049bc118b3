package telemetry

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-manager/internal/models"
)

const (
	qosAtLeastOnce = 1
	connectTimeout = 10 * time.Second
)

// PositionHandler consumes decoded positions.
type PositionHandler interface {
	HandlePosition(pos models.VehiclePosition) (*models.OffRouteAlert, bool)
}

// Connect opens an MQTT connection with automatic reconnect. onConnect
// runs after every (re)connection.
func Connect(broker, clientID string, onConnect func(mqtt.Client)) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).WithField("broker", broker).Warn("MQTT connection lost")
		})
	if onConnect != nil {
		opts.SetOnConnectHandler(onConnect)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", broker, err)
	}
	return client, nil
}

// Subscriber feeds positions received on topic to a PositionHandler.
type Subscriber struct {
	Topic   string
	Handler PositionHandler

	client mqtt.Client
	log    *log.Entry
}

// NewSubscriber creates a subscriber for topic.
func NewSubscriber(topic string, handler PositionHandler) *Subscriber {
	return &Subscriber{
		Topic:   topic,
		Handler: handler,
		log:     log.WithFields(log.Fields{"component": "telemetry", "topic": topic}),
	}
}

// Start connects to broker and subscribes. The subscription is renewed on
// every reconnect.
func (s *Subscriber) Start(broker, clientID string) error {
	client, err := Connect(broker, clientID, func(c mqtt.Client) {
		token := c.Subscribe(s.Topic, qosAtLeastOnce, s.onMessage)
		if token.WaitTimeout(connectTimeout) && token.Error() == nil {
			s.log.Info("Subscribed to vehicle positions")
			return
		}
		s.log.WithError(token.Error()).Error("Failed to subscribe to vehicle positions")
	})
	if err != nil {
		return err
	}
	s.client = client
	return nil
}

// Close unsubscribes and disconnects.
func (s *Subscriber) Close() {
	if s.client == nil {
		return
	}
	s.client.Unsubscribe(s.Topic).WaitTimeout(time.Second)
	s.client.Disconnect(250)
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.handle(msg.Topic(), msg.Payload())
}

func (s *Subscriber) handle(topic string, payload []byte) {
	pos, err := ParsePosition(topic, payload)
	if err != nil {
		s.log.WithError(err).Debug("Dropping position message")
		return
	}
	s.Handler.HandlePosition(pos)
}

// Publisher sends positions, used by the trip simulator.
type Publisher struct {
	Client mqtt.Client
}

// PublishPosition publishes pos on its vehicle's topic and waits for the
// broker to accept it.
func (p *Publisher) PublishPosition(pos models.VehiclePosition) error {
	payload, err := EncodePosition(pos)
	if err != nil {
		return err
	}
	token := p.Client.Publish(PositionTopic(pos.Plate), qosAtLeastOnce, false, payload)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("publish position of %s: timed out", pos.Plate)
	}
	return token.Error()
}
