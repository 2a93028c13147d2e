package tracking

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/moto-navigator/internal/models"
)

const mqttConnectTimeout = 10 * time.Second

// MQTTSource delivers location samples published by the rider's device on an
// MQTT topic (riders/{userID}/location).
type MQTTSource struct {
	client mqtt.Client
	topic  string
}

// NewMQTTSource connects to the broker and prepares a source for the given
// topic.
func NewMQTTSource(brokerURL, clientID, topic string) (*MQTTSource, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", brokerURL, err)
	}
	return &MQTTSource{client: client, topic: topic}, nil
}

// Subscribe registers the handler for incoming samples. Malformed payloads
// are logged and dropped.
func (s *MQTTSource) Subscribe(handler func(models.LocationSample)) (Subscription, error) {
	token := s.client.Subscribe(s.topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var sample models.LocationSample
		if err := json.Unmarshal(msg.Payload(), &sample); err != nil {
			log.WithError(err).WithField("topic", msg.Topic()).Warn("Dropping malformed location sample")
			return
		}
		handler(sample)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt subscribe %s: %w", s.topic, err)
	}
	return &mqttSubscription{client: s.client, topic: s.topic}, nil
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() {
	s.client.Disconnect(250)
}

type mqttSubscription struct {
	client mqtt.Client
	topic  string
}

func (s *mqttSubscription) Unsubscribe() {
	token := s.client.Unsubscribe(s.topic)
	token.Wait()
	if err := token.Error(); err != nil {
		log.WithError(err).WithField("topic", s.topic).Warn("MQTT unsubscribe failed")
	}
}
