package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultMQTTTopic is used when no topic is configured.
const DefaultMQTTTopic = "hls/events"

var errMQTTTimeout = errors.New("mqtt publish timeout")

// MQTTPublisher is the subset of mqtt.Client the sink uses.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes events as JSON envelopes to <topic>/<app>/<stream>/<kind>.
type MQTT struct {
	client MQTTPublisher
	topic  string
	qos    byte
}

// NewMQTT returns a sink publishing under topic with QoS 1.
func NewMQTT(client MQTTPublisher, topic string) *MQTT {
	if topic == "" {
		topic = DefaultMQTTTopic
	}
	return &MQTT{client: client, topic: topic, qos: 1}
}

// DialMQTT connects to a broker ("host:port") with automatic reconnect.
func DialMQTT(broker, clientID string, log *slog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		log.Info("mqtt connection established", "broker", broker, "client_id", clientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost, will auto-reconnect", "broker", broker, "error", err)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return c, nil
}

// Topic returns the topic an event is published on.
func (m *MQTT) Topic(ev Event) string {
	return m.topic + "/" + ev.App + "/" + ev.Stream + "/" + string(ev.Kind)
}

func (m *MQTT) Notify(ctx context.Context, ev Event) error {
	payload, err := encode(ev)
	if err != nil {
		return err
	}

	timeout := 2 * time.Second
	if d, ok := ctx.Deadline(); ok {
		timeout = time.Until(d)
	}

	token := m.client.Publish(m.Topic(ev), m.qos, false, payload)
	if !token.WaitTimeout(timeout) {
		return errMQTTTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}
