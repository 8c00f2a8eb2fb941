package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"tunnel_hmi/internal/events"
)

var errPublishTimeout = errors.New("mqtt publish timed out")

// MQTTClient is the part of mqtt.Client the publisher needs.
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Timeout     time.Duration
}

// MQTTPublisher publishes each zone of a batch, retained, on <prefix>/<zone id>.
type MQTTPublisher struct {
	client MQTTClient
	prefix string
	qos    byte
}

var _ Sink = (*MQTTPublisher)(nil)

func NewMQTTPublisher(client MQTTClient, topicPrefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: strings.TrimSuffix(topicPrefix, "/")}
}

// DialMQTT connects to the broker with auto-reconnect enabled.
func DialMQTT(cfg MQTTConfig) (*MQTTPublisher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPublishTimeout
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(cfg.Timeout)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return NewMQTTPublisher(client, cfg.TopicPrefix), nil
}

func (p *MQTTPublisher) Name() string { return "mqtt" }

func (p *MQTTPublisher) Topic(zoneID int) string {
	return p.prefix + "/" + strconv.Itoa(zoneID)
}

func (p *MQTTPublisher) PublishBatch(ctx context.Context, b events.Batch) error {
	ids, payloads, err := zonePayloads(b)
	if err != nil {
		return err
	}
	wait := DefaultPublishTimeout
	if dl, ok := ctx.Deadline(); ok {
		wait = time.Until(dl)
	}
	var errs []error
	for i, id := range ids {
		token := p.client.Publish(p.Topic(id), p.qos, true, payloads[i])
		if !token.WaitTimeout(wait) {
			errs = append(errs, fmt.Errorf("zone %d: %w", id, errPublishTimeout))
			continue
		}
		if err := token.Error(); err != nil {
			errs = append(errs, fmt.Errorf("zone %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
