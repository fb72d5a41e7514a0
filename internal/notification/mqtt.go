package notification

import (
	"context"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"

	"github.com/tphakala/sentinel-go/internal/conf"
	"github.com/tphakala/sentinel-go/internal/errors"
)

const (
	defaultMQTTTimeout = 10 * time.Second
	mqttQoS            = 1
)

// MQTTProvider publishes alert notifications to a broker topic so other
// systems (home automation, SIEM collectors) can subscribe to alerts.
type MQTTProvider struct {
	name    string
	enabled bool
	cfg     conf.MQTTConfig
	timeout time.Duration

	mu     sync.Mutex
	client mqtt.Client
}

// NewMQTTProvider builds the provider from config. The broker connection
// is established lazily on first send so a slow broker cannot stall
// startup.
func NewMQTTProvider(pc *conf.ProviderConfig) *MQTTProvider {
	name := pc.Name
	if name == "" {
		name = "mqtt"
	}
	timeout := pc.Timeout
	if timeout <= 0 {
		timeout = defaultMQTTTimeout
	}
	return &MQTTProvider{
		name:    name,
		enabled: pc.Enabled,
		cfg:     pc.MQTT,
		timeout: timeout,
	}
}

func (m *MQTTProvider) GetName() string { return m.name }
func (m *MQTTProvider) IsEnabled() bool { return m.enabled }

// ValidateConfig rejects missing broker or topic.
func (m *MQTTProvider) ValidateConfig() error {
	if !m.enabled {
		return nil
	}
	if m.cfg.Broker == "" {
		return validationError(m.name, "mqtt broker address is required")
	}
	if m.cfg.Topic == "" {
		return validationError(m.name, "mqtt topic is required")
	}
	return nil
}

// connect establishes the broker session if not already connected.
func (m *MQTTProvider) connect() (mqtt.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil && m.client.IsConnected() {
		return m.client, nil
	}

	clientID := m.cfg.ClientID
	if clientID == "" {
		clientID = "sentinel-" + m.name
	}

	opts := mqtt.NewClientOptions().
		AddBroker(m.cfg.Broker).
		SetClientID(clientID).
		SetConnectTimeout(m.timeout).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(m.timeout) {
		return nil, errors.Newf("timeout connecting to mqtt broker %s", m.cfg.Broker).
			Component(m.name).
			Category(errors.CategoryTimeout).
			Build()
	}
	if err := token.Error(); err != nil {
		return nil, errors.New(err).
			Component(m.name).
			Category(errors.CategoryNetwork).
			Context("broker", m.cfg.Broker).
			Build()
	}

	m.client = client
	return client, nil
}

// Send publishes the notification as JSON to the configured topic.
func (m *MQTTProvider) Send(ctx context.Context, n *Notification) error {
	client, err := m.connect()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return errors.New(err).
			Component(m.name).
			Category(errors.CategoryNotification).
			Context("operation", "encode_payload").
			Build()
	}

	token := client.Publish(m.cfg.Topic, mqttQoS, false, payload)

	timeout := m.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}
	if !token.WaitTimeout(timeout) {
		return errors.Newf("timeout publishing to topic %s", m.cfg.Topic).
			Component(m.name).
			Category(errors.CategoryTimeout).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component(m.name).
			Category(errors.CategoryNetwork).
			Context("topic", m.cfg.Topic).
			Build()
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTTProvider) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
	}
}
