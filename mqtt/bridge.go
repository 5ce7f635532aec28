package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"agrodetect/config"
	"agrodetect/devices"
	"agrodetect/metrics"
	"agrodetect/models"

	"github.com/apex/log"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	qos            = 1
	deviceIDHolder = "{device_id}"
	tokenTimeout   = 10 * time.Second
)

// Bridge feeds ESP heartbeats from the broker into the registry and pushes enable/disable
// commands back to the devices.
type Bridge struct {
	client       paho.Client
	registry     *devices.Registry
	statusTopic  string
	controlTopic string
}

// NewBridge connects to the broker and subscribes to the status topic.
func NewBridge(cfg config.MQTTConfig, registry *devices.Registry) (*Bridge, error) {
	b := &Bridge{
		registry:     registry,
		statusTopic:  cfg.StatusTopic,
		controlTopic: cfg.ControlTopic,
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	})
	// resubscribe on every (re)connect
	opts.SetOnConnectHandler(func(c paho.Client) {
		log.Infof("Connected to MQTT broker %s", cfg.Broker)
		if err := b.subscribe(c); err != nil {
			log.WithError(err).Error("MQTT subscribe failed")
		}
	})

	b.client = paho.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(tokenTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}
	return b, nil
}

// Start forwards registry control changes to the devices.
func (b *Bridge) Start() {
	b.registry.OnControl(b.publishControl)
}

func (b *Bridge) subscribe(c paho.Client) error {
	token := c.Subscribe(b.statusTopic, qos, b.handleStatus)
	if token.WaitTimeout(tokenTimeout) && token.Error() != nil {
		return token.Error()
	}
	log.Infof("Subscribed to ESP status topic %s", b.statusTopic)
	return nil
}

func (b *Bridge) handleStatus(_ paho.Client, msg paho.Message) {
	hb, err := ParseHeartbeat(b.statusTopic, msg.Topic(), msg.Payload())
	if err != nil {
		log.WithError(err).WithField("topic", msg.Topic()).Warn("Dropping ESP status message")
		return
	}
	metrics.EspHeartbeatsTotal.WithLabelValues("mqtt").Inc()
	b.registry.Heartbeat(hb)
}

func (b *Bridge) publishControl(ctl models.EspControl) {
	payload, err := json.Marshal(ctl)
	if err != nil {
		log.WithError(err).Error("Failed to marshal ESP control")
		return
	}

	topic := ControlTopic(b.controlTopic, ctl.DeviceID)
	token := b.client.Publish(topic, qos, true, payload)
	go func() {
		if token.WaitTimeout(tokenTimeout) && token.Error() != nil {
			log.WithError(token.Error()).WithField("topic", topic).Warn("Failed to publish ESP control")
		}
	}()
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	b.client.Disconnect(250)
	log.Info("MQTT bridge closed")
}

// ParseHeartbeat decodes a status payload. When the payload carries no device_id it is
// taken from the topic segment matching the '+' wildcard of pattern.
func ParseHeartbeat(pattern, topic string, payload []byte) (models.Heartbeat, error) {
	var hb models.Heartbeat
	if err := json.Unmarshal(payload, &hb); err != nil {
		return hb, fmt.Errorf("invalid heartbeat payload: %w", err)
	}
	if hb.DeviceID == "" {
		hb.DeviceID = DeviceIDFromTopic(pattern, topic)
	}
	if hb.DeviceID == "" {
		return hb, fmt.Errorf("heartbeat on %s has no device_id", topic)
	}
	return hb, nil
}

// DeviceIDFromTopic returns the topic level that matches the first '+' of pattern.
func DeviceIDFromTopic(pattern, topic string) string {
	p := strings.Split(pattern, "/")
	t := strings.Split(topic, "/")
	if len(p) != len(t) {
		return ""
	}
	for i, level := range p {
		if level == "+" {
			return t[i]
		}
	}
	return ""
}

// ControlTopic fills the {device_id} placeholder of pattern.
func ControlTopic(pattern, deviceID string) string {
	return strings.ReplaceAll(pattern, deviceIDHolder, deviceID)
}
