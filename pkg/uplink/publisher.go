package uplink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

const (
	mqttTimeout     = time.Second
	disconnectQuiet = 250
	topicFormat     = "ems/%s/report"
	statusSuffix    = "/status"

	DefaultInterval = time.Minute
)

var ErrNotConnected = errors.New("mqtt client is not connected")

type Config struct {
	Broker   string        `json:"broker,omitempty"`
	ClientID string        `json:"clientId,omitempty"`
	Interval time.Duration `json:"interval,omitempty"`
}

// ReportFunc produces the document to publish.
type ReportFunc func(ctx context.Context) (interface{}, error)

func Topic(collectorSerial string) string {
	return fmt.Sprintf(topicFormat, collectorSerial)
}

// Connect opens an mqtt session that announces online/offline on the status
// topic of the collector.
func Connect(cfg Config, collectorSerial string) (mqtt.Client, error) {
	statusTopic := Topic(collectorSerial) + statusSuffix
	clientID := cfg.ClientID
	if len(clientID) == 0 {
		clientID = "ems-gateway-" + collectorSerial
	}
	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(clientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetWill(statusTopic, "offline", 1, true)
	opts.OnConnect = func(client mqtt.Client) {
		klog.V(1).InfoS("MQTT connected", "broker", cfg.Broker)
		client.Publish(statusTopic, 1, true, "online").WaitTimeout(mqttTimeout)
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		klog.V(1).InfoS("MQTT connection lost", "broker", cfg.Broker, "err", err)
	}

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "connect to %s", cfg.Broker)
	}
	return c, nil
}

// Publisher pushes the realtime report to the cloud broker periodically.
type Publisher struct {
	client   mqtt.Client
	topic    string
	interval time.Duration
	report   ReportFunc
}

func NewPublisher(client mqtt.Client, collectorSerial string, interval time.Duration, report ReportFunc) *Publisher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Publisher{
		client:   client,
		topic:    Topic(collectorSerial),
		interval: interval,
		report:   report,
	}
}

// Run publishes every interval until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	klog.V(1).InfoS("Uplink publisher started", "topic", p.topic, "interval", p.interval)
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		if err := p.PublishOnce(ctx); err != nil {
			klog.V(2).InfoS("Failed to publish report", "topic", p.topic, "err", err)
		}
	}, p.interval)
}

func (p *Publisher) PublishOnce(ctx context.Context) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	doc, err := p.report(ctx)
	if err != nil {
		return errors.Wrap(err, "assemble report")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "marshal report")
	}
	token := p.client.Publish(p.topic, 1, false, payload)
	if !token.WaitTimeout(mqttTimeout) {
		return errors.Errorf("publish to %s timed out", p.topic)
	}
	if err = token.Error(); err != nil {
		return err
	}
	klog.V(5).InfoS("Succeed to publish MQTT", "topic", p.topic, "bytes", len(payload))
	return nil
}

func (p *Publisher) Close(context.Context) error {
	p.client.Disconnect(disconnectQuiet)
	return nil
}
