// Package telemetry mirrors the robot's displayed pose and the user's plan requests to an MQTT
// broker. Telemetry is optional: a nil *Publisher is valid and publishes nothing.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rob102-staff/nav-app/models"
)

// Logf is the package diagnostic logger. Tests may replace it to capture or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// ErrNotConnected is returned while the broker connection is down.
var ErrNotConnected = errors.New("mqtt client not connected")

const (
	publishWait = 2 * time.Second
	connectWait = 5 * time.Second
)

// Config selects the broker. An empty Broker disables telemetry.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

// Client is the subset of mqtt.Client the publisher uses.
type Client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// PoseMessage is published, retained, to {prefix}/pose on every robot move.
type PoseMessage struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Theta     float64 `json:"theta"`
	Row       int     `json:"row"`
	Col       int     `json:"col"`
	Timestamp int64   `json:"timestamp"`
}

// PlanMessage is published to {prefix}/plan for every plan request sent to the backend.
type PlanMessage struct {
	MapName   string `json:"map_name"`
	Start     string `json:"start"`
	Goal      string `json:"goal"`
	Algo      string `json:"algo"`
	Timestamp int64  `json:"timestamp"`
}

// Publisher writes telemetry messages under a topic prefix.
type Publisher struct {
	client Client
	prefix string
	qos    byte
	now    func() time.Time
}

// NewPublisher wraps an already configured client.
func NewPublisher(client Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = "navapp"
	}
	return &Publisher{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Connect builds an auto-reconnecting paho client for cfg. It returns a nil Publisher when
// no broker is configured. An unreachable broker is not an error: paho keeps retrying and
// publishes fail with ErrNotConnected until it succeeds.
func Connect(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, nil
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "nav-app"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		Logf("telemetry: connected to %s", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		Logf("telemetry: connection to %s lost: %v", cfg.Broker, err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.WaitTimeout(connectWait) && token.Error() != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Broker, token.Error())
	}
	return NewPublisher(client, cfg.TopicPrefix), nil
}

// PoseTopic is where poses are published.
func (p *Publisher) PoseTopic() string {
	return p.prefix + "/pose"
}

// PlanTopic is where plan requests are published.
func (p *Publisher) PlanTopic() string {
	return p.prefix + "/plan"
}

// PublishPose publishes the robot's pose and the cell it is over.
func (p *Publisher) PublishPose(pose models.Pose, cell models.CellIndex) error {
	if p == nil {
		return nil
	}
	return p.publish(p.PoseTopic(), true, PoseMessage{
		X:         pose.X,
		Y:         pose.Y,
		Theta:     pose.Theta,
		Row:       cell.Row,
		Col:       cell.Col,
		Timestamp: p.now().Unix(),
	})
}

// PublishPlan publishes a plan request. The message's timestamp is filled in.
func (p *Publisher) PublishPlan(msg PlanMessage) error {
	if p == nil {
		return nil
	}
	msg.Timestamp = p.now().Unix()
	return p.publish(p.PlanTopic(), false, msg)
}

func (p *Publisher) publish(topic string, retain bool, msg interface{}) error {
	if p.client == nil || !p.client.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", topic, err)
	}

	token := p.client.Publish(topic, p.qos, retain, payload)
	if token.WaitTimeout(publishWait) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p == nil || p.client == nil {
		return
	}
	p.client.Disconnect(250)
}
