package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LeoCommon/odometer/pkg/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	publishTimeout    = 5 * time.Second
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250
)

var ErrPublishTimeout = errors.New("publish not acknowledged in time")

type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	Retained bool
	Name     string
}

// Publisher sends reports to an MQTT broker. Every process run gets its own
// session id so consumers can tell restarts apart.
type Publisher struct {
	client  mqtt.Client
	opts    Options
	session uuid.UUID
}

func init() {
	mqtt.ERROR = zapPrinter{log.Error}
	mqtt.CRITICAL = zapPrinter{log.Error}
	mqtt.WARN = zapPrinter{log.Warn}
}

// zapPrinter satisfies the paho logger interface
type zapPrinter struct {
	logf func(message string, fields ...zap.Field)
}

func (z zapPrinter) Println(v ...interface{}) {
	z.logf(strings.TrimSuffix(fmt.Sprintln(v...), "\n"), zap.String("component", "mqtt"))
}

func (z zapPrinter) Printf(format string, v ...interface{}) {
	z.logf(fmt.Sprintf(format, v...), zap.String("component", "mqtt"))
}

func clientOptions(o Options) *mqtt.ClientOptions {
	clientID := o.ClientID
	if clientID == "" {
		clientID = "odometer-" + o.Name
	}

	return mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(clientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Info("connected to telemetry broker", zap.String("broker", o.Broker))
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("lost telemetry broker connection", zap.Error(err))
		})
}

// Connect dials the broker. With connect retry enabled the client keeps trying
// in the background, so an unreachable broker is not fatal here.
func Connect(o Options) (*Publisher, error) {
	client := mqtt.NewClient(clientOptions(o))

	token := client.Connect()
	if token.WaitTimeout(connectTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("connecting to %s: %w", o.Broker, token.Error())
	}

	return NewPublisher(client, o), nil
}

func NewPublisher(client mqtt.Client, o Options) *Publisher {
	return &Publisher{client: client, opts: o, session: uuid.New()}
}

func (p *Publisher) Session() uuid.UUID {
	return p.session
}

func (p *Publisher) Publish(r Report) error {
	r.Session = p.session.String()
	r.Name = p.opts.Name

	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.opts.Topic, p.opts.QoS, p.opts.Retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return ErrPublishTimeout
	}
	return token.Error()
}

// Run publishes a report built from the current state every interval until ctx ends.
// Publish failures are logged and do not stop the loop.
func (p *Publisher) Run(ctx context.Context, interval time.Duration, state func() State) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Publish(BuildReport(state())); err != nil {
				log.Warn("failed to publish telemetry", zap.String("topic", p.opts.Topic), zap.Error(err))
			}
		}
	}
}

func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesce)
}
