// Package telemetry publishes master server summaries to an MQTT broker.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
	"github.com/tederis/ase2json/internal/config"
	"github.com/tederis/ase2json/internal/projector"
	"github.com/tederis/ase2json/internal/vars"
)

const (
	qos            = 1
	publishTimeout = 10 * time.Second
	quiesceMillis  = 2000
)

// Message is the payload published after every poll.
type Message struct {
	Timestamp string              `json:"timestamp"`
	Revision  string              `json:"revision"`
	Summary   *projector.Document `json:"summary"`
	Truncated bool                `json:"truncated"`
}

// Publisher sends retained summary messages to one topic.
type Publisher struct {
	client mqtt.Client
	topic  string
}

// New creates a publisher for the configured broker. It does not connect.
func New(cfg config.MQTT) *Publisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)

	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID)
	} else {
		hostname, _ := os.Hostname()
		opts.SetClientID(fmt.Sprintf("%s-%s", vars.Name, hostname))
	}

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	return &Publisher{client: mqtt.NewClient(opts), topic: cfg.Topic}
}

// Connect dials the broker and waits for the handshake.
func (p *Publisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("MQTT connect: timed out after %s", publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT connect: %w", err)
	}

	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(quiesceMillis)
	log.Info().Msg("MQTT disconnected")
}

// Publish sends the summary counters of doc as a retained message.
func (p *Publisher) Publish(doc *projector.Document, at time.Time) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("MQTT publish to %s: not connected", p.topic)
	}

	data, err := json.Marshal(Message{
		Timestamp: at.UTC().Format(time.RFC3339),
		Revision:  doc.Revision.String(),
		Summary:   doc.Lighten(),
		Truncated: doc.Truncated,
	})
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, qos, true, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("MQTT publish to %s: timed out", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish to %s: %w", p.topic, err)
	}

	log.Debug().Str("topic", p.topic).Int("bytes", len(data)).Msg("Summary published")
	return nil
}
