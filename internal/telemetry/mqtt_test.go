package telemetry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tederis/ase2json/internal/ase"
	"github.com/tederis/ase2json/internal/projector"
)

type token struct{ err error }

func (t *token) Wait() bool                     { return true }
func (t *token) WaitTimeout(time.Duration) bool { return true }
func (t *token) Error() error                   { return t.err }

func (t *token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type client struct {
	mqtt.Client
	connected bool
	err       error
	sent      []published
}

func (c *client) IsConnected() bool { return c.connected }

func (c *client) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return &token{err: c.err}
}

func document() *projector.Document {
	return projector.Build(&ase.Result{
		Revision: ase.RevisionExtended,
		Declared: 2,
		Servers: []ase.Server{
			{ServerName: "a", PlayersCount: 3},
			{ServerName: "b", PlayersCount: 4},
		},
	}, projector.Options{})
}

func TestPublish(t *testing.T) {
	c := &client{connected: true}
	p := &Publisher{client: c, topic: "ase/summary"}

	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, p.Publish(document(), at))
	require.Len(t, c.sent, 1)

	msg := c.sent[0]
	assert.Equal(t, "ase/summary", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retained)
	assert.JSONEq(t, `{
		"timestamp": "2026-03-04T05:06:07Z",
		"revision": "extended",
		"summary": {"serversCount": 2, "playersCount": 7},
		"truncated": false
	}`, string(msg.payload))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &decoded))
	assert.NotContains(t, decoded["summary"], "servers")
}

func TestPublishErrors(t *testing.T) {
	c := &client{}
	p := &Publisher{client: c, topic: "t"}
	assert.Error(t, p.Publish(document(), time.Now()))
	assert.Empty(t, c.sent)

	c.connected = true
	c.err = errors.New("broker rejected")
	assert.ErrorContains(t, p.Publish(document(), time.Now()), "broker rejected")
}
