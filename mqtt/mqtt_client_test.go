package mqtt

import (
	"context"
	"strings"
	"testing"

	"github.com/eclipse/paho.golang/paho"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewMqttClient(t *testing.T) {
	mc, err := NewMqttClient(Config{Broker: "mqtt://127.0.0.1:1883"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(mc.ClientId(), "shiftio-"))
	assert.Equal(t, uint16(defaultKeepAlive), mc.config.KeepAlive)

	mc, err = NewMqttClient(Config{Broker: "mqtt://127.0.0.1:1883", ClientId: "hall", KeepAlive: 5})
	require.NoError(t, err)
	assert.Equal(t, "hall", mc.ClientId())
	assert.Equal(t, uint16(5), mc.config.KeepAlive)

	_, err = NewMqttClient(Config{Broker: "://bad url"})
	assert.Error(t, err)
}

func TestOutboxKeepsOrderAndDropsWhenFull(t *testing.T) {
	mc, err := NewMqttClient(Config{Broker: "mqtt://127.0.0.1:1883"})
	require.NoError(t, err)

	require.NoError(t, mc.Subscribe("a/commands"))
	require.NoError(t, mc.Publish("a/state", []byte("ON")))

	first := <-mc.outbox
	second := <-mc.outbox
	assert.Equal(t, outgoing{topic: "a/commands", subscribe: true}, first)
	assert.Equal(t, outgoing{topic: "a/state", payload: []byte("ON")}, second)

	for i := 0; i < outboxSize; i++ {
		require.NoError(t, mc.Publish("a/state", []byte("OFF")))
	}
	assert.Error(t, mc.Publish("a/state", []byte("OFF")))
}

func TestClosedClientRejects(t *testing.T) {
	mc, err := NewMqttClient(Config{Broker: "mqtt://127.0.0.1:1883"})
	require.NoError(t, err)

	require.NoError(t, mc.Disconnect(context.Background()))
	assert.Error(t, mc.Publish("a/state", []byte("ON")))
	assert.Error(t, mc.Subscribe("a/commands"))
	require.NoError(t, mc.Disconnect(context.Background()))
}

func TestHooks(t *testing.T) {
	mc, err := NewMqttClient(Config{Broker: "mqtt://127.0.0.1:1883"})
	require.NoError(t, err)

	reconnects := 0
	mc.OnReconnect(func() { reconnects++ })

	var got []string
	mc.OnMessage(func(topic string, payload []byte) {
		got = append(got, topic+"="+string(payload))
	})

	mc.onConnUp(nil, &paho.Connack{})
	assert.Equal(t, 1, reconnects)

	handled, err := mc.onPublishRecv(paho.PublishReceived{Packet: &paho.Publish{Topic: "a/commands", Payload: []byte("ON")}})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, []string{"a/commands=ON"}, got)
}
