package shiftio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonConfig = `{
	"name": "garage",
	"chain": {"outModules": 1, "inModules": 2, "lineDriver": "gpio", "outLatchPin": 17, "clockPin": 27, "inLatchActiveLow": true},
	"inputs": [{"name": "gate", "module": 1, "bit": 4, "debounce": "80ms", "homekit": "contact"}],
	"outputs": [{"name": "light", "module": 0, "bit": 0, "invert": true, "homekit": "light"}],
	"mqtt": {"broker": "mqtt://10.0.0.2:1883", "topicPrefix": "home/garage/"},
	"http": {"address": ":8080", "rateLimit": 2.5, "burst": 3}
}`

const yamlConfig = `
name: garage
chain:
  outModules: 1
  inModules: 2
  lineDriver: mcpio
  mcpBus: 1
  mcpDevice: 2
inputs:
  - name: gate
    module: 1
    bit: 4
    debounce: 80ms
outputs:
  - name: light
    module: 0
    bit: 0
    invert: true
mqtt:
  broker: mqtt://10.0.0.2:1883
  clientId: garage-pi
  topicPrefix: home/garage/
homekit:
  pin: "12344321"
influx:
  host: http://10.0.0.3:8086
  bucket: home
`

func TestParseJsonConfig(t *testing.T) {
	sk, err := ParseConfig("config.json", []byte(jsonConfig))
	require.NoError(t, err)

	assert.Equal(t, "garage", sk.Name)
	assert.Equal(t, ChainConfig{OutModules: 1, InModules: 2, LineDriver: "gpio", OutLatchPin: 17, ClockPin: 27, InLatchActiveLow: true}, sk.Chain)
	require.Len(t, sk.Inputs, 1)
	assert.Equal(t, "80ms", sk.Inputs[0].Debounce)
	assert.Equal(t, uint8(4), sk.Inputs[0].Bit)
	require.Len(t, sk.Outputs, 1)
	assert.True(t, sk.Outputs[0].Invert)
	assert.Equal(t, "light", sk.Outputs[0].Homekit)
	assert.Equal(t, "mqtt://10.0.0.2:1883", sk.Mqtt.Broker)
	assert.Equal(t, "home/garage/", sk.Mqtt.TopicPrefix)
	assert.Equal(t, 2.5, sk.Http.RateLimit)
	assert.False(t, sk.HomeKit.Enabled())
}

func TestParseYamlConfig(t *testing.T) {
	sk, err := ParseConfig("config.yml", []byte(yamlConfig))
	require.NoError(t, err)

	assert.Equal(t, "mcpio", sk.Chain.LineDriver)
	assert.Equal(t, uint8(2), sk.Chain.McpDevice)
	assert.Equal(t, "garage-pi", sk.Mqtt.ClientId)
	assert.Equal(t, "home/garage/", sk.Mqtt.TopicPrefix)
	assert.True(t, sk.HomeKit.Enabled())
	assert.Equal(t, "home", sk.Influx.Bucket)
	assert.Nil(t, sk.Http)
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig("config.json", []byte("{"))
	assert.Error(t, err)

	_, err = ParseConfig("config.yaml", []byte("chain: [1, 2"))
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvMqttUsername, "ha")
	t.Setenv(EnvMqttPassword, "secret")
	t.Setenv(EnvInfluxToken, "influx-token")
	t.Setenv(EnvHomeKitPin, "87654321")

	sk, err := ParseConfig("config.yaml", []byte(yamlConfig))
	require.NoError(t, err)

	assert.Equal(t, "ha", sk.Mqtt.Username)
	assert.Equal(t, "secret", sk.Mqtt.Password)
	assert.Equal(t, "influx-token", sk.Influx.Token)
	assert.Equal(t, "87654321", sk.HomeKit.Pin)
}

func TestEnvBrokerWithoutMqttSection(t *testing.T) {
	t.Setenv(EnvMqttBroker, "mqtt://broker:1883")

	sk, err := ParseConfig("config.json", []byte(`{"name": "x"}`))
	require.NoError(t, err)

	require.NotNil(t, sk.Mqtt)
	assert.Equal(t, "mqtt://broker:1883", sk.Mqtt.Broker)
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(EnvHttpToken+"=from-file\n"), 0o600))
	t.Setenv(EnvHttpToken, "")
	os.Unsetenv(EnvHttpToken)

	require.NoError(t, LoadEnvFiles(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "from-file", os.Getenv(EnvHttpToken))

	configFile := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(configFile, []byte(jsonConfig), 0o600))
	sk, err := LoadConfig(configFile)
	require.NoError(t, err)
	assert.Equal(t, "from-file", sk.Http.Token)
}
