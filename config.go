package shiftio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	EnvMqttBroker   = "SHIFTIO_MQTT_BROKER"
	EnvMqttUsername = "SHIFTIO_MQTT_USERNAME"
	EnvMqttPassword = "SHIFTIO_MQTT_PASSWORD"
	EnvInfluxToken  = "SHIFTIO_INFLUX_TOKEN"
	EnvHttpToken    = "SHIFTIO_HTTP_TOKEN"
	EnvHomeKitPin   = "SHIFTIO_HOMEKIT_PIN"
)

// LoadEnvFiles reads dotenv files into the process environment. Missing
// files are skipped, variables already set win.
func LoadEnvFiles(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			continue
		}
		err := godotenv.Load(file)
		if err != nil {
			return errors.Wrapf(err, "failed to load env file %s", file)
		}
	}
	return nil
}

// ParseConfig decodes json or yaml, picked by the file extension.
func ParseConfig(name string, buf []byte) (sk *ShiftIO, err error) {
	sk = &ShiftIO{}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(buf, sk)
	default:
		err = json.Unmarshal(buf, sk)
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to decode config %s", name)
		return
	}

	sk.applyEnv()
	return
}

func LoadConfig(path string) (*ShiftIO, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	return ParseConfig(path, buf)
}

func (sk *ShiftIO) applyEnv() {
	if broker, ok := os.LookupEnv(EnvMqttBroker); ok {
		if sk.Mqtt == nil {
			sk.Mqtt = &MqttConfig{}
		}
		sk.Mqtt.Broker = broker
	}
	if sk.Mqtt != nil {
		if user, ok := os.LookupEnv(EnvMqttUsername); ok {
			sk.Mqtt.Username = user
		}
		if pass, ok := os.LookupEnv(EnvMqttPassword); ok {
			sk.Mqtt.Password = pass
		}
	}
	if token, ok := os.LookupEnv(EnvInfluxToken); ok && sk.Influx != nil {
		sk.Influx.Token = token
	}
	if token, ok := os.LookupEnv(EnvHttpToken); ok && sk.Http != nil {
		sk.Http.Token = token
	}
	if pin, ok := os.LookupEnv(EnvHomeKitPin); ok {
		if sk.HomeKit == nil {
			sk.HomeKit = &HomeKitConfig{}
		}
		sk.HomeKit.Pin = pin
	}
}
