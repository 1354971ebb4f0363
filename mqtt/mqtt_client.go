package mqtt

import (
	"context"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/pkg/errors"
	"github.com/rs/xid"
)

const subscribeTimeoutSeconds = 15
const connectionTimeoutSeconds = 5
const publishTimeoutSeconds = 4
const outboxSize = 256
const defaultKeepAlive = 20

type Config struct {
	Broker    string `json:"broker" yaml:"broker"`
	ClientId  string `json:"clientId" yaml:"clientId"`
	Username  string `json:"username" yaml:"username"`
	Password  string `json:"password" yaml:"password"`
	KeepAlive uint16 `json:"keepAlive" yaml:"keepAlive"`
	QoS       byte   `json:"qos" yaml:"qos"`
}

type outgoing struct {
	topic     string
	payload   []byte
	subscribe bool
}

// MqttClient is a fire-and-forget bus on top of autopaho. Publish and Subscribe
// only queue the operation; a single worker sends them in order.
type MqttClient struct {
	config autopaho.ClientConfig
	qos    byte
	logger *log.Logger

	lock        sync.RWMutex
	conn        *autopaho.ConnectionManager
	onReconnect []func()
	onMessage   []func(topic string, payload []byte)

	outbox chan outgoing
	done   chan struct{}
	wg     sync.WaitGroup
}

func DefaultClientId() string {
	return "shiftio-" + xid.New().String()
}

func NewMqttClient(cfg Config) (mc *MqttClient, err error) {
	addr, err := url.Parse(cfg.Broker)
	if err != nil {
		err = errors.Wrapf(err, "failed to parse broker url %s", cfg.Broker)
		return
	}

	clientId := cfg.ClientId
	if len(clientId) == 0 {
		clientId = DefaultClientId()
	}
	keepAlive := cfg.KeepAlive
	if keepAlive == 0 {
		keepAlive = defaultKeepAlive
	}

	mc = &MqttClient{
		qos: cfg.QoS,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "MqttClient 🐰: ",
			Level:  log.GetLevel(),
		}),
		outbox: make(chan outgoing, outboxSize),
		done:   make(chan struct{}),
	}

	mc.config = autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{addr},
		KeepAlive:                     keepAlive,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		ConnectUsername:               cfg.Username,
		ConnectPassword:               []byte(cfg.Password),
		OnConnectionUp:                mc.onConnUp,
		OnConnectError:                mc.onConnError,
		ClientConfig: paho.ClientConfig{
			ClientID:           clientId,
			OnClientError:      mc.onConnError,
			OnServerDisconnect: mc.onSrvDisconnect,
			OnPublishReceived:  []func(paho.PublishReceived) (bool, error){mc.onPublishRecv},
		},
	}

	return
}

func (mc *MqttClient) ClientId() string {
	return mc.config.ClientConfig.ClientID
}

// OnReconnect registers a hook called after every (re)connection.
func (mc *MqttClient) OnReconnect(hook func()) {
	mc.lock.Lock()
	defer mc.lock.Unlock()

	mc.onReconnect = append(mc.onReconnect, hook)
}

// OnMessage registers a hook called for every inbound publish.
func (mc *MqttClient) OnMessage(hook func(topic string, payload []byte)) {
	mc.lock.Lock()
	defer mc.lock.Unlock()

	mc.onMessage = append(mc.onMessage, hook)
}

func (mc *MqttClient) enqueue(op outgoing) error {
	select {
	case <-mc.done:
		return errors.New("mqtt client closed")
	default:
	}

	select {
	case mc.outbox <- op:
		return nil
	default:
		return errors.Errorf("mqtt outbox full, dropping message for %s", op.topic)
	}
}

func (mc *MqttClient) Publish(topic string, payload []byte) error {
	return mc.enqueue(outgoing{topic: topic, payload: payload})
}

func (mc *MqttClient) Subscribe(topic string) error {
	return mc.enqueue(outgoing{topic: topic, subscribe: true})
}

func (mc *MqttClient) connection() *autopaho.ConnectionManager {
	mc.lock.RLock()
	defer mc.lock.RUnlock()

	return mc.conn
}

func (mc *MqttClient) send(op outgoing) {
	cm := mc.connection()
	if cm == nil {
		mc.logger.Warn("not connected, dropping", "topic", op.topic)
		return
	}

	if op.subscribe {
		ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeoutSeconds*time.Second)
		defer cancel()

		_, err := cm.Subscribe(ctx, &paho.Subscribe{
			Subscriptions: []paho.SubscribeOptions{{Topic: op.topic, QoS: mc.qos}},
		})
		if err != nil {
			mc.logger.Error("Failed to subscribe", "topic", op.topic, "err", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeoutSeconds*time.Second)
	defer cancel()

	_, err := cm.Publish(ctx, &paho.Publish{
		Topic:   op.topic,
		QoS:     mc.qos,
		Payload: op.payload,
	})
	if err != nil {
		mc.logger.Error("Failed to publish", "topic", op.topic, "err", err)
	}
}

func (mc *MqttClient) worker() {
	defer mc.wg.Done()

	for {
		select {
		case <-mc.done:
			return
		case op := <-mc.outbox:
			mc.send(op)
		}
	}
}

func (mc *MqttClient) onConnUp(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
	mc.logger.Info("Connected to MQTT broker")

	mc.lock.Lock()
	mc.conn = cm
	hooks := append([]func(){}, mc.onReconnect...)
	mc.lock.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

func (mc *MqttClient) onConnError(err error) {
	mc.logger.Error("Received Mqtt connection error", "err", err)
}

func (mc *MqttClient) onSrvDisconnect(d *paho.Disconnect) {
	mc.logger.Info("Disconnected from MQTT broker", "reason", d.ReasonCode)
}

func (mc *MqttClient) onPublishRecv(pr paho.PublishReceived) (bool, error) {
	mc.logger.Debug("received message", "topic", pr.Packet.Topic, "payload", string(pr.Packet.Payload))

	mc.lock.RLock()
	hooks := append([]func(string, []byte){}, mc.onMessage...)
	mc.lock.RUnlock()

	for _, hook := range hooks {
		hook(pr.Packet.Topic, pr.Packet.Payload)
	}
	return true, nil
}

// Connect starts the connection manager and waits for the first connection.
// Reconnects after that are handled in the background.
func (mc *MqttClient) Connect(ctx context.Context) (err error) {
	mc.wg.Add(1)
	go mc.worker()

	cm, err := autopaho.NewConnection(ctx, mc.config)
	if err != nil {
		return errors.Wrap(err, "failed to start mqtt connection")
	}

	awaitCtx, cancel := context.WithTimeout(ctx, connectionTimeoutSeconds*time.Second)
	defer cancel()

	err = cm.AwaitConnection(awaitCtx)
	if err != nil {
		return errors.Wrap(err, "mqtt broker not reachable")
	}

	mc.lock.Lock()
	mc.conn = cm
	mc.lock.Unlock()

	return nil
}

func (mc *MqttClient) Disconnect(ctx context.Context) (err error) {
	select {
	case <-mc.done:
	default:
		close(mc.done)
	}
	mc.wg.Wait()

	cm := mc.connection()
	if cm == nil {
		return nil
	}

	return cm.Disconnect(ctx)
}
