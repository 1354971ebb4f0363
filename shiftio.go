package shiftio

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/hubertat/shiftio/drivers"
	"github.com/hubertat/shiftio/mqtt"
	"github.com/hubertat/shiftio/shell"
)

const mockLineDriverName = "mock"
const defaultTopicRoot = "shiftio/"

type Kind string

const (
	KindInput  Kind = "input"
	KindOutput Kind = "output"
)

// Observer is told about every committed input change and every output write
// that changed the output.
type Observer interface {
	StateChanged(name string, kind Kind, state bool)
}

type ChainConfig struct {
	OutModules int    `json:"outModules" yaml:"outModules"`
	InModules  int    `json:"inModules" yaml:"inModules"`
	LineDriver string `json:"lineDriver" yaml:"lineDriver"`

	OutLatchPin      uint16 `json:"outLatchPin" yaml:"outLatchPin"`
	OutDataPin       uint16 `json:"outDataPin" yaml:"outDataPin"`
	InLatchPin       uint16 `json:"inLatchPin" yaml:"inLatchPin"`
	InDataPin        uint16 `json:"inDataPin" yaml:"inDataPin"`
	ClockPin         uint16 `json:"clockPin" yaml:"clockPin"`
	InLatchActiveLow bool   `json:"inLatchActiveLow" yaml:"inLatchActiveLow"`

	McpBus    uint8 `json:"mcpBus" yaml:"mcpBus"`
	McpDevice uint8 `json:"mcpDevice" yaml:"mcpDevice"`

	// Loopback wires input modules to output modules on the mock board.
	Loopback bool `json:"loopback" yaml:"loopback"`
}

type MqttConfig struct {
	mqtt.Config `yaml:",inline"`
	TopicPrefix string `json:"topicPrefix" yaml:"topicPrefix"`
}

type ShiftIO struct {
	Name string `json:"name" yaml:"name"`

	Chain   ChainConfig `json:"chain" yaml:"chain"`
	Inputs  []*Input    `json:"inputs" yaml:"inputs"`
	Outputs []*Output   `json:"outputs" yaml:"outputs"`

	Mqtt    *MqttConfig    `json:"mqtt" yaml:"mqtt"`
	HomeKit *HomeKitConfig `json:"homekit" yaml:"homekit"`
	Http    *HttpConfig    `json:"http" yaml:"http"`
	Influx  *InfluxConfig  `json:"influx" yaml:"influx"`

	lineDriver drivers.LineDriver
	board      *drivers.MockBoard
	chain      *drivers.ShiftChain
	router     *shell.Router
	bus        shell.Bus
	mqttClient *mqtt.MqttClient
	metrics    *Metrics
	recorder   *Recorder
	stream     *StreamHub
	observers  []Observer
	clock      clock.Clock
	logger     *log.Logger

	loopLock sync.Mutex
}

type Option func(*ShiftIO)

// WithBus replaces the MQTT bus, mostly for tests.
func WithBus(bus shell.Bus) Option {
	return func(sk *ShiftIO) {
		sk.bus = bus
	}
}

func WithClock(c clock.Clock) Option {
	return func(sk *ShiftIO) {
		sk.clock = c
	}
}

func WithObserver(o Observer) Option {
	return func(sk *ShiftIO) {
		sk.observers = append(sk.observers, o)
	}
}

type discardBus struct{}

func (discardBus) Publish(topic string, payload []byte) error {
	return nil
}

func (discardBus) Subscribe(topic string) error {
	return nil
}

// TopicRoot is the prefix every default line topic starts with.
func (sk *ShiftIO) TopicRoot() string {
	if sk.Mqtt != nil && len(sk.Mqtt.TopicPrefix) > 0 {
		return sk.Mqtt.TopicPrefix
	}
	if len(sk.Name) > 0 {
		return defaultTopicRoot + sk.Name + "/"
	}
	return defaultTopicRoot
}

func (sk *ShiftIO) validate() error {
	names := map[string]bool{}
	for _, in := range sk.Inputs {
		if len(in.Name) == 0 {
			return errors.New("input without name")
		}
		if names[strings.ToLower(in.Name)] {
			return errors.Errorf("duplicated io name %s", in.Name)
		}
		names[strings.ToLower(in.Name)] = true
		if int(in.Module) >= sk.Chain.InModules || in.Bit > 7 {
			return errors.Errorf("input %s: port %d.%d outside of %d input modules", in.Name, in.Module, in.Bit, sk.Chain.InModules)
		}
	}
	for _, out := range sk.Outputs {
		if len(out.Name) == 0 {
			return errors.New("output without name")
		}
		if names[strings.ToLower(out.Name)] {
			return errors.Errorf("duplicated io name %s", out.Name)
		}
		names[strings.ToLower(out.Name)] = true
		if int(out.Module) >= sk.Chain.OutModules || out.Bit > 7 {
			return errors.Errorf("output %s: port %d.%d outside of %d output modules", out.Name, out.Module, out.Bit, sk.Chain.OutModules)
		}
	}
	return nil
}

func (sk *ShiftIO) initLines(ctx context.Context) (lines drivers.ChainLines, err error) {
	cfg := sk.Chain
	if strings.EqualFold(cfg.LineDriver, mockLineDriverName) {
		sk.board = drivers.NewMockBoard(cfg.OutModules, cfg.InModules)
		sk.board.Loopback = cfg.Loopback
		return sk.board.Lines(), nil
	}

	driver, found := drivers.MapAllLineDrivers()[strings.ToLower(cfg.LineDriver)]
	if !found {
		err = errors.Errorf("unknown line driver %q", cfg.LineDriver)
		return
	}
	if mcp, isMcp := driver.(*drivers.McpIO); isMcp {
		mcp.BusNo = cfg.McpBus
		mcp.DevNo = cfg.McpDevice
	}

	err = driver.Setup(ctx)
	if err != nil {
		err = errors.Wrapf(err, "failed to setup %s driver", driver)
		return
	}
	sk.lineDriver = driver

	type wanted struct {
		line      *drivers.DigitalLine
		pin       uint16
		mode      drivers.LineMode
		activeLow bool
	}
	var needed []wanted
	if cfg.OutModules > 0 {
		needed = append(needed,
			wanted{&lines.OutLatch, cfg.OutLatchPin, drivers.LineModePushPull, false},
			wanted{&lines.OutData, cfg.OutDataPin, drivers.LineModePushPull, false},
		)
	}
	if cfg.InModules > 0 {
		needed = append(needed,
			wanted{&lines.InLatch, cfg.InLatchPin, drivers.LineModePushPull, cfg.InLatchActiveLow},
			wanted{&lines.InData, cfg.InDataPin, drivers.LineModePullUp, false},
		)
	}
	needed = append(needed, wanted{&lines.Clock, cfg.ClockPin, drivers.LineModePushPull, false})

	for _, w := range needed {
		*w.line, err = driver.Line(w.pin, w.mode, w.activeLow)
		if err != nil {
			err = errors.Wrapf(err, "failed to get line for pin %d", w.pin)
			return
		}
	}

	return
}

// Init builds the chain, the logical IOs and their shells. With MQTT configured
// the bus is created here but not connected, see ConnectMqtt.
func (sk *ShiftIO) Init(ctx context.Context, opts ...Option) (err error) {
	for _, opt := range opts {
		opt(sk)
	}
	if sk.clock == nil {
		sk.clock = clock.New()
	}
	sk.logger = log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "shiftio: ",
		Level:  log.GetLevel(),
	})

	err = sk.validate()
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	lines, err := sk.initLines(ctx)
	if err != nil {
		return
	}

	sk.chain, err = drivers.NewShiftChain(sk.Chain.OutModules, sk.Chain.InModules, lines)
	if err != nil {
		return errors.Wrap(err, "failed to create shift chain")
	}

	if sk.bus == nil {
		if sk.Mqtt != nil && len(sk.Mqtt.Broker) > 0 {
			if len(sk.Mqtt.ClientId) == 0 && len(sk.Name) > 0 {
				sk.Mqtt.ClientId = sk.Name
			}
			sk.mqttClient, err = mqtt.NewMqttClient(sk.Mqtt.Config)
			if err != nil {
				return errors.Wrap(err, "failed to create mqtt client")
			}
			sk.bus = sk.mqttClient
		} else {
			sk.bus = discardBus{}
		}
	}

	sk.metrics = NewMetrics()
	sk.stream = NewStreamHub(sk.List)
	sk.observers = append(sk.observers, sk.metrics, sk.stream)

	if sk.Influx != nil && len(sk.Influx.Host) > 0 {
		sk.recorder = NewRecorder(*sk.Influx, sk.Name)
		sk.observers = append(sk.observers, sk.recorder)
	}

	sk.router = shell.NewRouter()
	for _, out := range sk.Outputs {
		err = out.Init(sk.chain, sk.TopicRoot(), sk.bus, sk.notify)
		if err != nil {
			return errors.Wrapf(err, "failed to init output %s", out.Name)
		}
		err = sk.router.Add(out.shell)
		if err != nil {
			return err
		}
	}

	// latch the idle outputs and sample the inputs before their baselines are taken
	sk.chain.Refresh()

	for _, in := range sk.Inputs {
		err = in.Init(sk.chain, sk.TopicRoot(), sk.bus, sk.clock)
		if err != nil {
			return errors.Wrapf(err, "failed to init input %s", in.Name)
		}
		err = sk.router.Add(in.shell)
		if err != nil {
			return err
		}
	}

	return nil
}

func (sk *ShiftIO) notify(name string, kind Kind, state bool) {
	sk.logger.Debug("state changed", "name", name, "kind", kind, "state", state)
	for _, o := range sk.observers {
		o.StateChanged(name, kind, state)
	}
	if kind == KindInput {
		if in := sk.findInput(name); in != nil {
			in.syncHk(state)
		}
	}
}

// ConnectMqtt wires the bus hooks and connects. Inbound messages and
// reconnects run under the loop lock.
func (sk *ShiftIO) ConnectMqtt(ctx context.Context) error {
	if sk.mqttClient == nil {
		return errors.New("mqtt broker not set")
	}

	sk.mqttClient.OnReconnect(sk.Reconnect)
	sk.mqttClient.OnMessage(sk.HandleMessage)

	err := sk.mqttClient.Connect(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to connect to mqtt broker")
	}
	return nil
}

func (sk *ShiftIO) Reconnect() {
	sk.loopLock.Lock()
	defer sk.loopLock.Unlock()

	sk.logger.Info("resubscribing", "topics", sk.router.Topics())
	sk.router.Reconnect()
}

func (sk *ShiftIO) HandleMessage(topic string, payload []byte) {
	sk.loopLock.Lock()
	defer sk.loopLock.Unlock()

	sk.router.Dispatch(topic, payload)
}

// Tick runs one scheduler step: transfer the chain, then poll the inputs.
func (sk *ShiftIO) Tick() {
	sk.loopLock.Lock()
	defer sk.loopLock.Unlock()

	started := sk.clock.Now()
	sk.chain.Refresh()
	sk.metrics.ObserveRefresh(sk.clock.Since(started))

	for _, change := range sk.router.Poll() {
		sk.notify(change.Name, KindInput, change.State)
	}
}

func (sk *ShiftIO) StartTicker(ctx context.Context, interval time.Duration) {
	ticker := sk.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sk.Tick()
		}
	}
}

func (sk *ShiftIO) findInput(name string) *Input {
	for _, in := range sk.Inputs {
		if strings.EqualFold(in.Name, name) {
			return in
		}
	}
	return nil
}

func (sk *ShiftIO) findOutput(name string) *Output {
	for _, out := range sk.Outputs {
		if strings.EqualFold(out.Name, name) {
			return out
		}
	}
	return nil
}

type LineStatus struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Module   uint8  `json:"module"`
	Bit      uint8  `json:"bit"`
	Inverted bool   `json:"inverted"`
	State    bool   `json:"state"`
	Topic    string `json:"topic"`
}

var ErrNotFound = errors.New("io not found")

func (sk *ShiftIO) status(name string) (LineStatus, error) {
	if out := sk.findOutput(name); out != nil {
		return out.status(), nil
	}
	if in := sk.findInput(name); in != nil {
		return in.status(), nil
	}
	return LineStatus{}, errors.Wrap(ErrNotFound, name)
}

func (sk *ShiftIO) State(name string) (LineStatus, error) {
	sk.loopLock.Lock()
	defer sk.loopLock.Unlock()

	return sk.status(name)
}

func (sk *ShiftIO) List() (list []LineStatus) {
	sk.loopLock.Lock()
	defer sk.loopLock.Unlock()

	for _, in := range sk.Inputs {
		list = append(list, in.status())
	}
	for _, out := range sk.Outputs {
		list = append(list, out.status())
	}
	return
}

// SetOutput changes an output from outside the bus (HomeKit, HTTP) and
// publishes the new state.
func (sk *ShiftIO) SetOutput(name string, state bool) (LineStatus, error) {
	sk.loopLock.Lock()
	defer sk.loopLock.Unlock()

	out := sk.findOutput(name)
	if out == nil {
		return LineStatus{}, errors.Wrapf(ErrNotFound, "output %s", name)
	}

	out.Set(state)
	out.shell.Publish()
	return out.status(), nil
}

func (sk *ShiftIO) ShiftChain() *drivers.ShiftChain {
	return sk.chain
}

// Board returns the simulated board when running on the mock line driver.
func (sk *ShiftIO) Board() *drivers.MockBoard {
	return sk.board
}

func (sk *ShiftIO) Metrics() *Metrics {
	return sk.metrics
}

// Close drives every output to false, latches it and releases the hardware.
func (sk *ShiftIO) Close() error {
	if sk.chain != nil {
		sk.loopLock.Lock()
		for _, out := range sk.Outputs {
			if out.out != nil {
				out.Set(false)
			}
		}
		sk.chain.Refresh()
		sk.loopLock.Unlock()
	}

	return sk.release()
}

// CloseKeepOutputs releases the hardware and connections without touching
// the latched outputs, for one-shot reads of a running installation.
func (sk *ShiftIO) CloseKeepOutputs() error {
	return sk.release()
}

func (sk *ShiftIO) release() (err error) {
	if sk.mqttClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = stderrors.Join(err, sk.mqttClient.Disconnect(ctx))
	}
	if sk.recorder != nil {
		sk.recorder.Close()
	}
	if sk.stream != nil {
		sk.stream.Close()
	}
	if sk.lineDriver != nil {
		err = stderrors.Join(err, sk.lineDriver.Close())
	}

	return
}

func (sk *ShiftIO) PrintIoStatus(writer io.Writer) {
	fmt.Fprintln(writer)
	fmt.Fprintln(writer, "=== shift chain ===")
	fmt.Fprintf(writer, "| line driver: %s\n", sk.Chain.LineDriver)
	fmt.Fprintf(writer, "| modules: %d out, %d in (overlap %d)\n", sk.chain.OutModules(), sk.chain.InModules(), sk.chain.Overlap())
	fmt.Fprintf(writer, "| out buffer: % 08b\n", sk.chain.Outputs())
	fmt.Fprintf(writer, "| in buffer:  % 08b\n", sk.chain.Inputs())
	fmt.Fprintln(writer, "________")
	for _, st := range sk.List() {
		fmt.Fprintf(writer, "| %-6s %-20s %d.%d inverted=%-5v state=%-5v topic=%s\n", st.Kind, st.Name, st.Module, st.Bit, st.Inverted, st.State, st.Topic)
	}
	fmt.Fprintln(writer, "-----------------------------")
	fmt.Fprintln(writer)
}
