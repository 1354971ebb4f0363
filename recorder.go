package shiftio

import (
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

const defaultMeasurement = "shiftio_state"

type InfluxConfig struct {
	Host         string `json:"host" yaml:"host"`
	Token        string `json:"token" yaml:"token"`
	Organization string `json:"organization" yaml:"organization"`
	Bucket       string `json:"bucket" yaml:"bucket"`
	Measurement  string `json:"measurement" yaml:"measurement"`
}

// Recorder writes every state change as a point. Writes are batched by the
// client and never block the tick.
type Recorder struct {
	client      influxdb2.Client
	writeApi    api.WriteAPI
	measurement string
	device      string
	logger      *log.Logger

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewRecorder(cfg InfluxConfig, device string) *Recorder {
	measurement := cfg.Measurement
	if len(measurement) == 0 {
		measurement = defaultMeasurement
	}

	client := influxdb2.NewClientWithOptions(cfg.Host, cfg.Token, influxdb2.DefaultOptions().SetBatchSize(50))
	rec := &Recorder{
		client:      client,
		writeApi:    client.WriteAPI(cfg.Organization, cfg.Bucket),
		measurement: measurement,
		device:      device,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "influx: ",
			Level:  log.GetLevel(),
		}),
	}

	errs := rec.writeApi.Errors()
	rec.wg.Add(1)
	go func() {
		defer rec.wg.Done()
		for err := range errs {
			rec.logger.Warn("write failed", "err", err)
		}
	}()

	return rec
}

func (rec *Recorder) StateChanged(name string, kind Kind, state bool) {
	tags := map[string]string{
		"line": name,
		"kind": string(kind),
	}
	if len(rec.device) > 0 {
		tags["device"] = rec.device
	}

	rec.writeApi.WritePoint(influxdb2.NewPoint(rec.measurement, tags, map[string]interface{}{"state": state}, time.Now()))
}

// Close flushes pending points and stops the client.
func (rec *Recorder) Close() {
	rec.closeOnce.Do(func() {
		rec.writeApi.Flush()
		rec.client.Close()
		rec.wg.Wait()
	})
}
