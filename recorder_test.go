package shiftio

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type influxSink struct {
	lock   sync.Mutex
	bodies []string
	query  []string
}

func (is *influxSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	is.lock.Lock()
	is.bodies = append(is.bodies, string(body))
	is.query = append(is.query, r.URL.RawQuery)
	is.lock.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func TestRecorderWritesStateChanges(t *testing.T) {
	sink := &influxSink{}
	server := httptest.NewServer(sink)
	defer server.Close()

	rec := NewRecorder(InfluxConfig{Host: server.URL, Token: "t", Organization: "home", Bucket: "io"}, "hall")
	rec.StateChanged("lamp", KindOutput, true)
	rec.StateChanged("door", KindInput, false)
	rec.Close()
	rec.Close()

	sink.lock.Lock()
	defer sink.lock.Unlock()

	require.NotEmpty(t, sink.bodies)
	assert.Contains(t, sink.query[0], "bucket=io")
	assert.Contains(t, sink.query[0], "org=home")

	all := ""
	for _, b := range sink.bodies {
		all += b
	}
	assert.Contains(t, all, "shiftio_state,device=hall,kind=output,line=lamp state=true")
	assert.Contains(t, all, "shiftio_state,device=hall,kind=input,line=door state=false")
}

func TestRecorderAsObserver(t *testing.T) {
	sink := &influxSink{}
	server := httptest.NewServer(sink)
	defer server.Close()

	sk := testConfig()
	sk.Influx = &InfluxConfig{Host: server.URL, Bucket: "io", Measurement: "relays"}
	f := newFixture(t, sk)

	f.sk.SetOutput("lamp", true)
	require.NoError(t, f.sk.Close())

	sink.lock.Lock()
	defer sink.lock.Unlock()
	require.NotEmpty(t, sink.bodies)
	assert.Contains(t, sink.bodies[0], "relays,device=hall,kind=output,line=lamp state=true")
}
