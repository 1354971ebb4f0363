package shiftio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hubertat/go-ethereum/rpc"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"
)

const httpTimeoutsMs = 3000
const TokenHeader = "shiftio-token"

type HttpConfig struct {
	Address string `json:"address" yaml:"address"`
	Token   string `json:"token" yaml:"token"`

	// RateLimit caps mutating requests per second, zero disables the limit.
	RateLimit float64 `json:"rateLimit" yaml:"rateLimit"`
	Burst     int     `json:"burst" yaml:"burst"`
}

// IoService is exposed over JSON-RPC as io_list, io_get and io_set.
// Params are positional and always an array, io_get takes ["name"]; the
// go-ethereum client of this fork sends a single argument unwrapped, so
// call io_get with a raw request body.
type IoService struct {
	sk *ShiftIO
}

func (ios *IoService) List() []LineStatus {
	return ios.sk.List()
}

func (ios *IoService) Get(name string) (LineStatus, error) {
	return ios.sk.State(name)
}

func (ios *IoService) Set(name string, state bool) (LineStatus, error) {
	return ios.sk.SetOutput(name, state)
}

func writeJson(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeErr(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func parseState(value string) (state bool, ok bool) {
	switch strings.ToLower(value) {
	case "on", "true", "1":
		return true, true
	case "off", "false", "0":
		return false, true
	}
	return false, false
}

func (sk *ShiftIO) handleList(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJson(w, sk.List())
}

func (sk *ShiftIO) handleGet(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	st, err := sk.State(p.ByName("name"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJson(w, st)
}

func (sk *ShiftIO) handleSet(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	state, ok := parseState(p.ByName("state"))
	if !ok {
		http.Error(w, "unrecognized state, use on or off", http.StatusBadRequest)
		return
	}

	st, err := sk.SetOutput(p.ByName("name"), state)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJson(w, st)
}

func limited(limiter *rate.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func limitedHandle(limiter *rate.Limiter, next httprouter.Handle) httprouter.Handle {
	if limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if !limiter.Allow() {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next(w, r, p)
	}
}

func withToken(token string, next http.Handler) http.Handler {
	if len(token) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics" && r.Header.Get(TokenHeader) != token {
			http.Error(w, "token mismatch", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (sk *ShiftIO) newRpcServer() (*rpc.Server, error) {
	server := rpc.NewServer()
	err := server.RegisterName("io", &IoService{sk: sk})
	if err != nil {
		server.Stop()
		return nil, err
	}
	return server, nil
}

// ApiHandler builds the HTTP surface: REST routes under /io, metrics,
// JSON-RPC on /rpc and the websocket state stream on /ws.
func (sk *ShiftIO) ApiHandler() (http.Handler, error) {
	cfg := HttpConfig{}
	if sk.Http != nil {
		cfg = *sk.Http
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	rpcServer, err := sk.newRpcServer()
	if err != nil {
		return nil, err
	}

	router := httprouter.New()
	router.GET("/io", sk.handleList)
	router.GET("/io/:name", sk.handleGet)
	router.POST("/io/:name/:state", limitedHandle(limiter, sk.handleSet))
	router.Handler(http.MethodGet, "/metrics", sk.metrics.Handler())
	router.Handler(http.MethodPost, "/rpc", limited(limiter, rpcServer))
	router.Handler(http.MethodGet, "/ws", sk.stream)

	return withToken(cfg.Token, router), nil
}

// StartApi serves the API until ctx is done.
func (sk *ShiftIO) StartApi(ctx context.Context) error {
	if sk.Http == nil || len(sk.Http.Address) == 0 {
		return errors.New("http address not configured")
	}

	handler, err := sk.ApiHandler()
	if err != nil {
		return err
	}

	httpTimeout := httpTimeoutsMs * time.Millisecond
	server := &http.Server{
		Addr:              sk.Http.Address,
		Handler:           handler,
		ReadTimeout:       httpTimeout,
		ReadHeaderTimeout: httpTimeout,
		WriteTimeout:      httpTimeout,
		IdleTimeout:       2 * httpTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpTimeout)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	sk.logger.Info("starting http api", "addr", sk.Http.Address)
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
