// Package dummy serves a local target with predictable latency and status
// behaviour for trying ccload out.
package dummy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"ccload/internal/logging"
)

type ServerConfig struct {
	Host string
	Port int
	// Delay scales the latency of the timed endpoints. Nil keeps the defaults.
	Delay func(time.Duration) time.Duration
}

// Server is a running dummy target.
type Server struct {
	URL string

	srv *http.Server
	log *zap.SugaredLogger
}

// Handler builds the router of the dummy target.
func Handler(cfg ServerConfig) http.Handler {
	sleep := func(d time.Duration) {
		if cfg.Delay != nil {
			d = cfg.Delay(d)
		}
		time.Sleep(d)
	}

	r := mux.NewRouter()

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Hello from GET!"})
	}).Methods(http.MethodGet)

	// POST and PUT echo the body back.
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		var data any
		if len(body) > 0 && json.Unmarshal(body, &data) != nil {
			data = string(body)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Hello from " + r.Method + "!",
			"data":    data,
		})
	}).Methods(http.MethodPost, http.MethodPut)

	// 10-50ms
	r.HandleFunc("/fast", func(w http.ResponseWriter, r *http.Request) {
		sleep(time.Duration(rand.Intn(40)+10) * time.Millisecond)
		w.Write([]byte("Fast response"))
	})

	// 100-300ms
	r.HandleFunc("/medium", func(w http.ResponseWriter, r *http.Request) {
		sleep(time.Duration(rand.Intn(200)+100) * time.Millisecond)
		w.Write([]byte("Medium response"))
	})

	// 1s-2s
	r.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		sleep(time.Duration(rand.Intn(1000)+1000) * time.Millisecond)
		w.Write([]byte("Slow response"))
	})

	// Usually fast, 5% of requests take 2s. P99 suffers, P50 does not.
	r.HandleFunc("/spike", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float32() < 0.05 {
			sleep(2 * time.Second)
		} else {
			sleep(20 * time.Millisecond)
		}
		w.Write([]byte("Spikey response"))
	})

	// 20% 500, 20% 429, the rest 200.
	r.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		rnd := rand.Float32()
		switch {
		case rnd < 0.2:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("500 Internal Server Error"))
		case rnd < 0.4:
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("429 Too Many Requests"))
		default:
			w.Write([]byte("OK"))
		}
	})

	r.HandleFunc("/status/{code:[0-9]{3}}", func(w http.ResponseWriter, r *http.Request) {
		code, _ := strconv.Atoi(mux.Vars(r)["code"])
		if code < 100 || code > 599 {
			code = http.StatusBadRequest
		}
		w.WriteHeader(code)
		fmt.Fprintf(w, "%d %s", code, http.StatusText(code))
	})

	return r
}

// Start listens on cfg.Host:cfg.Port and serves in the background. A zero
// port picks a free one.
func Start(cfg ServerConfig, logger *zap.SugaredLogger) (*Server, error) {
	log := logging.OrNop(logger)

	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, err
	}

	s := &Server{
		URL: "http://" + ln.Addr().String(),
		srv: &http.Server{Handler: Handler(cfg), ReadHeaderTimeout: 10 * time.Second},
		log: log,
	}
	log.Infow("dummy server running", "url", s.URL,
		"endpoints", []string{"/", "/fast", "/medium", "/slow", "/spike", "/error", "/status/{code}"})

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("dummy server failed", "error", err)
		}
	}()
	return s, nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
