package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	pkgerrors "github.com/pkg/errors"

	"github.com/nazeru/order-console-go/pkg/contracts"
	"github.com/nazeru/order-console-go/pkg/logging"
	"github.com/nazeru/order-console-go/pkg/metrics"
	"github.com/nazeru/order-console-go/pkg/receipt"
)

type cfg struct {
	Port     string `envconfig:"PORT" default:"8090"`
	SpoolDir string `envconfig:"PRINT_SPOOL_DIR" default:"/var/spool/orderdesk"`
}

// spool writes one receipt file per print request. Reprints of the same
// order get distinct files.
type spool struct {
	dir string
	now func() time.Time
}

func (s spool) write(o contracts.PrintOrder) (string, error) {
	doc, err := receipt.Render(o)
	if err != nil {
		return "", pkgerrors.Wrap(err, "render receipt")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", pkgerrors.Wrapf(err, "create spool dir %s", s.dir)
	}
	name := fmt.Sprintf("%s-%d.txt", safeName(o.ID), s.now().UnixNano())
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return "", pkgerrors.Wrapf(err, "write receipt %s", path)
	}
	return path, nil
}

func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '.' {
			return '_'
		}
		return r
	}, id)
}

func main() {
	cfg, err := readCfg()
	if err != nil {
		logging.Error(logging.Fields{Service: "print-service", Message: "config error"}, err)
		os.Exit(1)
	}

	srvMetrics := metrics.NewServerMetrics("print_service")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/print", printHandler(spool{dir: cfg.SpoolDir, now: time.Now}, srvMetrics))

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logging.Log(logging.Fields{Service: "print-service", Status: "listening", Message: "print-service listening on :" + cfg.Port})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error(logging.Fields{Service: "print-service", Message: "http server error"}, err)
		os.Exit(1)
	}
}

func readCfg() (cfg, error) {
	var c cfg
	if err := envconfig.Process("", &c); err != nil {
		return cfg{}, err
	}
	return c, nil
}

func printHandler(s spool, m *metrics.ServerMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, contracts.PrintResponse{Message: "method not allowed"})
			m.Observe("print", "405", start)
			return
		}
		var req contracts.PrintRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderData.ID == "" {
			writeJSON(w, http.StatusBadRequest, contracts.PrintResponse{Message: "orderData.id is required"})
			m.Observe("print", "400", start)
			return
		}
		path, err := s.write(req.OrderData)
		if err != nil {
			logging.Error(logging.Fields{Service: "print-service", OrderID: req.OrderData.ID, Step: "print", Status: "failed"}, err)
			writeJSON(w, http.StatusInternalServerError, contracts.PrintResponse{Success: false, Message: err.Error(), Method: "network"})
			m.Observe("print", "500", start)
			return
		}
		logging.Log(logging.Fields{Service: "print-service", OrderID: req.OrderData.ID, Step: "print", Status: "spooled", DurationMS: time.Since(start).Milliseconds(), Message: path})
		writeJSON(w, http.StatusOK, contracts.PrintResponse{Success: true, Message: "printed " + filepath.Base(path), Method: "network"})
		m.Observe("print", "200", start)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
