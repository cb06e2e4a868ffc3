package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/nazeru/order-console-go/internal/order/domain"
	"github.com/nazeru/order-console-go/internal/order/lifecycle"
	"github.com/nazeru/order-console-go/internal/order/sideeffect"
	"github.com/nazeru/order-console-go/pkg/logging"
	"github.com/nazeru/order-console-go/pkg/metrics"
)

type Console interface {
	Window() []domain.Order
	Lookup(id domain.OrderID) (domain.Order, bool)
	Busy() bool
	AutoPrintEnabled() bool
	SetAutoPrintEnabled(enabled bool)
	Confirm(ctx context.Context, o domain.Order, deliveryMinutes int) (lifecycle.Outcome, error)
	Cancel(ctx context.Context, o domain.Order, reason string) (lifecycle.Outcome, error)
	Complete(ctx context.Context, o domain.Order) (lifecycle.Outcome, error)
	Print(ctx context.Context, o domain.Order) sideeffect.PrintResult
	ResetHandled(ctx context.Context) error
}

type WindowResponse struct {
	Orders    []domain.Order `json:"orders"`
	AutoPrint bool           `json:"autoPrint"`
	Busy      bool           `json:"busy"`
}

type ConfirmRequest struct {
	DeliveryTime *int `json:"deliveryTime"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type AutoPrintRequest struct {
	Enabled bool `json:"enabled"`
}

type PrintResponse struct {
	Method   string `json:"method"`
	Message  string `json:"message,omitempty"`
	FellBack bool   `json:"fellBack"`
	Error    string `json:"error,omitempty"`
}

type Handler struct {
	console Console
	metrics *metrics.ServerMetrics
	health  func(ctx context.Context) error
}

func NewHandler(console Console, m *metrics.ServerMetrics, health func(ctx context.Context) error) *Handler {
	return &Handler{console: console, metrics: m, health: health}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.observe("health", h.getHealth))
	mux.HandleFunc("GET /orders", h.observe("orders", h.getOrders))
	mux.HandleFunc("POST /orders/{id}/confirm", h.observe("confirm", h.withOrder(h.confirm)))
	mux.HandleFunc("POST /orders/{id}/cancel", h.observe("cancel", h.withOrder(h.cancel)))
	mux.HandleFunc("POST /orders/{id}/complete", h.observe("complete", h.withOrder(h.complete)))
	mux.HandleFunc("POST /orders/{id}/print", h.observe("print", h.withOrder(h.print)))
	mux.HandleFunc("GET /auto-print", h.observe("auto_print", h.getAutoPrint))
	mux.HandleFunc("PUT /auto-print", h.observe("auto_print", h.putAutoPrint))
	mux.HandleFunc("POST /handled/reset", h.observe("handled_reset", h.resetHandled))
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (h *Handler) observe(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next(sw, r)
		h.metrics.Observe(name, strconv.Itoa(sw.code), start)
	}
}

func (h *Handler) withOrder(next func(w http.ResponseWriter, r *http.Request, o domain.Order)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, ok := h.console.Lookup(domain.OrderID(r.PathValue("id")))
		if !ok {
			writeError(w, domain.ErrOrderNotFound)
			return
		}
		next(w, r, o)
	}
}

func (h *Handler) getHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "db_error"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) getOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, WindowResponse{
		Orders:    h.console.Window(),
		AutoPrint: h.console.AutoPrintEnabled(),
		Busy:      h.console.Busy(),
	})
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request, o domain.Order) {
	var req ConfirmRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	minutes := 0
	if req.DeliveryTime != nil {
		minutes = *req.DeliveryTime
	}
	out, err := h.console.Confirm(r.Context(), o, minutes)
	h.respond(w, "confirm", o, out, err)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request, o domain.Order) {
	var req CancelRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	out, err := h.console.Cancel(r.Context(), o, req.Reason)
	h.respond(w, "cancel", o, out, err)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request, o domain.Order) {
	out, err := h.console.Complete(r.Context(), o)
	h.respond(w, "complete", o, out, err)
}

func (h *Handler) print(w http.ResponseWriter, r *http.Request, o domain.Order) {
	res := h.console.Print(r.Context(), o)
	resp := PrintResponse{Method: res.Method, Message: res.Message, FellBack: res.FellBack}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getAutoPrint(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AutoPrintRequest{Enabled: h.console.AutoPrintEnabled()})
}

func (h *Handler) putAutoPrint(w http.ResponseWriter, r *http.Request) {
	var req AutoPrintRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	h.console.SetAutoPrintEnabled(req.Enabled)
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) resetHandled(w http.ResponseWriter, r *http.Request) {
	if err := h.console.ResetHandled(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) respond(w http.ResponseWriter, op string, o domain.Order, out lifecycle.Outcome, err error) {
	if err != nil {
		logging.Warn(logging.Fields{Service: "console", OrderID: string(o.ID), Step: op, Status: "rejected"}, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrDeliveryTimeRequired), errors.Is(err, domain.ErrCancelReasonRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrOperationInFlight), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPaymentReversalFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]any{"error": err.Error()})
}

func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
