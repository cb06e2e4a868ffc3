package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nazeru/order-console-go/internal/order/domain"
	"github.com/nazeru/order-console-go/internal/order/lifecycle"
	"github.com/nazeru/order-console-go/internal/order/transport"
)

type api struct {
	baseURL string
	client  *http.Client
}

func newAPI(baseURL string, timeout time.Duration) *api {
	return &api{baseURL: strings.TrimRight(baseURL, "/"), client: &http.Client{Timeout: timeout}}
}

func (a *api) window(ctx context.Context) (transport.WindowResponse, error) {
	var out transport.WindowResponse
	err := a.do(ctx, http.MethodGet, "/orders", nil, &out)
	return out, err
}

func (a *api) confirm(ctx context.Context, id domain.OrderID, minutes int) (lifecycle.Outcome, error) {
	var out lifecycle.Outcome
	err := a.do(ctx, http.MethodPost, "/orders/"+string(id)+"/confirm", transport.ConfirmRequest{DeliveryTime: &minutes}, &out)
	return out, err
}

func (a *api) cancel(ctx context.Context, id domain.OrderID, reason string) (lifecycle.Outcome, error) {
	var out lifecycle.Outcome
	err := a.do(ctx, http.MethodPost, "/orders/"+string(id)+"/cancel", transport.CancelRequest{Reason: reason}, &out)
	return out, err
}

func (a *api) complete(ctx context.Context, id domain.OrderID) (lifecycle.Outcome, error) {
	var out lifecycle.Outcome
	err := a.do(ctx, http.MethodPost, "/orders/"+string(id)+"/complete", nil, &out)
	return out, err
}

func (a *api) print(ctx context.Context, id domain.OrderID) (transport.PrintResponse, error) {
	var out transport.PrintResponse
	err := a.do(ctx, http.MethodPost, "/orders/"+string(id)+"/print", nil, &out)
	return out, err
}

func (a *api) setAutoPrint(ctx context.Context, enabled bool) error {
	return a.do(ctx, http.MethodPut, "/auto-print", transport.AutoPrintRequest{Enabled: enabled}, nil)
}

func (a *api) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
