package sideeffect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/nazeru/order-console-go/pkg/contracts"
	"github.com/nazeru/order-console-go/pkg/idempotency"
)

// postJSON sends body and decodes a JSON response into out when out is not nil.
// Any non-2xx status is an error.
func postJSON(ctx context.Context, client *http.Client, url, idemKey string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	idempotency.Set(req, idemKey)

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "post %s", url)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.Wrap(err, "decode response")
		}
	}
	return nil
}

// verdict is the optional success flag some services put in the body.
type verdict struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Method  string `json:"method"`
}

func (v verdict) failed() bool {
	return v.Success != nil && !*v.Success
}

type NetworkPrinter struct {
	URL    string
	Client *http.Client
}

func (p *NetworkPrinter) Print(ctx context.Context, req contracts.PrintRequest) (contracts.PrintResponse, error) {
	var v verdict
	if err := postJSON(ctx, p.Client, p.URL, "", req, &v); err != nil {
		return contracts.PrintResponse{}, err
	}
	if v.failed() {
		return contracts.PrintResponse{}, fmt.Errorf("print service refused: %s", v.Message)
	}
	method := v.Method
	if method == "" {
		method = "network"
	}
	return contracts.PrintResponse{Success: true, Message: v.Message, Method: method}, nil
}

type HTTPMessenger struct {
	URL    string
	Client *http.Client
}

func (m *HTTPMessenger) Send(ctx context.Context, to, text string) error {
	return postJSON(ctx, m.Client, m.URL, "", contracts.SMSRequest{To: to, Message: text}, nil)
}

// HTTPReverser calls the payment reversal endpoint. The payment id doubles as
// the idempotency key so a retried cancel cannot refund twice.
type HTTPReverser struct {
	URL    string
	Client *http.Client
}

func (r *HTTPReverser) Reverse(ctx context.Context, paymentID, reason string) error {
	var v verdict
	err := postJSON(ctx, r.Client, r.URL, paymentID, contracts.ReversalRequest{PaymentID: paymentID, Reason: reason}, &v)
	if err != nil {
		return err
	}
	if v.failed() {
		return fmt.Errorf("reversal rejected: %s", v.Message)
	}
	return nil
}
