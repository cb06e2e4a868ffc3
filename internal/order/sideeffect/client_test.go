package sideeffect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/order-console-go/pkg/contracts"
	"github.com/nazeru/order-console-go/pkg/idempotency"
)

func TestNetworkPrinter(t *testing.T) {
	var got contracts.PrintRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(contracts.PrintResponse{Success: true, Message: "queued", Method: "network"})
	}))
	defer srv.Close()

	p := &NetworkPrinter{URL: srv.URL, Client: srv.Client()}
	resp, err := p.Print(context.Background(), contracts.PrintRequest{OrderData: contracts.PrintOrder{ID: "A", StoreAddress: "1 Main St"}})
	require.NoError(t, err)
	assert.Equal(t, "queued", resp.Message)
	assert.Equal(t, "network", resp.Method)
	assert.Equal(t, "A", got.OrderData.ID)
	assert.Equal(t, "1 Main St", got.OrderData.StoreAddress)
}

func TestNetworkPrinterFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "printer offline", http.StatusServiceUnavailable)
		},
		"refused": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"message":"paper jam"}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			p := &NetworkPrinter{URL: srv.URL, Client: srv.Client()}
			_, err := p.Print(context.Background(), contracts.PrintRequest{})
			assert.Error(t, err)
		})
	}

	p := &NetworkPrinter{URL: "http://127.0.0.1:1/print", Client: http.DefaultClient}
	_, err := p.Print(context.Background(), contracts.PrintRequest{})
	assert.Error(t, err)
}

func TestHTTPMessenger(t *testing.T) {
	var got contracts.SMSRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := &HTTPMessenger{URL: srv.URL, Client: srv.Client()}
	require.NoError(t, m.Send(context.Background(), "01012345678", "hello"))
	assert.Equal(t, contracts.SMSRequest{To: "01012345678", Message: "hello"}, got)
}

func TestHTTPReverser(t *testing.T) {
	var key string
	var got contracts.ReversalRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = idempotency.Key(r)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.PaymentID == "pm_bad" {
			_, _ = w.Write([]byte(`{"success":false,"message":"already settled"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"reversalId":"rv_1"}`))
	}))
	defer srv.Close()

	r := &HTTPReverser{URL: srv.URL, Client: srv.Client()}
	require.NoError(t, r.Reverse(context.Background(), "pm_1", "out of stock"))
	assert.Equal(t, "pm_1", key)
	assert.Equal(t, "out of stock", got.Reason)

	err := r.Reverse(context.Background(), "pm_bad", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already settled")
}
