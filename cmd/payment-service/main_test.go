package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/order-console-go/pkg/contracts"
	"github.com/nazeru/order-console-go/pkg/idempotency"
	"github.com/nazeru/order-console-go/pkg/metrics"
)

type memLedger struct {
	byKey map[string]string
}

func (l *memLedger) Reverse(_ context.Context, key, paymentID, _ string) (string, error) {
	if id, ok := l.byKey[key]; ok {
		return id, nil
	}
	id := "rv_" + paymentID
	l.byKey[key] = id
	return id, nil
}

func call(t *testing.T, h http.HandlerFunc, body, key string) (int, contracts.ReversalResponse) {
	req := httptest.NewRequest(http.MethodPost, "/payments/reverse", strings.NewReader(body))
	idempotency.Set(req, key)
	rec := httptest.NewRecorder()
	h(rec, req)
	var resp contracts.ReversalResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestReverseHandler(t *testing.T) {
	l := &memLedger{byKey: map[string]string{}}
	m := metrics.NewServerMetricsWith(prometheus.NewRegistry(), "payment_test")
	h := reverseHandler(l, m, "pm_fail")

	code, resp := call(t, h, `{"paymentId":"pm_1","reason":"out of stock"}`, "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, "rv_pm_1", resp.ReversalID)

	code, resp = call(t, h, `{"paymentId":"pm_1","reason":"again"}`, "pm_1")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "rv_pm_1", resp.ReversalID)
	assert.Len(t, l.byKey, 1)

	code, resp = call(t, h, `{"paymentId":"pm_fail_9","reason":"x"}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.False(t, resp.Success)

	code, _ = call(t, h, `{"reason":"x"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
}
